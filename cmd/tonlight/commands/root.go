package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tonlight/tonlight/config"
	"github.com/tonlight/tonlight/libs/log"
)

// ParseConfig retrieves the default environment configuration,
// sets up the tonlight root and ensures that the root exists
func ParseConfig(conf *config.Config) (*config.Config, error) {
	if err := viper.Unmarshal(conf); err != nil {
		return nil, err
	}

	conf.SetRoot(conf.RootDir)

	if err := conf.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("error in config file: %w", err)
	}
	return conf, nil
}

// RootCommand constructs the root command-line entry point for tonlight.
// Callers wrap it with cli.PrepareBaseCmd, which binds the flags and loads
// the config file before PersistentPreRunE runs.
func RootCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tonlight",
		Short: "Light client verifying TON masterchain blocks and transactions",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch cmd.Name() {
			case versionCmdName, completionCmdName:
				return nil
			}

			pconf, err := ParseConfig(conf)
			if err != nil {
				return err
			}
			*conf = *pconf
			if err := config.EnsureRoot(conf.RootDir); err != nil {
				return err
			}
			if err := log.OverrideWithNewLogger(logger, conf.LogFormat, conf.LogLevel); err != nil {
				return err
			}
			warnUnknownKeys(logger)

			return nil
		},
	}
	cmd.PersistentFlags().String("log_level", conf.LogLevel, "log level")
	return cmd
}

// warnUnknownKeys logs the keys of the config file that no option reads,
// usually typos or options of another version.
func warnUnknownKeys(logger log.Logger) {
	path := viper.ConfigFileUsed()
	if path == "" {
		return
	}
	keys, err := config.UnknownKeys(path)
	if err != nil {
		logger.Error("failed to check config file", "path", path, "err", err)
		return
	}
	for _, k := range keys {
		logger.Info("WARNING: unknown config key", "key", k, "path", path)
	}
}
