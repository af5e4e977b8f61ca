package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonlight/tonlight/config"
	"github.com/tonlight/tonlight/libs/log"
	"github.com/tonlight/tonlight/types"
)

// MakeInitCommand returns the command writing the default config file and,
// when given a key block or a state file, the trusted state the client
// starts from.
func MakeInitCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	var (
		statePath string
		force     bool
	)
	cmd := &cobra.Command{
		Use:   "init [key-block.boc]",
		Short: "Initialize the home directory and the trusted state",
		Long: `Initialize the home directory: write config.toml unless it exists and,
given a key block, trust the validator set it installs.

The key block is a full block or a config proof of it, in bag of cells
format. It is trusted as is: get it from a source you trust. Instead of
a key block, a trusted state saved by another client can be given with
--state.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 && statePath != "" {
				return errors.New("give either a key block or --state, not both")
			}

			if err := initConfigFile(conf, logger); err != nil {
				return err
			}

			var (
				state *types.TrustedState
				err   error
			)
			switch {
			case len(args) == 1:
				state, err = trustedStateFromKeyBlock(args[0])
			case statePath != "":
				state, err = types.LoadTrustedState(statePath)
			default:
				return nil
			}
			if err != nil {
				return err
			}
			if state.GlobalID != conf.Light.GlobalID {
				return fmt.Errorf("trusted state is of network %d, config tracks %d",
					state.GlobalID, conf.Light.GlobalID)
			}

			path := conf.Light.TrustedStatePath()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("trusted state %s already exists, use --force to replace it", path)
			}
			if err := state.SaveAs(path); err != nil {
				return fmt.Errorf("failed to save trusted state: %w", err)
			}
			logger.Info("Generated trusted state", "path", path, "seqno", state.Seqno,
				"validators", state.Validators.Size())
			fmt.Fprintf(cmd.OutOrStdout(), "trusting key block #%d with %d validators\n",
				state.Seqno, state.Validators.Size())
			return nil
		},
	}
	cmd.Flags().StringVar(&statePath, "state", "", "trusted state file to start from")
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing trusted state")
	return cmd
}

func initConfigFile(conf *config.Config, logger log.Logger) error {
	path := config.ConfigFile(conf.RootDir)
	if _, err := os.Stat(path); err == nil {
		logger.Info("Found config file", "path", path)
		return nil
	}
	if err := config.WriteConfigFile(conf.RootDir, conf); err != nil {
		return err
	}
	logger.Info("Generated config file", "path", path)
	return nil
}

// trustedStateFromKeyBlock returns the state installed by the key block at
// path.
func trustedStateFromKeyBlock(path string) (*types.TrustedState, error) {
	b, err := readBlock(path)
	if err != nil {
		return nil, err
	}
	block, err := b.Block()
	if err != nil {
		return nil, err
	}
	if !block.Info.KeyBlock {
		return nil, fmt.Errorf("block #%d is not a key block", block.Info.SeqNo)
	}
	vals, err := types.NewValidatorSet(block)
	if err != nil {
		return nil, fmt.Errorf("validator set of block #%d: %w", block.Info.SeqNo, err)
	}

	state := &types.TrustedState{
		GlobalID:   block.GlobalID,
		Seqno:      block.Info.SeqNo,
		Validators: vals,
	}
	return state, state.ValidateBasic()
}
