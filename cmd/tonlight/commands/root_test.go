package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonlight/tonlight/config"
	"github.com/tonlight/tonlight/libs/cli"
	"github.com/tonlight/tonlight/libs/log"
)

// writeConfigVals writes a toml file with the given values.
// It returns an error if writing was impossible.
func writeConfigVals(dir string, vals map[string]string) error {
	data := ""
	for k, v := range vals {
		data += fmt.Sprintf("%s = \"%s\"\n", k, v)
	}
	cfile := filepath.Join(dir, "config.toml")
	return os.WriteFile(cfile, []byte(data), 0600)
}

// clearConfig clears env vars, the given root dir, and resets viper.
func clearConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	require.NoError(t, os.Unsetenv("TLHOME"))
	require.NoError(t, os.Unsetenv("TL_HOME"))
	require.NoError(t, os.Unsetenv("TL_LOG_LEVEL"))
	require.NoError(t, os.RemoveAll(dir))

	viper.Reset()
	conf := config.TestConfig()
	conf.SetRoot(dir)

	return conf
}

// testRootCmd builds the tonlight command tree, plus a noop command that
// only runs the root's setup.
func testRootCmd(conf *config.Config, out *bytes.Buffer) cli.Executor {
	logger := log.NewNopLogger()
	rcmd := RootCommand(conf, logger)
	var l string
	rcmd.PersistentFlags().String("log", l, "Log")
	rcmd.AddCommand(
		MakeInitCommand(conf, logger),
		MakeNewKeyBlockCommand(conf, logger),
		MakeCheckBlockCommand(conf, logger),
		MakeCheckTxCommand(conf, logger),
		MakeSyncCommand(conf, logger),
		MakeHeaderProofCommand(conf, logger),
		MakeShowStateCommand(conf, logger),
		MakeVersionCommand(),
		NewCompletionCmd(rcmd, true),
		&cobra.Command{
			Use:  "noop",
			RunE: func(cmd *cobra.Command, args []string) error { return nil },
		},
	)
	rcmd.SetOut(out)

	cmd := cli.PrepareBaseCmd(rcmd, "TL", conf.RootDir)
	cmd.Exit = func(int) {}
	return cmd
}

// runWithArgs executes cmd with the given args and environment variables
// set, restoring the environment afterwards.
func runWithArgs(t *testing.T, cmd cli.Executor, args []string, env map[string]string) error {
	t.Helper()
	for k, v := range env {
		old, ok := os.LookupEnv(k)
		require.NoError(t, os.Setenv(k, v))
		k := k
		t.Cleanup(func() {
			if ok {
				os.Setenv(k, old)
			} else {
				os.Unsetenv(k)
			}
		})
	}

	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestRootHome(t *testing.T) {
	defaultRoot := t.TempDir()
	newRoot := filepath.Join(defaultRoot, "something-else")
	cases := []struct {
		args []string
		env  map[string]string
		root string
	}{
		{nil, nil, defaultRoot},
		{[]string{"--home", newRoot}, nil, newRoot},
		{nil, map[string]string{"TLHOME": newRoot}, newRoot},
	}

	for i, tc := range cases {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			conf := clearConfig(t, defaultRoot)

			err := runWithArgs(t, testRootCmd(conf, new(bytes.Buffer)), append([]string{"noop"}, tc.args...), tc.env)
			require.NoError(t, err)

			require.Equal(t, tc.root, conf.RootDir)
			require.Equal(t, tc.root, conf.Light.RootDir)
			require.Equal(t, tc.root, conf.Provider.RootDir)
			assert.DirExists(t, filepath.Join(tc.root, "config"))
			assert.DirExists(t, filepath.Join(tc.root, "data"))
		})
	}
}

func TestRootFlagsEnv(t *testing.T) {
	defaultDir := t.TempDir()
	defaultLogLvl := config.DefaultConfig().LogLevel

	cases := []struct {
		args     []string
		env      map[string]string
		logLevel string
	}{
		{[]string{"--log", "debug"}, nil, defaultLogLvl},                 // wrong flag
		{[]string{"--log_level", "debug"}, nil, "debug"},                 // right flag
		{nil, map[string]string{"TL_LOG_LEVEL": "debug"}, "debug"},       // right env
		{nil, map[string]string{"TL_LOW_LEVEL": "debug"}, defaultLogLvl}, // wrong env
	}

	for i, tc := range cases {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			conf := clearConfig(t, defaultDir)

			err := runWithArgs(t, testRootCmd(conf, new(bytes.Buffer)), append([]string{"noop"}, tc.args...), tc.env)
			require.NoError(t, err)

			assert.Equal(t, tc.logLevel, conf.LogLevel)
		})
	}
}

func TestRootConfig(t *testing.T) {
	// write non-default config
	nonDefaultLogLvl := "debug"
	cvals := map[string]string{
		"log_level":  nonDefaultLogLvl,
		"log_format": config.LogFormatJSON,
	}

	cases := []struct {
		args   []string
		logLvl string
	}{
		{nil, nonDefaultLogLvl},                     // should load config
		{[]string{"--log_level=info"}, "info"},      // flag overrides
		{[]string{"--log_level", "error"}, "error"}, // flag overrides
	}

	for i, tc := range cases {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			defaultRoot := t.TempDir()
			conf := clearConfig(t, defaultRoot)

			configFilePath := filepath.Join(defaultRoot, "config")
			require.NoError(t, os.MkdirAll(configFilePath, 0700))
			require.NoError(t, writeConfigVals(configFilePath, cvals))

			err := runWithArgs(t, testRootCmd(conf, new(bytes.Buffer)), append([]string{"noop"}, tc.args...), nil)
			require.NoError(t, err)

			assert.Equal(t, tc.logLvl, conf.LogLevel)
			assert.Equal(t, config.LogFormatJSON, conf.LogFormat)
		})
	}
}

func TestRootInvalidConfig(t *testing.T) {
	defaultRoot := t.TempDir()
	conf := clearConfig(t, defaultRoot)

	configFilePath := filepath.Join(defaultRoot, "config")
	require.NoError(t, os.MkdirAll(configFilePath, 0700))
	require.NoError(t, writeConfigVals(configFilePath, map[string]string{"log_format": "xml"}))

	err := runWithArgs(t, testRootCmd(conf, new(bytes.Buffer)), []string{"noop"}, nil)
	assert.ErrorContains(t, err, "log_format")
}

func TestVersionSkipsConfig(t *testing.T) {
	defaultRoot := t.TempDir()
	conf := clearConfig(t, defaultRoot)

	configFilePath := filepath.Join(defaultRoot, "config")
	require.NoError(t, os.MkdirAll(configFilePath, 0700))
	require.NoError(t, writeConfigVals(configFilePath, map[string]string{"log_format": "xml"}))

	var out bytes.Buffer
	require.NoError(t, runWithArgs(t, testRootCmd(conf, &out), []string{"version", "-v"}, nil))
	assert.Contains(t, out.String(), `"trusted_state_schema"`)
}

func TestCompletion(t *testing.T) {
	conf := clearConfig(t, t.TempDir())

	var out bytes.Buffer
	require.NoError(t, runWithArgs(t, testRootCmd(conf, &out), []string{"completion", "zsh"}, nil))
	assert.Contains(t, out.String(), "#compdef")

	err := runWithArgs(t, testRootCmd(conf, new(bytes.Buffer)), []string{"completion", "tcsh"}, nil)
	assert.ErrorContains(t, err, "unsupported shell")
}
