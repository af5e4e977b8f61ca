package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupEnv(t *testing.T) {
	cases := []struct {
		args     []string
		env      map[string]string
		expected string
	}{
		{nil, nil, ""},
		{[]string{"--foobar", "bang!"}, nil, "bang!"},
		// make sure reset is good
		{nil, nil, ""},
		// test both variants of the prefix
		{nil, map[string]string{"DEMO_FOOBAR": "good"}, "good"},
		{nil, map[string]string{"DEMOFOOBAR": "silly"}, "silly"},
		// and that cli overrides env...
		{[]string{"--foobar", "important"},
			map[string]string{"DEMO_FOOBAR": "ignored"}, "important"},
	}

	for idx, tc := range cases {
		i := strconv.Itoa(idx)
		// test command that store value of foobar in local variable
		var foo string
		demo := &cobra.Command{
			Use: "demo",
			RunE: func(cmd *cobra.Command, args []string) error {
				foo = viper.GetString("foobar")
				return nil
			},
		}
		demo.Flags().String("foobar", "", "Some test value from config")
		cmd := PrepareBaseCmd(demo, "DEMO", "/qwerty/asdfgh") // some missing dir..
		cmd.Exit = func(int) {}

		viper.Reset()
		args := append([]string{cmd.Use}, tc.args...)
		err := runWithArgs(t, cmd, args, tc.env)
		require.NoError(t, err, i)
		assert.Equal(t, tc.expected, foo, i)
	}
}

func TestSetupConfig(t *testing.T) {
	cval1 := "fubble"
	conf1 := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(conf1, "config.toml"),
		[]byte(fmt.Sprintf("boo = \"%s\"\n", cval1)), 0600))

	cases := []struct {
		args     []string
		env      map[string]string
		expected string
	}{
		{nil, nil, ""},
		// setting on the command line
		{[]string{"--boo", "haha"}, nil, "haha"},
		{[]string{"--home", conf1}, nil, cval1},
		// test both variants of the prefix
		{nil, map[string]string{"RD_BOO": "bang"}, "bang"},
		{nil, map[string]string{"RD_HOME": conf1}, cval1},
		{nil, map[string]string{"RDHOME": conf1}, cval1},
	}

	for idx, tc := range cases {
		i := strconv.Itoa(idx)
		// test command that store value of foobar in local variable
		var foo string
		boo := &cobra.Command{
			Use: "reader",
			RunE: func(cmd *cobra.Command, args []string) error {
				foo = viper.GetString("boo")
				return nil
			},
		}
		boo.Flags().String("boo", "", "Some test value from config")
		cmd := PrepareBaseCmd(boo, "RD", "/qwerty/asdfgh") // some missing dir...
		cmd.Exit = func(int) {}

		viper.Reset()
		args := append([]string{cmd.Use}, tc.args...)
		err := runWithArgs(t, cmd, args, tc.env)
		require.NoError(t, err, i)
		assert.Equal(t, tc.expected, foo, i)
	}
}

type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit %d", e.code) }
func (e exitError) ExitCode() int { return e.code }

func TestExecutorExitCode(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{errors.New("boom"), 1},
		{exitError{code: 3}, 3},
		{fmt.Errorf("wrapped: %w", exitError{code: 4}), 4},
	}

	for idx, tc := range cases {
		tc := tc
		i := strconv.Itoa(idx)
		cmd := PrepareMainCmd(&cobra.Command{
			Use:  "failer",
			RunE: func(cmd *cobra.Command, args []string) error { return tc.err },
		}, "FL", "/qwerty/asdfgh")
		var code int
		cmd.Exit = func(c int) { code = c }

		viper.Reset()
		err := runWithArgs(t, cmd, []string{cmd.Use}, nil)
		assert.Equal(t, tc.err, err, i)
		assert.Equal(t, tc.code, code, i)
	}
}

func TestValidateOutput(t *testing.T) {
	cmd := PrepareMainCmd(&cobra.Command{
		Use:  "printer",
		RunE: func(cmd *cobra.Command, args []string) error { return nil },
	}, "PR", "/qwerty/asdfgh")
	cmd.Exit = func(int) {}

	viper.Reset()
	assert.NoError(t, runWithArgs(t, cmd, []string{cmd.Use, "-o", "json"}, nil))
	viper.Reset()
	assert.Error(t, runWithArgs(t, cmd, []string{cmd.Use, "-o", "yaml"}, nil))
}

// runWithArgs executes the given command with the specified command line args
// and environmental variables set. It returns any error returned from
// cmd.Execute()
func runWithArgs(t *testing.T, cmd Executor, args []string, env map[string]string) error {
	t.Helper()

	oargs := os.Args
	oenv := map[string]*string{}
	// defer returns the environment back to normal
	defer func() {
		os.Args = oargs
		for k, v := range oenv {
			if v == nil {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, *v)
			}
		}
	}()

	// set the args and env how we want them
	os.Args = args
	for k, v := range env {
		// backup old value if there, to restore at end
		if ov, ok := os.LookupEnv(k); ok {
			oenv[k] = &ov
		} else {
			oenv[k] = nil
		}
		if err := os.Setenv(k, v); err != nil {
			return err
		}
	}

	// and finally run the command
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}
