package main

import (
	"os"
	"path/filepath"

	"github.com/tonlight/tonlight/cmd/tonlight/commands"
	"github.com/tonlight/tonlight/config"
	"github.com/tonlight/tonlight/libs/cli"
	"github.com/tonlight/tonlight/libs/log"
)

func main() {
	conf := config.DefaultConfig()

	logger, err := log.NewDefaultLogger(conf.LogFormat, conf.LogLevel)
	if err != nil {
		panic(err)
	}

	rcmd := commands.RootCommand(conf, logger)
	rcmd.AddCommand(
		commands.MakeInitCommand(conf, logger),
		commands.MakeNewKeyBlockCommand(conf, logger),
		commands.MakeCheckBlockCommand(conf, logger),
		commands.MakeCheckTxCommand(conf, logger),
		commands.MakeSyncCommand(conf, logger),
		commands.MakeHeaderProofCommand(conf, logger),
		commands.MakeShowStateCommand(conf, logger),
		commands.MakeVersionCommand(),
		commands.NewCompletionCmd(rcmd, true),
	)

	cmd := cli.PrepareBaseCmd(rcmd, "TL", os.ExpandEnv(filepath.Join("$HOME", config.DefaultTonlightDir)))
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
