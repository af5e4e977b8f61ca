package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonlight/tonlight/config"
	"github.com/tonlight/tonlight/libs/log"
	"github.com/tonlight/tonlight/light"
)

// MakeShowStateCommand returns the command printing the trusted state.
func MakeShowStateCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "show-state",
		Short: "Show the trusted state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeStore, err := openClient(conf, logger, light.NopMetrics())
			if err != nil {
				return err
			}
			defer closeStore()

			state := c.State()
			if !verbose {
				fmt.Fprintf(cmd.OutOrStdout(), "network %d, key block #%d, %d validators, total weight %d\n",
					state.GlobalID, state.Seqno, state.Validators.Size(), state.Validators.TotalWeight())
				return nil
			}

			bz, err := json.MarshalIndent(state, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(bz))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print the whole state as JSON")
	return cmd
}
