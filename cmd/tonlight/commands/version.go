package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonlight/tonlight/version"
)

const versionCmdName = "version"

// MakeVersionCommand returns the command printing the version.
func MakeVersionCommand() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   versionCmdName,
		Short: "Show version info",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !verbose {
				fmt.Fprintln(cmd.OutOrStdout(), version.Version)
				return nil
			}
			values, err := json.MarshalIndent(struct {
				Tonlight     string `json:"tonlight"`
				GitCommit    string `json:"git_commit,omitempty"`
				TrustedState string `json:"trusted_state_schema"`
			}{
				Tonlight:     version.TLSemVer,
				GitCommit:    version.GitCommit,
				TrustedState: version.TrustedStateSchema,
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(values))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show the git commit and the trusted state schema")
	return cmd
}
