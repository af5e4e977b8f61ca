package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

const completionCmdName = "completion"

// NewCompletionCmd returns a cobra.Command that generates shell completion
// scripts for the given root command. If hidden is true, the command will
// not show up in the root command's list of available commands.
func NewCompletionCmd(rootCmd *cobra.Command, hidden bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   completionCmdName + " [bash|zsh|fish]",
		Short: "Generate shell completion scripts",
		Long: fmt.Sprintf(`Generate a completion script for the given shell (bash by default) and
print it to STDOUT.

Once saved to file, a completion script can be loaded in the shell's
current session as shown:

   $ . <(%s completion)

To load completions for each bash session add to your $HOME/.bashrc
the following instruction:

   . <(%s completion)
`, rootCmd.Use, rootCmd.Use),
		ValidArgs: []string{"bash", "zsh", "fish"},
		Args:      cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shell := "bash"
			if len(args) == 1 {
				shell = args[0]
			}
			switch shell {
			case "bash":
				return rootCmd.GenBashCompletion(cmd.OutOrStdout())
			case "zsh":
				return rootCmd.GenZshCompletion(cmd.OutOrStdout())
			case "fish":
				return rootCmd.GenFishCompletion(cmd.OutOrStdout(), true)
			default:
				return fmt.Errorf("unsupported shell %q", shell)
			}
		},
		Hidden: hidden,
	}
	return cmd
}
