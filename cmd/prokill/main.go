package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot(newCommand())
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds the persistent flags shared by every command
type GlobalFlags struct {
	ConfigPath string
	EnvFiles   []string
	LogLevel   string
}

// buildRoot creates the root command and its subcommands
func buildRoot(c *command) *cobra.Command {
	globalFlags := &GlobalFlags{}
	root := createRootCommand(c, globalFlags)

	root.AddCommand(
		createListCommand(c),
		createShowCommand(c),
		createCheckCommand(c),
		createKillCommand(c),
		createTopCommand(c),
		createServeCommand(c),
		createTokenCommand(c),
		createLoginCommand(c),
		createLogoutCommand(c),
		createHistoryCommand(c),
	)
	return root
}

// createRootCommand creates the root command with the persistent flags
func createRootCommand(c *command, flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "prokill",
		Short: "Inspect and terminate processes",
		Long: `Prokill lists running processes, classifies system services and
refuses to kill critical ones. Termination is always confirmed first.

Examples:
  prokill list --sort=memory        # top processes by resident memory
  prokill list --high               # processes above cpu_threshold
  prokill kill 4242                 # SIGTERM after confirmation
  prokill kill --force --yes 4242   # SIGKILL without prompting
  prokill top                       # interactive view
  prokill serve --config=prokill.toml
  prokill list --api-url=http://remote:8080/api`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd, *flags)
		},
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	root.PersistentFlags().StringSliceVar(&flags.EnvFiles, "env-file", nil, "dotenv files loaded before PROKILL_* variables are read")
	root.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	return root
}
