package root

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

// Build information, set with -ldflags at release time.
var (
	SoftwareVer   = "0.1.0"
	BuildTime     = ""
	BuildTag      = ""
	BuildCommitId = ""
)

var (
	homeDir    string
	configFile string
	iamRoot    bool
)

var RootCmd = &cobra.Command{
	Use:   "hivekeeper",
	Short: "Honeypot decoy service manager",
	Long: `hivekeeper installs decoy services, runs them in the foreground or as
daemons, and records every interaction with them in structured logs.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: openSession,
}

func init() {
	flags := RootCmd.PersistentFlags()
	flags.StringVar(&homeDir, "home", "", "Home directory (default $HIVEKEEPER_HOME or ~/.hivekeeper)")
	flags.StringVar(&configFile, "config", "", "Config file (default <home>/config.yaml)")
	flags.BoolVar(&iamRoot, "iamroot", false, "Allow running as root")
}

/**
 * Execute the command line
 * @returns {error} Error of the executed command
 * @description
 * - Every failure is written to the debug log before returning, including
 *   flag errors raised before a session could be opened
 */
func Execute() error {
	return ExecuteArgs(os.Args[1:])
}

// ExecuteArgs executes the command tree with explicit arguments.
func ExecuteArgs(args []string) error {
	resetContexts(RootCmd)
	RootCmd.SetArgs(args)
	cmd, err := RootCmd.ExecuteC()
	sess := SessionFrom(cmd)
	if sess == nil {
		if err != nil {
			logEarlyFailure(cmd, err)
		}
		return err
	}
	if err != nil {
		sess.Fail(cmd.CommandPath(), err)
	}
	sess.Close(cmd.Name())
	return err
}

// resetContexts drops the sessions a previous execution left on the commands.
// cobra only fills in a context that is nil.
func resetContexts(cmd *cobra.Command) {
	cmd.SetContext(context.Background())
	for _, c := range cmd.Commands() {
		resetContexts(c)
	}
}
