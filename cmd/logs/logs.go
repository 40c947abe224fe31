package logs

import (
	"fmt"

	"hivekeeper/cmd/root"
	"hivekeeper/internal/env"
	"hivekeeper/services"

	"github.com/spf13/cobra"
)

var (
	logFile     string
	serviceName string
	kind        string
	tail        int
)

func init() {
	root.RootCmd.AddCommand(Cmd)
	Cmd.Flags().SortFlags = false
	Cmd.Flags().StringVarP(&logFile, "file", "f", "", "Log file path (default <home>/hivekeeper.debug.log)")
	Cmd.Flags().StringVarP(&serviceName, "service", "s", "", "Only events of this service")
	Cmd.Flags().StringVarP(&kind, "kind", "k", "", "Only events of this kind (lifecycle, interaction, cli, error, output)")
	Cmd.Flags().IntVarP(&tail, "tail", "n", 0, "Only the last N events")
}

var Cmd = &cobra.Command{
	Use:   "logs",
	Short: "Print events recorded in the debug log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess := root.SessionFrom(cmd)
		path := logFile
		if path == "" && sess != nil {
			path = env.DebugLogPath(sess.Home)
		}
		lines, err := services.NewLogService(path).Read(services.LogQuery{
			Service: serviceName,
			Kind:    kind,
			Tail:    tail,
		})
		for _, l := range lines {
			fmt.Fprintln(cmd.OutOrStdout(), l)
		}
		return err
	},
}
