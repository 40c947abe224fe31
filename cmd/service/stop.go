package service

import (
	"fmt"

	"hivekeeper/cmd/root"
	"hivekeeper/services"

	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop <name>",
	Short: "Stop a running service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := session(cmd)
		if err != nil {
			return err
		}
		name := services.NormalizeName(args[0])
		stopped, err := sess.Manager.Stop(cmd.Context(), name)
		if err != nil {
			return err
		}
		if stopped {
			fmt.Fprintf(cmd.OutOrStdout(), "Stopped %s\n", name)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s is not running\n", name)
		}
		return nil
	},
}

func init() {
	root.RootCmd.AddCommand(stopCmd)
}
