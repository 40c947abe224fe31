package service

import (
	"hivekeeper/cmd/root"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show the details of a service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := session(cmd)
		if err != nil {
			return err
		}
		d, err := sess.Manager.Show(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printDetail(cmd.OutOrStdout(), d)
		return nil
	},
}

func init() {
	root.RootCmd.AddCommand(showCmd)
}
