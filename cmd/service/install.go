package service

import (
	"fmt"

	"hivekeeper/cmd/root"

	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install <source>",
	Short: "Install a service from a directory, a zip archive or the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := session(cmd)
		if err != nil {
			return err
		}
		inst, err := sess.Manager.Install(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Installed %s into %s\n", inst.Name(), inst.Path)
		return nil
	},
}

func init() {
	root.RootCmd.AddCommand(installCmd)
}
