package service

import (
	"fmt"

	"hivekeeper/cmd/root"
	"hivekeeper/internal/models"

	"github.com/spf13/cobra"
)

var listRemote bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed services, or the catalog with --remote",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := session(cmd)
		if err != nil {
			return err
		}
		var list []models.ServiceDetail
		if listRemote {
			list, err = sess.Manager.ListRemote(cmd.Context())
		} else {
			list, err = sess.Manager.List()
		}
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if len(list) == 0 {
			fmt.Fprintln(w, "No services found")
			return nil
		}
		for _, d := range list {
			line := summaryLine(d)
			if listRemote && d.Installed {
				line += " (installed)"
			}
			fmt.Fprintln(w, line)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&listRemote, "remote", false, "List services available in the catalog")
	root.RootCmd.AddCommand(listCmd)
}
