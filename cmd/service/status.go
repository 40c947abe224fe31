package service

import (
	"fmt"

	"hivekeeper/cmd/root"
	"hivekeeper/internal/apperr"
	"hivekeeper/internal/models"

	"github.com/spf13/cobra"
)

var showAll bool

var statusCmd = &cobra.Command{
	Use:   "status [--show-all] [name]",
	Short: "Show whether a service is running",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && !showAll {
			return &apperr.AmbiguousRequestError{Message: "You must specify a service name"}
		}
		sess, err := session(cmd)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		var list []models.ServiceDetail
		if len(args) == 1 {
			list = append(list, sess.Manager.Status(args[0]))
		} else {
			if list, err = sess.Manager.StatusAll(); err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(w, "No services installed")
			}
		}
		for _, d := range list {
			fmt.Fprintf(w, "%s - %s\n", d.Name, d.Status)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&showAll, "show-all", false, "Show every installed service")
	root.RootCmd.AddCommand(statusCmd)
}
