package server

import (
	"fmt"

	"hivekeeper/cmd/root"
	"hivekeeper/internal/models"
	"hivekeeper/internal/rpc"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Query the health of a running management server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess := root.SessionFrom(cmd)
		addr := sess.Config.Server.Address
		if listenAddr != "" {
			addr = listenAddr
		}
		client := rpc.NewClient(rpc.DefaultHTTPConfig(sess.Home, addr))

		var health models.HealthResponse
		if err := client.Get(cmd.Context(), "/healthz", &health); err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Status:    %s\n", health.Status)
		fmt.Fprintf(w, "Version:   %s\n", health.Version)
		fmt.Fprintf(w, "Uptime:    %s\n", health.Uptime)
		fmt.Fprintf(w, "Installed: %d\n", health.Metrics.InstalledServices)
		fmt.Fprintf(w, "Running:   %d\n", health.Metrics.RunningServices)
		return nil
	},
}

func init() {
	healthCmd.Flags().StringVar(&listenAddr, "listen", "", "Server address used when no socket exists")
	serverCmd.AddCommand(healthCmd)
}
