package metrics

import (
	"fmt"

	"hivekeeper/cmd/root"
	"hivekeeper/services"

	"github.com/spf13/cobra"
)

var pushGatewayAddr string

func init() {
	root.RootCmd.AddCommand(Cmd)
	Cmd.Flags().SortFlags = false
	Cmd.Flags().StringVarP(&pushGatewayAddr, "addr", "a", "", "Pushgateway地址")
}

var Cmd = &cobra.Command{
	Use:   "metrics",
	Short: "Push Prometheus metrics to the configured Pushgateway",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess := root.SessionFrom(cmd)
		cfg := sess.Config.Metrics
		if pushGatewayAddr != "" {
			cfg.Pushgateway = pushGatewayAddr
		}
		if cfg.Pushgateway == "" {
			return fmt.Errorf("no pushgateway configured, use -a or metrics.pushgateway")
		}
		if _, _, err := sess.Manager.CheckServices(); err != nil {
			return err
		}
		if err := services.PushMetrics(cfg, cmd.Name()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Metrics pushed to %s\n", cfg.Pushgateway)
		return nil
	},
}
