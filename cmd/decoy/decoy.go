package decoy

import (
	"context"
	"os/signal"
	"syscall"

	"hivekeeper/cmd/root"
	"hivekeeper/internal/config"
	"hivekeeper/internal/decoy"
	"hivekeeper/internal/env"
	"hivekeeper/services"

	"github.com/spf13/cobra"
)

// Cmd is the entrypoint of the built-in decoys. The supervisor starts it as
// a child; it reports on stdout and never touches the debug log.
var Cmd = &cobra.Command{
	Use:    "decoy <kind>",
	Short:  "Run a built-in decoy (started by the supervisor)",
	Hidden: true,
	Args:   cobra.ExactArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := decoy.FromEnv(args[0])
		if err != nil {
			return err
		}
		d, err := decoy.New(args[0], opts)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()
		err = d.Run(ctx)
		_ = pushMetrics(args[0])
		return err
	},
}

// pushMetrics pushes the request metrics of the decoy process, when the
// config of the supervising home names a Pushgateway. Failures are ignored:
// the decoy has no log of its own.
func pushMetrics(kind string) error {
	cfg, err := config.Load(env.GetDefaultHome(), "")
	if err != nil {
		return err
	}
	return services.PushMetrics(cfg.Metrics, "decoy-"+kind)
}

func init() {
	root.RootCmd.AddCommand(Cmd)
}
