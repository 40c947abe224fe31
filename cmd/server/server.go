package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"hivekeeper/cmd/root"
	"hivekeeper/controllers"
	"hivekeeper/internal/env"
	"hivekeeper/internal/logger"
	"hivekeeper/services"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	listenAddr string
	withSocket bool
)

const (
	monitorInterval = time.Minute
	pushInterval    = 30 * time.Second
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the management HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess := root.SessionFrom(cmd)
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return startServer(ctx, sess)
	},
}

// NewRouter builds the gin engine of the management API.
func NewRouter(svc *services.Server, mode string) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	controllers.NewAPIController(svc).RegisterRoutes(router)
	controllers.NewServiceController(svc.Manager()).RegisterRoutes(router)
	return router
}

func startServer(ctx context.Context, sess *root.Session) error {
	cfg := sess.Config
	addr := cfg.Server.Address
	if listenAddr != "" {
		addr = listenAddr
	}
	addrs := []ListenAddr{{Network: "tcp", Address: addr}}
	if withSocket {
		addrs = append(addrs, ListenAddr{Network: "unix", Address: env.SocketPath(sess.Home)})
	}
	listeners, err := CreateListeners(addrs)
	if len(listeners) == 0 {
		return fmt.Errorf("启动服务失败: %w", err)
	}

	svc := services.NewServer(cfg, sess.Manager, root.SoftwareVer)
	srv := &http.Server{
		Handler:           NewRouter(svc, cfg.Server.Mode),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, l := range listeners {
		l := l
		logger.Infof("management API listening on %s://%s", l.Addr().Network(), l.Addr().String())
		g.Go(func() error {
			if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		svc.StartMonitoring(gctx, monitorInterval)
		return nil
	})
	g.Go(func() error {
		services.CollectAndPushMetrics(gctx, cfg.Metrics, pushInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func init() {
	serverCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (default from config server.address)")
	serverCmd.Flags().BoolVar(&withSocket, "socket", false, "Also listen on <home>/hivekeeper.sock")
	root.RootCmd.AddCommand(serverCmd)
}
