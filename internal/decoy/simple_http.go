package decoy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"hivekeeper/internal/middleware"

	"github.com/gin-gonic/gin"
)

const nginxWelcome = `<!DOCTYPE html>
<html>
<head>
<title>Welcome to nginx!</title>
<style>
    body {
        width: 35em;
        margin: 0 auto;
        font-family: Tahoma, Verdana, Arial, sans-serif;
    }
</style>
</head>
<body>
<h1>Welcome to nginx!</h1>
<p>If you see this page, the nginx web server is successfully installed and
working. Further configuration is required.</p>

<p>For online documentation and support please refer to
<a href="http://nginx.org/">nginx.org</a>.<br/>
Commercial support is available at
<a href="http://nginx.com/">nginx.com</a>.</p>

<p><em>Thank you for using nginx.</em></p>
</body>
</html>
`

const shutdownTimeout = 3 * time.Second

/**
 * SimpleHTTP pretends to be a stock nginx
 * @description
 * - Every request, whatever method and path, gets the welcome page
 * - Every request is reported as an interaction
 * - threading=false serializes request handling
 */
type SimpleHTTP struct {
	opts     Options
	rep      *reporter
	engine   *gin.Engine
	serialMu *sync.Mutex
}

func NewSimpleHTTP(opts Options) (Decoy, error) {
	gin.SetMode(gin.ReleaseMode)
	d := &SimpleHTTP{opts: opts, rep: newReporter(opts)}
	if threading, _ := opts.Params.Bool("threading"); !threading {
		d.serialMu = &sync.Mutex{}
	}

	r := gin.New()
	// 记录真实对端地址，不信任 X-Forwarded-For
	if err := r.SetTrustedProxies(nil); err != nil {
		return nil, err
	}
	r.Use(gin.Recovery())
	r.Use(middleware.MetricsMiddleware(opts.Service))
	r.Use(d.serialize())
	r.Use(d.report())
	r.NoRoute(d.welcome)
	d.engine = r
	return d, nil
}

// Handler exposes the router, for tests.
func (d *SimpleHTTP) Handler() http.Handler {
	return d.engine
}

func (d *SimpleHTTP) serialize() gin.HandlerFunc {
	return func(c *gin.Context) {
		if d.serialMu == nil {
			c.Next()
			return
		}
		d.serialMu.Lock()
		defer d.serialMu.Unlock()
		c.Next()
	}
}

func (d *SimpleHTTP) report() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		req := c.Request
		d.rep.interaction(c.ClientIP(), req.Method+" "+req.URL.RequestURI(), map[string]interface{}{
			"user_agent": req.UserAgent(),
			"host":       req.Host,
			"status":     c.Writer.Status(),
		})
	}
}

func (d *SimpleHTTP) welcome(c *gin.Context) {
	c.Header("Server", "nginx")
	if c.Request.Method == http.MethodHead {
		c.Status(http.StatusOK)
		return
	}
	c.Data(http.StatusOK, "text/html", []byte(nginxWelcome))
}

/**
 * Serve until ctx is cancelled
 * @param {context.Context} ctx - Cancellation starts a graceful shutdown
 * @returns {error} Bind or serve failure
 * @description
 * - Binds IPv4 only; readiness is announced after the bind succeeded
 */
func (d *SimpleHTTP) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp4", net.JoinHostPort("0.0.0.0", strconv.Itoa(d.opts.Port)))
	if err != nil {
		d.rep.errorf("bind port %d: %v", d.opts.Port, err)
		return fmt.Errorf("bind port %d: %w", d.opts.Port, err)
	}
	srv := &http.Server{
		Handler:           d.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	d.rep.ready(d.opts.Port)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		srv.Close()
	}
	return nil
}
