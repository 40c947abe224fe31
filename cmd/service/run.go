package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"hivekeeper/cmd/root"
	"hivekeeper/internal/env"
	"hivekeeper/internal/events"
	"hivekeeper/internal/models"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	runDaemon  bool
	jsonLog    string
	useSyslog  bool
	syslogHost string
	syslogPort int
	daemonHost bool
)

var runCmd = &cobra.Command{
	Use:   "run [-d] [-j <path>] [--syslog --syslog-host H --syslog-port P] <name> [param=value ...]",
	Short: "Run a service in the foreground, or as a daemon with -d",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runService,
}

type nopWriteCloser struct{ *os.File }

func (nopWriteCloser) Close() error { return nil }

/**
 * Attach the sinks selected on the command line
 * @param {*root.Session} sess - Session of the invocation
 * @param {bool} console - Also print service events on stdout
 * @returns {error} Returns error if a sink can't be opened
 */
func attachSinks(sess *root.Session, console bool) error {
	if jsonLog != "" {
		sink, err := events.NewJSONFileSink(jsonLog)
		if err != nil {
			return err
		}
		sess.Events.Add(sink)
	}
	if useSyslog {
		cfg := sess.Config.Syslog
		host := syslogHost
		if host == "" {
			host = cfg.Host
		}
		port := syslogPort
		if port == 0 {
			port = cfg.Port
		}
		sink, err := events.NewSyslogSink(events.SyslogConfig{
			Protocol: cfg.Protocol,
			Host:     host,
			Port:     port,
			Rate:     cfg.Rate,
			Burst:    cfg.Burst,
			Product:  root.RootCmd.Name(),
			Version:  root.SoftwareVer,
		})
		if err != nil {
			return err
		}
		sess.Events.Add(sink)
	}
	if console {
		sess.Events.Add(events.NewWriterSink("console", nopWriteCloser{os.Stdout}, true))
	}
	return nil
}

// hostArgs rebuilds the command line for the detached host.
func hostArgs(sess *root.Session, args []string) ([]string, error) {
	out := []string{"--home", sess.Home, "run", "--daemon-host"}
	if jsonLog != "" {
		abs, err := filepath.Abs(jsonLog)
		if err != nil {
			return nil, err
		}
		out = append(out, "-j", abs)
	}
	if useSyslog {
		out = append(out, "--syslog")
		if syslogHost != "" {
			out = append(out, "--syslog-host", syslogHost)
		}
		if syslogPort != 0 {
			out = append(out, "--syslog-port", strconv.Itoa(syslogPort))
		}
	}
	// 透传用户显式设置的全局参数，home已在前面给出
	root.RootCmd.PersistentFlags().Visit(func(f *pflag.Flag) {
		if f.Name != "home" {
			out = append(out, "--"+f.Name+"="+f.Value.String())
		}
	})
	return append(out, args...), nil
}

/**
 * Run a service
 * @description
 * - Parameters are validated before any sink is opened or process spawned
 * - Foreground: blocks until Ctrl-C or SIGTERM, then stops the service
 * - Daemon: spawns a detached host running this command with --daemon-host
 *   and returns once the host reports readiness
 * - Daemon host: only SIGTERM (sent by stop) ends the run
 */
func runService(cmd *cobra.Command, args []string) error {
	sess, err := session(cmd)
	if err != nil {
		return err
	}
	inst, params, err := sess.Manager.Prepare(args[0], args[1:])
	if err != nil {
		return err
	}

	if runDaemon && !daemonHost {
		hargs, err := hostArgs(sess, args)
		if err != nil {
			return err
		}
		rec, err := sess.Manager.Daemonize(cmd.Context(), inst, params, hargs, env.DebugLogPath(sess.Home))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Starting %s service on port: %d\n", inst.Name(), rec.Port)
		fmt.Fprintf(cmd.OutOrStdout(), "%s is running in the background (pid %d)\n", inst.Name(), rec.Pid)
		return nil
	}

	if err := attachSinks(sess, !daemonHost); err != nil {
		return err
	}
	mode := models.ModeForeground
	runID := ""
	var ctx context.Context
	var stop context.CancelFunc
	if daemonHost {
		env.Daemon = true
		mode = models.ModeDaemon
		runID = os.Getenv(env.RunIDEnv)
		signal.Ignore(syscall.SIGINT, syscall.SIGHUP)
		ctx, stop = signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
	} else {
		ctx, stop = signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	}
	defer stop()
	return sess.Manager.Run(ctx, inst, params, mode, runID)
}

func init() {
	flags := runCmd.Flags()
	// name=value tokens follow the service name
	flags.SetInterspersed(false)
	flags.BoolVarP(&runDaemon, "daemon", "d", false, "Run in the background")
	flags.StringVarP(&jsonLog, "json", "j", "", "Also write service events to this JSON lines file")
	flags.BoolVar(&useSyslog, "syslog", false, "Also send service events to syslog")
	flags.StringVar(&syslogHost, "syslog-host", "", "Syslog host (default from config)")
	flags.IntVar(&syslogPort, "syslog-port", 0, "Syslog port (default from config)")
	flags.BoolVar(&daemonHost, "daemon-host", false, "")
	flags.MarkHidden("daemon-host")
	root.RootCmd.AddCommand(runCmd)
}
