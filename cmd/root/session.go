package root

import (
	"context"
	"fmt"
	"os"
	"strings"

	"hivekeeper/internal/config"
	"hivekeeper/internal/env"
	"hivekeeper/internal/events"
	"hivekeeper/internal/logger"
	"hivekeeper/services"

	"github.com/spf13/cobra"
)

type sessionKey struct{}

/**
 * Session holds what one invocation works with
 * @property {string} Home - Resolved home directory
 * @property {*config.AppConfig} Config - Loaded configuration
 * @property {*events.Dispatcher} Events - Sink set of this invocation, the debug sink first
 * @property {*services.ServiceManager} Manager - Command orchestrator
 */
type Session struct {
	Home    string
	Config  *config.AppConfig
	Events  *events.Dispatcher
	Manager *services.ServiceManager
}

// SessionFrom returns the session opened for cmd, nil before it was opened.
func SessionFrom(cmd *cobra.Command) *Session {
	if cmd == nil || cmd.Context() == nil {
		return nil
	}
	s, _ := cmd.Context().Value(sessionKey{}).(*Session)
	return s
}

func resolveHome() string {
	if homeDir != "" {
		return homeDir
	}
	return env.GetDefaultHome()
}

func checkRoot() error {
	if os.Geteuid() == 0 && !iamRoot {
		return fmt.Errorf("refusing to run as root, pass --iamroot to override")
	}
	return nil
}

/**
 * Open the session of the invocation
 * @description
 * - Resolves the home directory, loads the config and starts the logger
 * - The debug sink is always attached, run adds the optional sinks
 */
func openSession(cmd *cobra.Command, args []string) error {
	if err := checkRoot(); err != nil {
		return err
	}
	home := resolveHome()
	env.HomeDir = home

	cfg, err := config.Load(home, configFile)
	if err != nil {
		return err
	}
	config.Config = *cfg
	if err := logger.InitLogger(env.DebugLogPath(home), cfg.Log.Level); err != nil {
		return err
	}
	debug, err := events.NewDebugFileSink(env.DebugLogPath(home))
	if err != nil {
		return err
	}
	out := events.NewDispatcher(debug)
	out.OnError(func(sink string, err error) {
		logger.Warnf("sink %s: %v", sink, err)
	})

	sess := &Session{
		Home:   home,
		Config: cfg,
		Events: out,
		Manager: services.NewServiceManager(services.ManagerOptions{
			Home:    home,
			Config:  cfg,
			Events:  out,
			Version: SoftwareVer,
		}),
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, sessionKey{}, sess))

	out.Emit(events.CLI(events.LevelDebug, fmt.Sprintf("%s %s", cmd.CommandPath(), strings.Join(args, " "))))
	return nil
}

// Fail records a command failure in every sink.
func (s *Session) Fail(command string, err error) {
	s.Events.Emit(events.Failure(command, err))
	logger.Errorf("%s: %v", command, err)
}

// Close pushes metrics when configured and closes the sinks.
func (s *Session) Close(command string) {
	if err := services.PushMetrics(s.Config.Metrics, command); err != nil {
		logger.Warnf("%v", err)
	}
	if err := s.Events.Close(); err != nil {
		logger.Warnf("close sinks: %v", err)
	}
	logger.Close()
}

// logEarlyFailure writes a failure that happened before the session existed.
func logEarlyFailure(cmd *cobra.Command, err error) {
	sink, serr := events.NewDebugFileSink(env.DebugLogPath(resolveHome()))
	if serr != nil {
		return
	}
	defer sink.Close()
	command := RootCmd.Name()
	if cmd != nil {
		command = cmd.CommandPath()
	}
	sink.Emit(events.Failure(command, err))
}
