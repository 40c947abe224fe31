package env

import (
	"os"
	"path/filepath"
)

const (
	// Environment variable overriding the default home directory
	HomeEnv = "HIVEKEEPER_HOME"
	// Prefix used by viper for every config key override
	ConfigPrefix = "HIVEKEEPER"
	// Child processes receive their validated parameters as JSON in this variable
	ParamsEnv = "HIVEKEEPER_PARAMS"
	// Each parameter is also exported as HIVEKEEPER_PARAM_<NAME>
	ParamPrefix = "HIVEKEEPER_PARAM_"
	// Name and port of the service a child process is running as
	ServiceEnv = "HIVEKEEPER_SERVICE"
	PortEnv    = "HIVEKEEPER_PORT"
	RunIDEnv   = "HIVEKEEPER_RUN_ID"

	DebugLogName = "hivekeeper.debug.log"
	SocketName   = "hivekeeper.sock"
	ConfigName   = "config"
)

// HomeDir is resolved once per invocation by the root command.
// (default: $HIVEKEEPER_HOME, then $HOME/.hivekeeper)
var HomeDir string = GetDefaultHome()

// Daemon is true inside the detached host process of a daemonized service
var Daemon bool = false

/**
 * Get default home directory path
 * @returns {string} Returns home directory path
 */
func GetDefaultHome() string {
	if home := os.Getenv(HomeEnv); home != "" {
		return home
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".hivekeeper"
	}
	return filepath.Join(homeDir, ".hivekeeper")
}

// DebugLogPath returns the audit log under the given home directory.
func DebugLogPath(home string) string {
	return filepath.Join(home, DebugLogName)
}

// SocketPath is where the management server listens when started with --socket.
func SocketPath(home string) string {
	return filepath.Join(home, SocketName)
}
