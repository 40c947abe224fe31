package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"hivekeeper/internal/env"

	"github.com/spf13/viper"
)

/**
 * Logging configuration
 * @property {string} level - Log level (debug/info/warn/error)
 */
type LogConfig struct {
	Level string `mapstructure:"level"`
}

/**
 * Supervisor timing bounds
 * @property {time.Duration} ready_timeout - Max wait for the readiness event
 * @property {time.Duration} stop_timeout - Max wait after the graceful signal
 * @property {time.Duration} kill_timeout - Max wait after the forced kill
 * @property {time.Duration} port_release_timeout - Max wait for the port to be released
 */
type SupervisorConfig struct {
	ReadyTimeout       time.Duration `mapstructure:"ready_timeout"`
	StopTimeout        time.Duration `mapstructure:"stop_timeout"`
	KillTimeout        time.Duration `mapstructure:"kill_timeout"`
	PortReleaseTimeout time.Duration `mapstructure:"port_release_timeout"`
}

// SyslogConfig holds defaults for the optional syslog sink.
type SyslogConfig struct {
	Protocol string  `mapstructure:"protocol"`
	Host     string  `mapstructure:"host"`
	Port     int     `mapstructure:"port"`
	Rate     float64 `mapstructure:"rate"`
	Burst    int     `mapstructure:"burst"`
}

type CatalogConfig struct {
	URL string `mapstructure:"url"`
}

/**
 * Metrics configuration
 * @property {string} pushgateway - Pushgateway address, empty disables pushing
 * @property {string} job - Job label used when pushing
 */
type MetricsConfig struct {
	Pushgateway string `mapstructure:"pushgateway"`
	Job         string `mapstructure:"job"`
}

/**
 * Management server configuration
 * @property {string} address - Listening address (e.g. "127.0.0.1:8765")
 * @property {string} mode - gin mode (debug/release/test)
 */
type ServerConfig struct {
	Address string `mapstructure:"address"`
	Mode    string `mapstructure:"mode"`
}

type AppConfig struct {
	Log        LogConfig        `mapstructure:"log"`
	Supervisor SupervisorConfig `mapstructure:"supervisor"`
	Syslog     SyslogConfig     `mapstructure:"syslog"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Server     ServerConfig     `mapstructure:"server"`
}

var Config AppConfig = Default()

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("supervisor.ready_timeout", 10*time.Second)
	v.SetDefault("supervisor.stop_timeout", 5*time.Second)
	v.SetDefault("supervisor.kill_timeout", 3*time.Second)
	v.SetDefault("supervisor.port_release_timeout", 5*time.Second)
	v.SetDefault("syslog.protocol", "udp")
	v.SetDefault("syslog.host", "127.0.0.1")
	v.SetDefault("syslog.port", 514)
	v.SetDefault("syslog.rate", 200.0)
	v.SetDefault("syslog.burst", 400)
	v.SetDefault("catalog.url", "https://raw.githubusercontent.com/hivekeeper/catalog/main")
	v.SetDefault("metrics.pushgateway", "")
	v.SetDefault("metrics.job", "hivekeeper")
	v.SetDefault("server.address", "127.0.0.1:8765")
	v.SetDefault("server.mode", "release")
}

// Default returns the configuration used when no file or env override exists.
func Default() AppConfig {
	v := viper.New()
	setDefaults(v)
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("invalid default config: %v", err))
	}
	return cfg
}

/**
 * Load application configuration
 * @param {string} home - Home directory searched for config.yaml
 * @param {string} file - Explicit config file, overrides the home lookup
 * @returns {(*AppConfig, error)} Loaded configuration
 * @description
 * - Applies defaults, then the config file if present, then HIVEKEEPER_* env vars
 * - A missing config file is not an error
 */
func Load(home, file string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(env.ConfigPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(env.ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(home)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func Get() *AppConfig {
	return &Config
}
