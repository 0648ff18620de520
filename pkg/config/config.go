// Package config loads the gateway's INI/YAML-style configuration
// file with spf13/viper: a load/default/unmarshal/validate pipeline
// covering the fixed DMR-1/DMR-2/XLX-1/XLX-2 collaborator set plus the
// repeater, local bind, voice and ambient (log/web/mqtt/metrics/
// database) sections.
package config

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/viper"
)

// DefaultConfigPath is the platform-specific config path used when no
// positional argument is given on the command line.
func DefaultConfigPath() string {
	if runtime.GOOS == "windows" {
		return "DMRGateway.ini"
	}
	return "/etc/DMRGateway.ini"
}

// Config is the gateway's full configuration: the modem-facing
// repeater/local sockets, the four upstream network collaborators,
// global routing/voice/logging settings, and the ambient web/MQTT/
// metrics collaborators that observe the gateway without sitting on
// its frame-forwarding path.
type Config struct {
	Repeater RepeaterConfig   `mapstructure:"repeater"`
	Local    LocalConfig      `mapstructure:"local"`
	DMR1     DMRNetworkConfig `mapstructure:"dmr1"`
	DMR2     DMRNetworkConfig `mapstructure:"dmr2"`
	XLX1     XLXNetworkConfig `mapstructure:"xlx1"`
	XLX2     XLXNetworkConfig `mapstructure:"xlx2"`

	InactivityTimeout int          `mapstructure:"inactivity_timeout"` // seconds
	Voice             VoiceConfig  `mapstructure:"voice"`
	Daemonize         bool         `mapstructure:"daemonize"`
	Log               LogConfig    `mapstructure:"log"`

	Web      WebConfig      `mapstructure:"web"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Database DatabaseConfig `mapstructure:"database"`
}

// RepeaterConfig is the address/port the local MMDVM repeater connects
// to (the gateway's server-side listen socket for the modem peer).
type RepeaterConfig struct {
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`
}

// LocalConfig is the local bind address/port used as the default
// source for outbound network peers that don't set their own
// local_port.
type LocalConfig struct {
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`
}

// BaseNetworkConfig holds the fields common to every upstream network
// collaborator: DMR-1, DMR-2, XLX-1 and XLX-2.
type BaseNetworkConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Port      int    `mapstructure:"port"`
	LocalPort int    `mapstructure:"local_port"` // 0 means random
	ID        uint32 `mapstructure:"id"`         // 0 means inherit from modem
	Password  string `mapstructure:"password"`
	Options   string `mapstructure:"options"`
	Debug     bool   `mapstructure:"debug"`
}

// ResolvedID returns the network's configured DMR ID, or modemID if
// the network is configured to inherit it (ID == 0).
func (b BaseNetworkConfig) ResolvedID(modemID uint32) uint32 {
	if b.ID == 0 {
		return modemID
	}
	return b.ID
}

// DMRNetworkConfig is one generic DMR master collaborator (DMR-1 or
// DMR-2), with its ordered rewrite-rule lists for both directions of
// traffic.
type DMRNetworkConfig struct {
	BaseNetworkConfig `mapstructure:",squash"`

	TGRewrites   []TGRewriteSpec   `mapstructure:"tg_rewrites"`
	PCRewrites   []PCRewriteSpec   `mapstructure:"pc_rewrites"`
	TypeRewrites []TypeRewriteSpec `mapstructure:"type_rewrites"`
	SrcRewrites  []SrcRewriteSpec  `mapstructure:"src_rewrites"`
}

// XLXNetworkConfig is one XLX reflector collaborator (XLX-1 or XLX-2):
// the network fields plus the primary slot/TG and base offset that
// define its voice pattern and link-control range.
type XLXNetworkConfig struct {
	BaseNetworkConfig `mapstructure:",squash"`

	PrimarySlot int    `mapstructure:"primary_slot"`
	PrimaryTG   uint32 `mapstructure:"primary_tg"`
	Base        uint32 `mapstructure:"base"`
}

// TGRewriteSpec configures one rewrite.TG rule.
type TGRewriteSpec struct {
	FromSlot int    `mapstructure:"from_slot"`
	FromTG   uint32 `mapstructure:"from_tg"`
	ToSlot   int    `mapstructure:"to_slot"`
	ToTG     uint32 `mapstructure:"to_tg"`
	Range    uint32 `mapstructure:"range"`
}

// PCRewriteSpec configures one rewrite.PC rule.
type PCRewriteSpec struct {
	FromSlot int    `mapstructure:"from_slot"`
	FromID   uint32 `mapstructure:"from_id"`
	ToSlot   int    `mapstructure:"to_slot"`
	ToID     uint32 `mapstructure:"to_id"`
	Range    uint32 `mapstructure:"range"`
}

// TypeRewriteSpec configures one rewrite.Type rule.
type TypeRewriteSpec struct {
	FromSlot int    `mapstructure:"from_slot"`
	FromTG   uint32 `mapstructure:"from_tg"`
	ToSlot   int    `mapstructure:"to_slot"`
	ToID     uint32 `mapstructure:"to_id"`
}

// SrcRewriteSpec configures one rewrite.Src rule.
type SrcRewriteSpec struct {
	FromSlot int    `mapstructure:"from_slot"`
	FromID   uint32 `mapstructure:"from_id"`
	ToSlot   int    `mapstructure:"to_slot"`
	ToTG     uint32 `mapstructure:"to_tg"`
	Range    uint32 `mapstructure:"range"`
}

// VoiceConfig controls the local voice-announcement sources.
type VoiceConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Language  string `mapstructure:"language"`
	Directory string `mapstructure:"directory"`
}

// LogConfig holds the log file's directory, base name and the
// separate file/console verbosity levels.
type LogConfig struct {
	Path         string `mapstructure:"path"`
	Root         string `mapstructure:"root"`
	FileLevel    string `mapstructure:"file_level"`
	DisplayLevel string `mapstructure:"display_level"`
}

// WebConfig holds the optional dashboard's listen settings.
type WebConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	AuthRequired bool   `mapstructure:"auth_required"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
}

// MQTTConfig holds the optional MQTT event publisher's settings.
type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	QoS         byte   `mapstructure:"qos"`
	Retained    bool   `mapstructure:"retained"`
}

// MetricsConfig holds the optional Prometheus exposition settings.
type MetricsConfig struct {
	Enabled    bool             `mapstructure:"enabled"`
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig configures the Prometheus exposition endpoint.
type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// DatabaseConfig controls the optional SQLite transmission log.
type DatabaseConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from configFile (or the conventional
// search path/name if empty) and environment variables, applies
// defaults, and validates the result.
func Load(configFile string) (*Config, error) {
	setDefaults()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("DMRGateway")
		viper.SetConfigType("ini")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath("/etc")
	}

	viper.SetEnvPrefix("DMRGATEWAY")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// No config file is fine: run on defaults.
		} else if os.IsNotExist(err) {
			// An explicitly named file that doesn't exist is also fine.
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("repeater.address", "127.0.0.1")
	viper.SetDefault("repeater.port", 62032)

	viper.SetDefault("local.address", "0.0.0.0")
	viper.SetDefault("local.port", 62031)

	viper.SetDefault("inactivity_timeout", 10)
	viper.SetDefault("daemonize", false)

	viper.SetDefault("voice.enabled", false)
	viper.SetDefault("voice.language", "en_US")

	viper.SetDefault("log.file_level", "info")
	viper.SetDefault("log.display_level", "info")

	viper.SetDefault("web.enabled", true)
	viper.SetDefault("web.host", "0.0.0.0")
	viper.SetDefault("web.port", 8080)
	viper.SetDefault("web.auth_required", false)

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.topic_prefix", "dmrgateway")
	viper.SetDefault("mqtt.client_id", "dmrgateway")
	viper.SetDefault("mqtt.qos", 1)
	viper.SetDefault("mqtt.retained", false)

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.prometheus.enabled", true)
	viper.SetDefault("metrics.prometheus.port", 9090)
	viper.SetDefault("metrics.prometheus.path", "/metrics")

	viper.SetDefault("database.enabled", false)
	viper.SetDefault("database.path", "/var/lib/dmrgateway/dmrgateway.db")
}
