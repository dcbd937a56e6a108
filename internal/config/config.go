// Package config defines the cobra flag surface and viper environment
// overlay shared by the node and manager binaries. No config file is read.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config holds every flag a kvgossip binary accepts, after the viper
// environment overlay has been applied.
type Config struct {
	Topic              string        `mapstructure:"topic"`
	TCPListen          string        `mapstructure:"tcp_listen"`
	HeartbeatInterval  time.Duration `mapstructure:"heartbeat_interval"`
	LogLevel           string        `mapstructure:"log_level"`
	ConnectMultiaddr   string        `mapstructure:"connect"`
}

// EnvPrefix is the prefix for every environment variable binding, e.g.
// KVGOSSIP_TOPIC, KVGOSSIP_TCP_LISTEN, KVGOSSIP_HEARTBEAT_INTERVAL,
// KVGOSSIP_LOG_LEVEL, KVGOSSIP_CONNECT.
const EnvPrefix = "KVGOSSIP"

// Default values for every flag, used both as cobra flag defaults and as
// viper defaults so an unset env var and an unset flag agree.
const (
	DefaultTopic             = "test-topic"
	DefaultTCPListen         = "/ip4/0.0.0.0/tcp/0"
	DefaultHeartbeatSeconds  = 10
	DefaultLogLevel          = "info"
)

// RegisterFlags adds the shared flag set to cmd, suitable for both the node
// and manager root commands.
func RegisterFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("topic", DefaultTopic, "gossipsub topic name shared by the whole cluster")
	flags.String("tcp-listen", DefaultTCPListen, "multiaddr to listen on")
	flags.Int("heartbeat-interval", DefaultHeartbeatSeconds, "gossipsub heartbeat interval in seconds (not the 1-second signature tick)")
	flags.String("log-level", DefaultLogLevel, "log level: debug, info, warn, error")
	flags.String("connect", "", "full /p2p multiaddr of a peer to dial at startup")
}

// Load binds cmd's flags into viper, applies the KVGOSSIP_* environment
// overlay, and unmarshals the result into a Config.
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("config: bind flags: %w", err)
	}

	cfg := &Config{
		Topic:             v.GetString("topic"),
		TCPListen:         v.GetString("tcp-listen"),
		HeartbeatInterval: time.Duration(v.GetInt("heartbeat-interval")) * time.Second,
		LogLevel:          v.GetString("log-level"),
		ConnectMultiaddr:  v.GetString("connect"),
	}
	return cfg, nil
}
