package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "TRIO"

type JoinRateConfig struct {
	Limit    int           `mapstructure:"limit"`
	Interval time.Duration `mapstructure:"interval"`
}

type PresenceConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// Enabled reports whether membership should be mirrored to Redis.
func (p PresenceConfig) Enabled() bool { return p.RedisAddr != "" }

type Config struct {
	Mode       string         `mapstructure:"mode"`
	Port       int            `mapstructure:"port"`
	LogLevel   string         `mapstructure:"log_level"`
	Secret     string         `mapstructure:"secret"`
	ReadLimit  int64          `mapstructure:"read_limit"`
	PingPeriod time.Duration  `mapstructure:"ping_period"`
	PongWait   time.Duration  `mapstructure:"pong_wait"`
	WriteWait  time.Duration  `mapstructure:"write_wait"`
	SendBuffer int            `mapstructure:"send_buffer"`
	JoinRate   JoinRateConfig `mapstructure:"join_rate"`
	Presence   PresenceConfig `mapstructure:"presence"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setServerDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("secret", "trio-dev-secret")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "10s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("join_rate.limit", 5)
	v.SetDefault("join_rate.interval", "10s")
	v.SetDefault("presence.redis_addr", "")
	v.SetDefault("presence.redis_password", "")
	v.SetDefault("presence.redis_db", 0)
	v.SetDefault("presence.ttl", "24h")
}

// Load reads config/config.<CONFIG_ENV>.yaml, falling back to defaults when the
// file is absent. TRIO_* environment variables win over both.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := newViper()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	setServerDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Bool("presence", cfg.Presence.Enabled()).Msg("config ready")
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.PingPeriod >= c.PongWait {
		return fmt.Errorf("ping_period (%s) must be shorter than pong_wait (%s)", c.PingPeriod, c.PongWait)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("send_buffer must be positive, got %d", c.SendBuffer)
	}
	if c.JoinRate.Limit <= 0 || c.JoinRate.Interval <= 0 {
		return fmt.Errorf("join_rate must be positive")
	}
	return nil
}

// PeerConfig configures the participant CLI.
type PeerConfig struct {
	Server   string `mapstructure:"server"`
	Room     string `mapstructure:"room"`
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
}

// LoadPeer binds the command's flags into viper so that flags, TRIO_*
// variables and defaults resolve in that order.
func LoadPeer(flags *pflag.FlagSet) (*PeerConfig, error) {
	v := newViper()
	v.SetDefault("server", "ws://localhost:8080/ws")
	v.SetDefault("room", "")
	v.SetDefault("name", "Anonymous")
	v.SetDefault("log_level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	var cfg PeerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse peer config: %w", err)
	}
	if cfg.Server == "" {
		return nil, fmt.Errorf("server address is required")
	}
	return &cfg, nil
}
