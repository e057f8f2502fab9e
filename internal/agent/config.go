package agent

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config wraps the parsed settings tree. Lookup is by dotted key;
// Has reports presence distinctly from a present-but-zero value.
type Config struct {
	v *viper.Viper
}

// LoadConfig reads iq-agent.toml from the working directory or /etc,
// with IQ_-prefixed environment variables taking precedence.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("iq-agent")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/iq-agent")
	v.SetEnvPrefix("IQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("delivery.retries", 3)
	v.SetDefault("delivery.timeout", 300)
	v.SetDefault("monitor.dedup_limit", 4096)
	v.SetDefault("vitals.interval", 300)
	v.SetDefault("executor.poll_interval", 30)
	v.SetDefault("executor.poll_timeout", 300)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	return &Config{v: v}, nil
}

// Has reports whether key is defined in the settings tree.
func (c *Config) Has(key string) bool { return c.v.IsSet(key) }

func (c *Config) GetBool(key string) bool     { return c.v.GetBool(key) }
func (c *Config) GetFloat(key string) float64 { return c.v.GetFloat64(key) }
func (c *Config) GetInt(key string) int       { return c.v.GetInt(key) }
func (c *Config) GetString(key string) string { return c.v.GetString(key) }

// RequireString returns the value for key or an error naming the
// missing key. Used for settings the agent cannot start without.
func (c *Config) RequireString(key string) (string, error) {
	if !c.v.IsSet(key) {
		return "", fmt.Errorf("required config key %q is not set", key)
	}
	return c.v.GetString(key), nil
}
