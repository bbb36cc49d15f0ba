package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultDBPath is where the ground station expects its database when nothing
// else is configured.
const DefaultDBPath = "/app/src/data.db"

// EnvPrefix prefixes environment overrides, e.g. GCSDB_DATABASE_PATH.
const EnvPrefix = "GCSDB"

type DatabaseConfig struct {
	Path        string        `mapstructure:"path"`
	JournalMode string        `mapstructure:"journal_mode"`
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
}

// flagKeys maps command-line flag names onto configuration keys.
var flagKeys = map[string]string{
	"db":        "database.path",
	"log-level": "log.level",
}

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// Load resolves the configuration. Precedence is flag, environment,
// config file, default. configFile and envFile are optional; a named
// config file that cannot be read is an error. flags may be nil.
func Load(configFile, envFile string, flags *pflag.FlagSet) (*Config, error) {
	if err := LoadDotEnv(envFile); err != nil {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	v := viper.New()
	v.SetDefault("database.path", DefaultDBPath)
	v.SetDefault("database.journal_mode", "WAL")
	v.SetDefault("database.busy_timeout", 5*time.Second)
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return nil, fmt.Errorf("database path is empty")
	}

	return &c, nil
}
