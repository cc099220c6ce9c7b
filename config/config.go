package config

import (
	"bytes"
	"fmt"
	"github.com/denisschmidt/localstore/constants"
	"github.com/spf13/viper"
	"strings"
)

type Options struct {
	AllowedIPAddresses []string `mapstructure:"allowed_ip_addresses"`
	DefaultUserAgent   string   `mapstructure:"default_user_agent"`
	EnableHealth       bool     `mapstructure:"enable_health"`
	EnableStats        bool     `mapstructure:"enable_stats"`
}

type Config struct {
	Debug     bool `mapstructure:"debug"`
	Port      int  `mapstructure:"port"`
	AdminPort int  `mapstructure:"admin_port"`

	// Backend selects the record store: "sqlite" or "bolt"
	Backend               string `mapstructure:"backend"`
	DBDriver              string `mapstructure:"db_driver"`
	DBPath                string `mapstructure:"db_path"`
	DBChunkSize           int    `mapstructure:"db_chunk_size"`
	BoltPath              string `mapstructure:"bolt_path"`
	OptimizeForLitestream bool   `mapstructure:"optimize_for_litestream"`
	// MaxStoreBytes caps the total size of stored records, 0 disables the cap
	MaxStoreBytes int64 `mapstructure:"max_store_bytes"`

	SecretKey      string   `mapstructure:"secret_key"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	Options        *Options `mapstructure:"options"`
}

func DefaultConfig() *Config {
	return &Config{
		Port:        DefaultPort,
		AdminPort:   DefaultAdminPort,
		Backend:     DefaultBackend,
		DBDriver:    DefaultDBDriver,
		DBPath:      DefaultDBPath,
		DBChunkSize: DefaultChunkSize,
		BoltPath:    DefaultBoltPath,
		Options: &Options{
			DefaultUserAgent: fmt.Sprint(DefaultUserAgent, "/", constants.Version),
		},
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	defaultConfig := DefaultConfig()

	v.SetDefault("debug", defaultConfig.Debug)
	v.SetDefault("port", defaultConfig.Port)
	v.SetDefault("admin_port", defaultConfig.AdminPort)
	v.SetDefault("backend", defaultConfig.Backend)
	v.SetDefault("db_driver", defaultConfig.DBDriver)
	v.SetDefault("db_path", defaultConfig.DBPath)
	v.SetDefault("db_chunk_size", defaultConfig.DBChunkSize)
	v.SetDefault("bolt_path", defaultConfig.BoltPath)
	v.SetDefault("optimize_for_litestream", defaultConfig.OptimizeForLitestream)
	v.SetDefault("max_store_bytes", defaultConfig.MaxStoreBytes)
	v.SetDefault("secret_key", "")
	v.SetDefault("allowed_headers", []string{})
	v.SetDefault("allowed_methods", []string{})
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("options.allowed_ip_addresses", []string{})
	v.SetDefault("options.default_user_agent", defaultConfig.Options.DefaultUserAgent)
	v.SetDefault("options.enable_health", defaultConfig.Options.EnableHealth)
	v.SetDefault("options.enable_stats", defaultConfig.Options.EnableStats)

	// LOCALSTORE_DB_PATH, LOCALSTORE_OPTIONS_ENABLE_STATS, ...
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func load(content string, isPath bool) (*Config, error) {
	v := newViper()

	var err error

	if isPath {
		if content != "" {
			v.SetConfigFile(content)
			if err = v.ReadInConfig(); err != nil {
				return nil, err
			}
		}
	} else {
		v.SetConfigType("json")
		if err = v.ReadConfig(bytes.NewBuffer([]byte(content))); err != nil {
			return nil, err
		}
	}

	config := &Config{}
	if err = v.Unmarshal(config); err != nil {
		return nil, err
	}

	if err = config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Load reads the config file at path. An empty path yields the defaults,
// still subject to LOCALSTORE_* environment overrides.
func Load(path string) (*Config, error) {
	return load(path, true)
}

// LoadFromString reads a JSON document
func LoadFromString(content string) (*Config, error) {
	return load(content, false)
}

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSQLite, BackendBolt:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.DBChunkSize <= 0 {
		return fmt.Errorf("db_chunk_size must be positive, got %d", c.DBChunkSize)
	}
	if c.MaxStoreBytes < 0 {
		return fmt.Errorf("max_store_bytes must not be negative, got %d", c.MaxStoreBytes)
	}
	if c.Options == nil {
		c.Options = DefaultConfig().Options
	}
	return nil
}
