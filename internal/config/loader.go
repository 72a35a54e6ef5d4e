package config

import (
	stderrors "errors"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

// envPrefix is the environment variable prefix used by all engine settings.
const envPrefix = "MSRISK"

// newViper builds a Viper instance with YAML file type, MSRISK_ env prefix and
// a "." → "_" key replacer, so "oracle.api_key" resolves to MSRISK_ORACLE_API_KEY.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	registerBoolDefaults(v)
	bindEnvKeys(v)
	return v
}

// bindEnvKeys makes keys that have no file value visible to Unmarshal when
// they are only set through the environment.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"server.port", "server.mode",
		"log.level", "log.format",
		"oracle.base_url", "oracle.api_key", "oracle.model", "oracle.timeout",
		"enrichment.cache",
		"enrichment.news.api_key", "enrichment.news.base_url",
		"enrichment.world_bank.base_url",
		"reference.source", "reference.countries_path", "reference.industries_path", "reference.registry_dir",
		"redis.addr", "redis.password",
		"kafka.brokers", "kafka.group_id",
		"minio.endpoint", "minio.access_key", "minio.secret_key", "minio.bucket", "minio.prefix",
	} {
		_ = v.BindEnv(key)
	}
}

// Load reads the YAML file at configPath, merges MSRISK_* environment
// overrides, applies defaults and validates the result. Every failure is a
// CFG_ coded *errors.AppError and is fatal for the caller.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		if stderrors.As(err, &pathErr) || stderrors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, errors.Wrap(err, errors.ErrCodeConfigFileMissing, "config: file not found").WithDetail(configPath)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfiguration, "config: failed to read config file").WithDetail(configPath)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from MSRISK_* environment variables and
// defaults, with no config file.
//
//	MSRISK_<SECTION>_<FIELD>   e.g.  MSRISK_ORACLE_API_KEY, MSRISK_REDIS_ADDR
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

// LoadOrDefault loads configPath when it is non-empty and falls back to
// LoadFromEnv otherwise.
func LoadOrDefault(configPath string) (*Config, error) {
	if configPath == "" {
		return LoadFromEnv()
	}
	return Load(configPath)
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfiguration, "config: failed to unmarshal configuration")
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Watch monitors configPath and invokes onChange with the re-parsed Config on
// every write. Invalid edits are reported through onError and never reach
// onChange. Only hot-safe settings (log level) should be applied by callers.
func Watch(configPath string, onChange func(*Config), onError func(error)) {
	v := newViper()
	v.SetConfigFile(configPath)
	_ = v.ReadInConfig()

	v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
}

// MustLoad wraps Load and panics on error. For main() only.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic("config: MustLoad failed: " + err.Error())
	}
	return cfg
}
