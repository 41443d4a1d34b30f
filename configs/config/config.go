package config

import (
	"appupdate-go/internal/cstmerr"
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const envPrefix = "APPUPDATE"

// DatabaseConfig holds the optional delivery ledger connection parameters.
type DatabaseConfig struct {
	Enabled      bool          `mapstructure:"db_enabled"`
	Host         string        `mapstructure:"db_host"`
	Port         int           `mapstructure:"db_port"`
	User         string        `mapstructure:"db_user"`
	Password     string        `mapstructure:"db_password"`
	DBName       string        `mapstructure:"db_name"`
	SSLMode      string        `mapstructure:"db_sslmode"`
	ReadTimeout  time.Duration `mapstructure:"db_read_timeout"`
	WriteTimeout time.Duration `mapstructure:"db_write_timeout"`
}

// IdentityConfig is the application identity sent with every manifest query.
type IdentityConfig struct {
	Key            string `mapstructure:"key"`
	IOSPackage     string `mapstructure:"ios_package"`
	AndroidPackage string `mapstructure:"android_package"`
}

// LoaderConfig overrides the loader defaults. Empty fields keep the default.
type LoaderConfig struct {
	Text            string `mapstructure:"text"`
	Color           string `mapstructure:"color"`
	BackgroundColor string `mapstructure:"background_color"`
	TextColor       string `mapstructure:"text_color"`
}

// DialogConfig overrides the confirmation dialog text. Empty fields keep the default.
type DialogConfig struct {
	Title        string `mapstructure:"title"`
	Message      string `mapstructure:"message"`
	ConfirmText  string `mapstructure:"confirm_text"`
	CancelText   string `mapstructure:"cancel_text"`
	OverlayColor string `mapstructure:"overlay_color"`
}

// PromptConfig selects how the confirmation dialog is answered: terminal,
// auto-confirm or auto-cancel.
type PromptConfig struct {
	Mode string `mapstructure:"mode"`
}

// LoggingConfig selects the logrus level and output.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Config matches the structure of the config file and environment variables.
type Config struct {
	APIBaseURL          string         `mapstructure:"api_base_url"`
	RequestTimeout      time.Duration  `mapstructure:"request_timeout"`
	Platform            string         `mapstructure:"platform"`
	BundleDir           string         `mapstructure:"bundle_dir"`
	DownloadBaseDir     string         `mapstructure:"download_base_dir"`
	StorePath           string         `mapstructure:"store_path"`
	RestartAfterInstall bool           `mapstructure:"restart_after_install"`
	RestartDelay        time.Duration  `mapstructure:"restart_delay"`
	DownloadRetries     uint64         `mapstructure:"download_retries"`
	PollIntervalSeconds uint64         `mapstructure:"poll_interval_seconds"`
	Identity            IdentityConfig `mapstructure:"identity"`
	Loader              LoaderConfig   `mapstructure:"loader"`
	Dialog              DialogConfig   `mapstructure:"dialog"`
	Prompt              PromptConfig   `mapstructure:"prompt"`
	Logging             LoggingConfig  `mapstructure:"logging"`
	Database            DatabaseConfig `mapstructure:"database"`
}

// SetDefaults registers the default values shared by the client and the bundle CLI.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api_base_url", "https://dev.3rddigital.com/appupdate-api/api/")
	v.SetDefault("request_timeout", "30s")
	v.SetDefault("platform", "")
	v.SetDefault("bundle_dir", "/var/lib/appupdate/bundles")
	v.SetDefault("download_base_dir", "/var/lib/appupdate/downloads")
	v.SetDefault("store_path", "/var/lib/appupdate/bundles.db")
	v.SetDefault("restart_after_install", true)
	v.SetDefault("restart_delay", "1s")
	v.SetDefault("download_retries", 3)
	v.SetDefault("poll_interval_seconds", 0)

	// Empty defaults make the keys visible to AutomaticEnv during Unmarshal.
	for _, key := range []string{
		"identity.key", "identity.ios_package", "identity.android_package",
		"loader.text", "loader.color", "loader.background_color", "loader.text_color",
		"dialog.title", "dialog.message", "dialog.confirm_text", "dialog.cancel_text", "dialog.overlay_color",
	} {
		v.SetDefault(key, "")
	}

	v.SetDefault("prompt.mode", "terminal")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "console")

	v.SetDefault("database.db_enabled", false)
	v.SetDefault("database.db_host", "localhost")
	v.SetDefault("database.db_port", 5432)
	v.SetDefault("database.db_user", "postgres")
	v.SetDefault("database.db_name", "appupdate")
	v.SetDefault("database.db_sslmode", "disable")
	v.SetDefault("database.db_read_timeout", "5s")
	v.SetDefault("database.db_write_timeout", "5s")
}

// New returns a viper instance with defaults and APPUPDATE_* environment binding.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration using Viper.
// It looks for a config.toml in the standard paths unless configPath is set,
// and environment variables always win over the file.
func Load(configPath string) (*Config, error) {
	return LoadWith(New(), configPath)
}

// LoadWith is Load on a caller-prepared viper instance (flags already bound).
func LoadWith(v *viper.Viper, configPath string) (*Config, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc/appupdate/")
		v.AddConfigPath("$HOME/.appupdate")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Debug("Config file not found, using defaults and environment variables.")
		} else {
			return nil, cstmerr.NewFileIOError("failed to read config file", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, cstmerr.NewConfigError("failed to unmarshal config", err)
	}

	log.Debugf("Configuration loaded. API: %s, platform: %q", config.APIBaseURL, config.Platform)
	return &config, nil
}

// Validate checks the fields the update check cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return cstmerr.NewConfigError("api_base_url is required", nil)
	}
	if strings.TrimSpace(c.Identity.Key) == "" {
		return cstmerr.NewConfigError("identity.key is required", nil)
	}
	if strings.TrimSpace(c.Identity.IOSPackage) == "" || strings.TrimSpace(c.Identity.AndroidPackage) == "" {
		return cstmerr.NewConfigError("identity.ios_package and identity.android_package are required", nil)
	}
	switch c.Prompt.Mode {
	case "terminal", "auto-confirm", "auto-cancel":
	default:
		return cstmerr.NewConfigError("prompt.mode must be terminal, auto-confirm or auto-cancel", nil)
	}
	if c.RestartDelay < 0 {
		return cstmerr.NewConfigError("restart_delay must not be negative", nil)
	}
	return nil
}
