// ABOUTME: Layered configuration for bustap: defaults, config file, .env, environment, flags
// ABOUTME: Backed by a viper instance with live reload of the tap settings
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/Resonate-Protocol/bustap/internal/logger"
	"github.com/Resonate-Protocol/bustap/pkg/tap"
	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. BUSTAP_TAP_TARGET
const EnvPrefix = "BUSTAP"

// Settings is the full application configuration
type Settings struct {
	Tap      TapSettings      `mapstructure:"tap"`
	Log      LogSettings      `mapstructure:"log"`
	Metrics  MetricsSettings  `mapstructure:"metrics"`
	Receiver ReceiverSettings `mapstructure:"receiver"`
}

// TapSettings configures the tap and its sink
type TapSettings struct {
	Backend       string        `mapstructure:"backend"`
	Target        string        `mapstructure:"target"`
	Mute          bool          `mapstructure:"mute"`
	SampleRate    int           `mapstructure:"samplerate"`
	RingFrames    int           `mapstructure:"ringframes"`
	BlockFrames   int           `mapstructure:"blockframes"`
	PollInterval  time.Duration `mapstructure:"pollinterval"`
	RetryInterval time.Duration `mapstructure:"retryinterval"`
	Heal          bool          `mapstructure:"heal"`
}

// LogSettings configures logging
type LogSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MetricsSettings configures the Prometheus endpoint; empty Listen disables it
type MetricsSettings struct {
	Listen string `mapstructure:"listen"`
}

// ReceiverSettings configures the network stream receiver
type ReceiverSettings struct {
	Listen  string `mapstructure:"listen"`
	Backend string `mapstructure:"backend"`
	Target  string `mapstructure:"target"`
	Name    string `mapstructure:"name"`
}

// Config wraps a viper instance with bustap's defaults and search paths
type Config struct {
	v *viper.Viper
}

// New creates a Config with defaults, search paths and env binding
func New() *Config {
	v := viper.New()

	v.SetConfigName("config")
	v.AddConfigPath("/etc/bustap")
	v.AddConfigPath("$HOME/.config/bustap")
	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	return &Config{v: v}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tap.backend", tap.DefaultBackend)
	v.SetDefault("tap.target", "")
	v.SetDefault("tap.mute", false)
	v.SetDefault("tap.samplerate", 48000)
	v.SetDefault("tap.ringframes", 4096)
	v.SetDefault("tap.blockframes", 512)
	v.SetDefault("tap.pollinterval", tap.DefaultPollInterval)
	v.SetDefault("tap.retryinterval", tap.DefaultRetryInterval)
	v.SetDefault("tap.heal", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")

	v.SetDefault("metrics.listen", "")

	v.SetDefault("receiver.listen", ":8928")
	v.SetDefault("receiver.backend", tap.DefaultBackend)
	v.SetDefault("receiver.target", "")
	v.SetDefault("receiver.name", defaultReceiverName())
}

func defaultReceiverName() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-bustap", hostname)
}

// BindFlags binds command-line flags by their config key, e.g. a flag
// named "tap.target". Flags without a matching key are ignored by Settings.
func (c *Config) BindFlags(flags *pflag.FlagSet) error {
	return c.v.BindPFlags(flags)
}

// BindFlag binds a single flag to a config key
func (c *Config) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("no flag for %s", key)
	}
	return c.v.BindPFlag(key, flag)
}

// Load reads .env (when present) and the config file. An explicit path
// must exist; without one a missing file in the search paths is fine.
func (c *Config) Load(path string) (*Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if path != "" {
		c.v.SetConfigFile(path)
	}

	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return c.Settings()
}

// Settings decodes and validates the current configuration
func (c *Config) Settings() (*Settings, error) {
	var s Settings
	if err := c.v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// File returns the config file in use, or "" when none was read
func (c *Config) File() string {
	return c.v.ConfigFileUsed()
}

// Watch reloads the config file on change and calls fn with the new
// settings, or with an error when the file no longer decodes
func (c *Config) Watch(fn func(*Settings, error)) {
	c.v.OnConfigChange(func(e fsnotify.Event) {
		if !reloadable(e) {
			return
		}
		fn(c.Settings())
	})
	c.v.WatchConfig()
}

func reloadable(e fsnotify.Event) bool {
	return e.Has(fsnotify.Write) || e.Has(fsnotify.Create)
}

// Validate checks value ranges
func (s *Settings) Validate() error {
	t := s.Tap
	if t.SampleRate <= 0 {
		return fmt.Errorf("tap.samplerate must be positive, got %d", t.SampleRate)
	}
	if t.RingFrames < 2 || t.RingFrames&(t.RingFrames-1) != 0 {
		return fmt.Errorf("tap.ringframes must be a power of two >= 2, got %d", t.RingFrames)
	}
	if t.BlockFrames <= 0 {
		return fmt.Errorf("tap.blockframes must be positive, got %d", t.BlockFrames)
	}
	if t.PollInterval <= 0 {
		return fmt.Errorf("tap.pollinterval must be positive, got %s", t.PollInterval)
	}
	if t.RetryInterval < 0 {
		return fmt.Errorf("tap.retryinterval must not be negative, got %s", t.RetryInterval)
	}
	if _, err := logger.ParseLevel(s.Log.Level); err != nil {
		return err
	}
	return nil
}

// TapConfig maps the settings onto a tap.Config. A zero retry interval
// retries on every cycle.
func (t TapSettings) TapConfig() tap.Config {
	retry := t.RetryInterval
	if retry == 0 {
		retry = tap.NoRetryThrottle
	}
	return tap.Config{
		Backend:       t.Backend,
		SampleRate:    t.SampleRate,
		RingCapacity:  t.RingFrames,
		BlockFrames:   t.BlockFrames,
		PollInterval:  t.PollInterval,
		RetryInterval: retry,
		DisableHeal:   !t.Heal,
		Settings:      tap.NewSettings(t.Target, t.Mute),
	}
}

// Apply pushes the live-reloadable values into running tap settings
func (t TapSettings) Apply(live *tap.Settings) {
	live.SetTarget(t.Target)
	live.SetMute(t.Mute)
}

// LoggerOptions maps the log settings onto logger options
func (l LogSettings) LoggerOptions(console bool) logger.Options {
	return logger.Options{
		Level:   l.Level,
		Format:  l.Format,
		File:    l.File,
		Console: console,
	}
}
