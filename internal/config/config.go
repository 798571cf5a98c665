// Package config loads workshop-dl settings from file, environment and flags.
//
// Precedence, highest first: changed command-line flags, WORKSHOP_DL_*
// environment variables, the config file, built-in defaults. The merged
// result is checked against an embedded CUE schema before use.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

//go:embed schema.cue
var schemaCUE string

const (
	// FileName is the config file base name searched for in SearchPaths.
	FileName = "workshop-dl"

	// EnvPrefix prefixes environment overrides, e.g. WORKSHOP_DL_APP_ID.
	EnvPrefix = "WORKSHOP_DL"

	// DefaultAppID is the application whose workshop is used when none is configured.
	DefaultAppID = 4000
)

// Config holds all runtime settings.
type Config struct {
	AppID                 uint64        `mapstructure:"app_id"`
	Tick                  time.Duration `mapstructure:"tick"`
	Timeout               time.Duration `mapstructure:"timeout"`
	RegisterBeforeRequest bool          `mapstructure:"register_before_request"`
	HighPriority          bool          `mapstructure:"high_priority"`
	WorkshopDir           string        `mapstructure:"workshop_dir"`
	APIBaseURL            string        `mapstructure:"api_base_url"`
	APIKey                string        `mapstructure:"api_key"`
	Journal               string        `mapstructure:"journal"`
	LogLevel              string        `mapstructure:"log_level"`
	Format                string        `mapstructure:"format"`
}

// Error reports an unreadable or invalid configuration.
type Error struct {
	Source string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s: %v", e.Source, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// LoadOptions controls where Load looks.
type LoadOptions struct {
	// ConfigFile is an explicit file; it must exist when set.
	ConfigFile string

	// SearchPaths are searched for FileName.yaml when ConfigFile is empty.
	// Defaults to the user config directory and the working directory.
	SearchPaths []string

	// Flags are bound by key, with dashes in flag names read as underscores.
	Flags *pflag.FlagSet
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_id", DefaultAppID)
	v.SetDefault("tick", 100*time.Millisecond)
	v.SetDefault("timeout", 30*time.Minute)
	v.SetDefault("register_before_request", false)
	v.SetDefault("high_priority", true)
	v.SetDefault("workshop_dir", defaultWorkshopDir())
	v.SetDefault("api_base_url", "https://api.steampowered.com")
	v.SetDefault("api_key", "")
	v.SetDefault("journal", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("format", "text")
}

func defaultWorkshopDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "workshop-dl", "content")
	}
	return filepath.Join(os.TempDir(), "workshop-dl", "content")
}

func defaultSearchPaths() []string {
	var paths []string
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "workshop-dl"))
	}
	return append(paths, ".")
}

// Load merges defaults, file, environment and flags, then validates.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		paths := opts.SearchPaths
		if paths == nil {
			paths = defaultSearchPaths()
		}
		for _, p := range paths {
			v.AddConfigPath(p)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		if err := bindFlags(v, opts.Flags); err != nil {
			return nil, &Error{Source: "flags", Err: err}
		}
	}

	source := "defaults"
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, &Error{Source: "file", Err: err}
		}
	} else {
		source = v.ConfigFileUsed()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &Error{Source: source, Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &Error{Source: source, Err: err}
	}
	return &cfg, nil
}

// bindFlags binds every flag whose name matches a known key.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	known := make(map[string]bool)
	for _, k := range v.AllKeys() {
		known[k] = true
	}

	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if !known[key] || err != nil {
			return
		}
		err = v.BindPFlag(key, f)
	})
	return err
}

// Validate checks c against the embedded CUE schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	value := schema.Unify(ctx.Encode(c.values()))
	return formatCUEError(value.Validate(cue.Concrete(true)))
}

// ValidationError is the first schema violation of a Config.
type ValidationError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *ValidationError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s (%s:%d)", e.Message, e.Pos.Filename(), e.Pos.Line())
	}
	return e.Message
}

// formatCUEError reduces a CUE error list to its first entry with the
// offending field and schema position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	verr := &ValidationError{
		Field:   strings.Join(first.Path(), "."),
		Message: first.Error(),
	}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		verr.Pos = positions[0]
	}
	return verr
}

// values flattens c into schema keys; durations become nanoseconds.
func (c *Config) values() map[string]any {
	return map[string]any{
		"app_id":                  c.AppID,
		"tick":                    int64(c.Tick),
		"timeout":                 int64(c.Timeout),
		"register_before_request": c.RegisterBeforeRequest,
		"high_priority":           c.HighPriority,
		"workshop_dir":            c.WorkshopDir,
		"api_base_url":            c.APIBaseURL,
		"api_key":                 c.APIKey,
		"journal":                 c.Journal,
		"log_level":               c.LogLevel,
		"format":                  c.Format,
	}
}

// SlogLevel maps LogLevel to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
