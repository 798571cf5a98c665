package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/workshopdl/internal/acquire"
	"github.com/roach88/workshopdl/internal/config"
	"github.com/roach88/workshopdl/internal/steamweb"
	"github.com/roach88/workshopdl/internal/workshop"
)

// SessionFactory opens the content service session for a run.
type SessionFactory func(cfg *config.Config, logger *slog.Logger) (workshop.Session, error)

// RootOptions holds global flags and the dependencies shared by all commands.
type RootOptions struct {
	ConfigFile string
	Verbose    bool

	// Populated by PersistentPreRunE.
	Config *config.Config
	Logger *slog.Logger
	Output *OutputFormatter

	// OpenSession overrides the Steam Web API session (for testing).
	OpenSession SessionFactory
	// RunIDs overrides the UUIDv7 run id generator (for testing).
	RunIDs acquire.RunIDGenerator
	// Sleeper overrides the wall-clock tick sleeper (for testing).
	Sleeper acquire.Sleeper
}

// NewRootCommand creates the root command for the workshop-dl CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workshop-dl <url-or-id>...",
		Short: "Download a Steam Workshop item",
		Long: `Download a Steam Workshop item by numeric id or community URL.

Arguments are joined, so a URL split by the shell still parses. If the item
is already installed its location is reported without downloading.

Example:
  workshop-dl 123456789
  workshop-dl 'https://steamcommunity.com/sharedfiles/filedetails/?id=123456789'
  workshop-dl --format json --journal ./runs.db 123456789`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(opts, cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAcquire(cmd.Context(), opts, args)
		},
	}

	// Global flags
	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.ConfigFile, "config", "", "config file (default: search for workshop-dl.yaml)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.String("format", "text", "output format (json|text)")
	pf.String("log-level", "info", "log level (debug|info|warn|error)")
	pf.String("journal", "", "path to SQLite run journal")

	// Acquisition flags, bound to config keys of the same name.
	f := cmd.Flags()
	f.Uint64("app-id", config.DefaultAppID, "application whose workshop is used")
	f.Duration("tick", acquire.DefaultTick, "event pump interval")
	f.Duration("timeout", 0, "overall deadline (default from config)")
	f.Bool("register-before-request", false, "register the completion callback before requesting the download")
	f.Bool("high-priority", true, "request a high-priority download")
	f.String("workshop-dir", "", "directory holding installed items (default from config)")
	f.String("api-base-url", steamweb.DefaultBaseURL, "Steam Web API base URL")
	f.String("api-key", "", "Steam Web API key")

	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// setup loads config and builds the logger and formatter.
func setup(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(config.LoadOptions{ConfigFile: opts.ConfigFile, Flags: cmd.Flags()})
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	opts.Config = cfg

	level := cfg.SlogLevel()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(cmd.ErrOrStderr(), handlerOpts)
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(cmd.ErrOrStderr(), handlerOpts)
	}
	opts.Logger = slog.New(handler)
	slog.SetDefault(opts.Logger)

	opts.Output = &OutputFormatter{
		Format:    cfg.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	return nil
}

// Execute runs the CLI and returns the process exit code.
// A panic anywhere below is reported and mapped to ExitAborted.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return execute(ctx, &RootOptions{}, args, stdout, stderr)
}

func execute(ctx context.Context, opts *RootOptions, args []string, stdout, stderr io.Writer) (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(stderr, "%s aborted: %v\n", StatusPrefix, r)
			code = ExitAborted
		}
	}()

	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		// Flag or argument errors from cobra.
		fmt.Fprintf(stderr, "%s error: %v\n", StatusPrefix, err)
		return ExitCommandError
	}
	if !exitErr.Reported {
		fmt.Fprintf(stderr, "%s error: %v\n", StatusPrefix, exitErr)
	}
	return exitErr.Code
}
