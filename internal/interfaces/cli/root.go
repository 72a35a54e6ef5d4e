// Package cli implements the msrisk command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/bootstrap"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/config"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/client"
	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// cliContextKey is the context key for CLIContext.
type cliContextKey struct{}

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath   string
	LogLevel     string
	OutputFormat string
	Verbose      bool
	Timeout      time.Duration
	ServerAddr   string
	APIKey       string
}

// CLIContext carries initialized dependencies through the command tree.
type CLIContext struct {
	Config       *config.Config
	Logger       logging.Logger
	OutputFormat string
	Timeout      time.Duration

	backend Backend
	newApp  func(ctx context.Context) (*bootstrap.App, error)
	app     *bootstrap.App
}

// RootOption customizes NewRootCommand.
type RootOption func(*rootSettings)

type rootSettings struct {
	backend Backend
}

// WithBackend fixes the backend instead of building one from flags.
func WithBackend(b Backend) RootOption {
	return func(s *rootSettings) { s.backend = b }
}

// NewRootCommand creates the root command with its global flags and
// subcommands.
func NewRootCommand(ropts ...RootOption) *cobra.Command {
	opts := &RootOptions{}
	var settings rootSettings
	for _, o := range ropts {
		o(&settings)
	}

	cmd := &cobra.Command{
		Use:   "msrisk",
		Short: "Modern slavery composite risk scoring",
		Long: "msrisk scores companies for modern slavery risk by blending inherent\n" +
			"geography and industry exposure with the quality of their published\n" +
			"modern slavery statements.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts, settings)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: ./msrisk.yaml, ~/.msrisk/config.yaml)")
	pf.StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVarP(&opts.OutputFormat, "output", "o", "text", "output format (text, json, table)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable debug logging")
	pf.DurationVar(&opts.Timeout, "timeout", 2*time.Minute, "global operation timeout")
	pf.StringVar(&opts.ServerAddr, "server", "", "apiserver address; run in process when empty")
	pf.StringVar(&opts.APIKey, "api-key", "", "bearer token for --server")

	cmd.AddCommand(
		NewAssessCmd(),
		NewBatchCmd(),
		NewLookupCmd(),
		NewRegistryCmd(),
		NewReferenceCmd(),
		NewCapabilitiesCmd(),
		NewVersionCmd(),
	)
	return cmd
}

// persistentPreRun loads config and logger and stores the CLIContext. The
// backend is built lazily so that version and help never touch data.
func persistentPreRun(cmd *cobra.Command, opts *RootOptions, settings rootSettings) error {
	switch strings.ToLower(opts.OutputFormat) {
	case "text", "json", "table":
	default:
		return errors.Newf(errors.ErrCodeBadRequest, "unknown output format %q; expected text|json|table", opts.OutputFormat)
	}

	cfg, err := initConfig(opts)
	if err != nil {
		return err
	}
	logger, err := initLogger(opts)
	if err != nil {
		return err
	}

	cliCtx := &CLIContext{
		Config:       cfg,
		Logger:       logger,
		OutputFormat: strings.ToLower(opts.OutputFormat),
		Timeout:      opts.Timeout,
		backend:      settings.backend,
		newApp: func(ctx context.Context) (*bootstrap.App, error) {
			return bootstrap.Build(ctx, cfg, logger, bootstrap.WithoutKafka())
		},
	}
	if cliCtx.backend == nil && opts.ServerAddr != "" {
		c, err := initClient(opts)
		if err != nil {
			return err
		}
		cliCtx.backend = NewRemoteBackend(c)
	}

	cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cliCtx))
	return nil
}

// initConfig loads configuration with priority: --config, search paths,
// environment only.
func initConfig(opts *RootOptions) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return config.Load(opts.ConfigPath)
	}

	searchPaths := []string{"./msrisk.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".msrisk", "config.yaml"))
	}
	searchPaths = append(searchPaths, "/etc/msrisk/config.yaml")

	for _, p := range searchPaths {
		if _, err := os.Stat(p); err == nil {
			return config.Load(p)
		}
	}
	return config.LoadFromEnv()
}

// initLogger creates a console logger on stderr so stdout stays parseable.
func initLogger(opts *RootOptions) (logging.Logger, error) {
	level := strings.ToLower(opts.LogLevel)
	if opts.Verbose {
		level = "debug"
	}
	return logging.NewLogger(logging.LogConfig{
		Level:            level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

func initClient(opts *RootOptions) (*client.Client, error) {
	copts := []client.Option{client.WithUserAgent("msrisk-cli/" + Version)}
	if opts.APIKey != "" {
		copts = append(copts, client.WithAPIKey(opts.APIKey))
	}
	return client.NewClient(opts.ServerAddr, copts...)
}

// GetCLIContext extracts CLIContext from a cobra command's context.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.New(errors.ErrCodeInternal, "command context is nil")
	}
	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.New(errors.ErrCodeInternal, "CLIContext not found in command context")
	}
	return cliCtx, nil
}

// Backend returns the remote backend, or builds the in-process engine on
// first use.
func (c *CLIContext) Backend(ctx context.Context) (Backend, error) {
	if c.backend != nil {
		return c.backend, nil
	}
	app, err := c.App(ctx)
	if err != nil {
		return nil, err
	}
	c.backend = NewLocalBackend(app)
	return c.backend, nil
}

// App builds the in-process engine on first use.
func (c *CLIContext) App(ctx context.Context) (*bootstrap.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	app, err := c.newApp(ctx)
	if err != nil {
		return nil, err
	}
	c.app = app
	return app, nil
}

func (c *CLIContext) close() {
	if c.app != nil {
		c.app.Close()
		c.app = nil
	}
}

// commandContext bounds a command by the global timeout. The returned
// cancel also releases an in-process engine.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc, *CLIContext, error) {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if cliCtx.Timeout > 0 {
		ctx, cancel = context.WithTimeout(cmd.Context(), cliCtx.Timeout)
	} else {
		ctx, cancel = context.WithCancel(cmd.Context())
	}
	return ctx, func() {
		cancel()
		cliCtx.close()
	}, cliCtx, nil
}

// Execute is the main entry point for the CLI application.
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		PrintError(rootCmd, err)
		return err
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Output
// ─────────────────────────────────────────────────────────────────────────────

// tableProvider is implemented by results that render as a table.
type tableProvider interface {
	TableHeaders() []string
	TableRows() [][]string
}

// jsonProvider is implemented by views whose JSON form is the wrapped value.
type jsonProvider interface {
	JSONValue() interface{}
}

// PrintResult outputs data in the format selected by --output.
func PrintResult(cmd *cobra.Command, data interface{}) error {
	format := "json"
	if cliCtx, err := GetCLIContext(cmd); err == nil {
		format = cliCtx.OutputFormat
	}
	switch format {
	case "json":
		if jp, ok := data.(jsonProvider); ok {
			data = jp.JSONValue()
		}
		return printJSON(cmd, data)
	case "table":
		return printTable(cmd, data)
	default:
		return printText(cmd, data)
	}
}

func printJSON(cmd *cobra.Command, data interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func printText(cmd *cobra.Command, data interface{}) error {
	switch v := data.(type) {
	case string:
		fmt.Fprintln(cmd.OutOrStdout(), v)
	case fmt.Stringer:
		fmt.Fprint(cmd.OutOrStdout(), v.String())
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "%+v\n", v)
	}
	return nil
}

func printTable(cmd *cobra.Command, data interface{}) error {
	if tp, ok := data.(tableProvider); ok {
		fmt.Fprint(cmd.OutOrStdout(), FormatTable(tp.TableHeaders(), tp.TableRows()))
		return nil
	}
	return printText(cmd, data)
}

// PrintError writes a formatted error message to stderr.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err.Error())
}

// PrintSuccess writes a formatted success message to stdout.
func PrintSuccess(cmd *cobra.Command, msg string) {
	fmt.Fprintf(cmd.OutOrStdout(), "OK: %s\n", msg)
}

// FormatTable renders headers and rows as an aligned ASCII table.
func FormatTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}

	colWidths := make([]int, len(headers))
	for i, h := range headers {
		colWidths[i] = len(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(colWidths); i++ {
			if len(row[i]) > colWidths[i] {
				colWidths[i] = len(row[i])
			}
		}
	}

	var sb strings.Builder
	for i, h := range headers {
		if i > 0 {
			sb.WriteString("  ")
		}
		sb.WriteString(padRight(h, colWidths[i]))
	}
	sb.WriteString("\n")
	for i, w := range colWidths {
		if i > 0 {
			sb.WriteString("  ")
		}
		sb.WriteString(strings.Repeat("-", w))
	}
	sb.WriteString("\n")
	for _, row := range rows {
		for i := 0; i < len(headers); i++ {
			if i > 0 {
				sb.WriteString("  ")
			}
			val := ""
			if i < len(row) {
				val = row[i]
			}
			sb.WriteString(padRight(val, colWidths[i]))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
