// Command instadmin manages the institution records of the topology
// institutions registry from the command line.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/osg-htc/topology-institutions-admin/internal/shell/institutions"
	"github.com/osg-htc/topology-institutions-admin/internal/shell/ror"
	"github.com/osg-htc/topology-institutions-admin/internal/shell/session"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const appName = "instadmin"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{in: stdin, out: stdout, errOut: stderr}

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	errColor.Fprintf(stderr, "Error: %v\n", err)
	if a.logger != nil {
		a.logger.Debug("command failed", "error", err)
	}
	return exitCode(err)
}

// =============================================================================
// Application
// =============================================================================

// app is the state shared by every command after configuration is loaded.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	configPath string
	envFile    string
	noColor    bool

	cfg    *Config
	logger *slog.Logger
	client *institutions.Client
}

// setup loads configuration and builds the backend client.
func (a *app) setup() error {
	if a.noColor {
		color.NoColor = true
	}

	cfg, err := LoadConfig(a.configPath, a.envFile)
	if err != nil {
		return &CLIError{Op: "load config", Err: err, ExitCode: ExitConfigError}
	}
	a.cfg = cfg
	a.logger = SetupLogger(cfg, a.errOut)
	a.client = institutions.NewClient(institutions.Config{
		BaseURL: cfg.API.BaseURL,
		Headers: cfg.API.Headers,
		Timeout: cfg.API.Timeout,
	}, a.logger)

	a.logger.Debug("configured",
		"version", Version,
		"base_url", cfg.API.BaseURL,
		"ror_verify", cfg.ROR.Verify,
	)
	return nil
}

// formOptions returns the options every add/edit form is built with.
func (a *app) formOptions() []session.FormOption {
	opts := []session.FormOption{session.WithLogger(a.logger)}
	if a.cfg.ROR.Verify {
		opts = append(opts, session.WithRORChecker(ror.NewVerifier(a.cfg.ROR.Timeout, a.logger)))
	}
	return opts
}

// =============================================================================
// Commands
// =============================================================================

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Manage topology institution records",
		Long: `instadmin lists, searches, validates and edits the institution records
served by the topology institutions API.

Records are validated locally before anything is sent to the backend.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup()
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Env file loaded before reading INSTADMIN_* variables")
	cmd.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(
		newListCmd(a),
		newShowCmd(a),
		newAddCmd(a),
		newUpdateCmd(a),
		newDeleteCmd(a),
		newValidateCmd(a),
		newImportCmd(a),
		newBrowseCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s (built %s)\n", appName, Version, BuildTime)
			},
		},
	)

	return cmd
}
