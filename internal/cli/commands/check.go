package commands

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vireo-lang/vireo/internal/cli/config"
	"github.com/vireo-lang/vireo/internal/compiler/diagnostics"
	"github.com/vireo-lang/vireo/internal/compiler/driver"
)

var (
	checkJSON    bool
	checkVerbose bool
)

// NewCheckCommand creates the check command
func NewCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [manifest]",
		Short: "Resolve the blueprint and report diagnostics",
		Long: `Resolve every route of the application blueprint without generating code.

The check process:
  1. Registration - validate and intern every declared component
  2. Resolution - settle the set of constructible types per scope
  3. Consistency - singleton uniqueness, lifecycle layering, borrow rules
  4. Assembly - build one call pipeline per route`,
		Example: `  # Check the manifest configured in vireo.yml
  vireoc check

  # Check a specific manifest
  vireoc check blueprints/api.yml

  # Check and output diagnostics in JSON format (useful for tooling)
  vireoc check --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCheck,
	}

	cmd.Flags().BoolVar(&checkJSON, "json", false, "Output diagnostics in JSON format")
	cmd.Flags().BoolVarP(&checkVerbose, "verbose", "v", false, "Show detailed resolution output")

	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	startTime := time.Now()
	out := cmd.OutOrStdout()

	successColor := color.New(color.FgGreen, color.Bold)
	warningColor := color.New(color.FgYellow)
	infoColor := color.New(color.FgCyan)

	res, cfg, err := compileFromArgs(cmd, args)
	if err != nil {
		return err
	}

	jsonOutput := checkJSON || (cfg != nil && cfg.Report.Format == "json")
	if jsonOutput {
		rendered, err := res.Diagnostics.ToJSON()
		if err != nil {
			return fmt.Errorf("failed to render diagnostics: %w", err)
		}
		fmt.Fprintln(out, rendered)
	} else {
		diagnostics.RenderTerminal(out, res.Diagnostics)
	}

	if !res.Ok() {
		return fmt.Errorf("blueprint check failed")
	}

	if !jsonOutput {
		successColor.Fprintf(out, "✓ %d route(s) resolved", len(res.Pipelines))
		infoColor.Fprintf(out, " in %s\n", time.Since(startTime).Round(time.Millisecond))
		if len(res.Diagnostics) > 0 {
			warningColor.Fprintf(out, "  %d warning(s)\n", len(res.Diagnostics))
		}
	}
	return nil
}

// compileFromArgs resolves the manifest path from the positional argument,
// falling back to the project configuration, and compiles it.
func compileFromArgs(cmd *cobra.Command, args []string) (*driver.Result, *config.Config, error) {
	warningColor := color.New(color.FgYellow)

	cfg, err := config.Load()
	if err != nil {
		if checkVerbose {
			warningColor.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
		}
		cfg = nil
	}

	manifestPath := ""
	if len(args) > 0 {
		manifestPath = args[0]
	} else if cfg != nil {
		manifestPath = cfg.Manifest
	}
	if manifestPath == "" {
		return nil, nil, fmt.Errorf("no manifest given and no vireo.yml found")
	}

	logger := zap.NewNop()
	if checkVerbose {
		if dev, err := zap.NewDevelopment(); err == nil {
			logger = dev
		}
	}
	logger = logger.With(
		zap.String("run_id", uuid.New().String()),
		zap.String("manifest", manifestPath))

	res, err := driver.CompileManifest(manifestPath, logger)
	if err != nil {
		return nil, nil, err
	}
	return res, cfg, nil
}
