package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"splitverify/internal/adapters/fileingest"
	"splitverify/internal/domain"
	"splitverify/internal/logging"
	"splitverify/internal/services/autofix"
	"splitverify/internal/services/distributor"
	"splitverify/internal/services/recorder"
	"splitverify/internal/services/validator"
	"splitverify/internal/services/workflow"
)

// issuesError signals that the sheet is still invalid; output was already written.
type issuesError struct{ count int }

func (e *issuesError) Error() string { return fmt.Sprintf("%d validation issues", e.count) }

type cliOptions struct {
	verbose     bool
	contentType string
	autoFix     bool
	grossAmount float64
	taxRate     float64
	maxRows     int

	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{taxRate: distributor.DefaultTaxRate}
	root := &cobra.Command{
		Use:   "splitcheck",
		Short: "Validate royalty split sheets and compute withholding payouts",
		Long: `splitcheck runs the split verification engine against a local CSV or JSON
split sheet. Use "-" as the file to read from stdin.

Exit status is 2 when the sheet still has validation issues.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := "warn"
			if opts.verbose {
				level = "debug"
			}
			logger, err := logging.New(level, "production")
			if err != nil {
				return err
			}
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().StringVar(&opts.contentType, "content-type", "", "override detected content type, e.g. \"text/csv; charset=iso-8859-1\"")
	root.PersistentFlags().IntVar(&opts.maxRows, "max-rows", 500, "maximum contributor rows accepted")

	root.AddCommand(
		newValidateCmd(opts),
		newFixCmd(opts),
		newVerifyCmd(opts),
		newDistributeCmd(opts),
		newSampleCmd(),
	)
	return root
}

func newValidateCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "List validation issues for a split sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sheet, err := opts.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			issues := validator.Validate(sheet)
			if err := printJSON(cmd.OutOrStdout(), map[string]any{
				"totalPercentage": sheet.TotalPercentage(),
				"issues":          nonNil(issues),
			}); err != nil {
				return err
			}
			if len(issues) > 0 {
				return &issuesError{count: len(issues)}
			}
			return nil
		},
	}
}

func newFixCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fix FILE",
		Short: "Auto-fix a split sheet and print the result with any remaining issues",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sheet, err := opts.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fixed := autofix.AutoFix(sheet)
			remaining := validator.Validate(fixed)
			opts.logger.Debug("auto-fix applied",
				zap.Int("before", len(validator.Validate(sheet))),
				zap.Int("after", len(remaining)))
			if err := printJSON(cmd.OutOrStdout(), map[string]any{
				"sheet":           fixed,
				"totalPercentage": fixed.TotalPercentage(),
				"issues":          nonNil(remaining),
			}); err != nil {
				return err
			}
			if len(remaining) > 0 {
				return &issuesError{count: len(remaining)}
			}
			return nil
		},
	}
}

func newVerifyCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify FILE",
		Short: "Verify a split sheet and print its verification record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := opts.verified(cmd.Context(), args[0], false)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), snap); err != nil {
				return err
			}
			if snap.Record == nil {
				return &issuesError{count: len(snap.Issues)}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.autoFix, "autofix", false, "auto-fix the sheet before verifying")
	return cmd
}

func newDistributeCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "distribute FILE",
		Short: "Verify a split sheet and compute the withholding payout table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := distributor.CheckTaxRate(opts.taxRate); err != nil {
				return err
			}
			snap, err := opts.verified(cmd.Context(), args[0], true)
			if err != nil {
				return err
			}
			if snap.Record == nil {
				if err := printJSON(cmd.OutOrStdout(), snap); err != nil {
					return err
				}
				return &issuesError{count: len(snap.Issues)}
			}
			return printJSON(cmd.OutOrStdout(), snap)
		},
	}
	cmd.Flags().BoolVar(&opts.autoFix, "autofix", false, "auto-fix the sheet before verifying")
	cmd.Flags().Float64Var(&opts.grossAmount, "gross", 0, "gross amount to distribute")
	cmd.Flags().Float64Var(&opts.taxRate, "tax-rate", distributor.DefaultTaxRate, "withholding rate in [0, 1]")
	return cmd
}

func newSampleCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "sample [perfect|issues]",
		Short:     "Print a built-in sample split sheet as JSON",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(domain.SamplePerfect), string(domain.SampleIssues)},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := domain.SamplePerfect
			if len(args) == 1 {
				kind = domain.SampleKind(args[0])
			}
			sheet, err := domain.Sample(kind)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sheet)
		},
	}
}

// verified runs load -> [autofix] -> verify -> [distribute] through a workflow
// controller, the same sequence the HTTP service uses.
func (o *cliOptions) verified(ctx context.Context, path string, distribute bool) (workflow.Snapshot, error) {
	sheet, err := o.load(ctx, path)
	if err != nil {
		return workflow.Snapshot{}, err
	}
	ctrl := workflow.New(recorder.New(), o.taxRate)
	if _, err := ctrl.Load(sheet); err != nil {
		return workflow.Snapshot{}, err
	}
	if o.autoFix {
		if _, err := ctrl.AutoFix(); err != nil {
			return workflow.Snapshot{}, err
		}
	}
	snap, _, err := ctrl.Verify()
	if err != nil || snap.Record == nil {
		return snap, err
	}
	o.logger.Debug("sheet verified", zap.String("record", snap.Record.ID), zap.String("digest", snap.Record.Digest))
	if distribute {
		return ctrl.Distribute(o.grossAmount)
	}
	return snap, nil
}

func (o *cliOptions) load(ctx context.Context, path string) (domain.SplitSheet, error) {
	var r io.Reader = os.Stdin
	name := "stdin.csv"
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return domain.SplitSheet{}, err
		}
		defer f.Close()
		r = f
		name = filepath.Base(path)
	}
	contentType := o.contentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(name))
	}
	if ctx == nil {
		ctx = context.Background()
	}
	sheet, err := fileingest.New(o.maxRows).Ingest(ctx, name, contentType, r)
	if err != nil {
		return domain.SplitSheet{}, fmt.Errorf("ingest %s: %w", path, err)
	}
	o.logger.Debug("sheet loaded", zap.String("file", name), zap.Int("contributors", sheet.Len()))
	return sheet, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func nonNil(issues []domain.ValidationIssue) []domain.ValidationIssue {
	if issues == nil {
		return []domain.ValidationIssue{}
	}
	return issues
}
