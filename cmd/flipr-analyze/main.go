package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/config"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/diagnosis"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/infrastructure"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/services"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/validation"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

// options are the parsed command-line flags
type options struct {
	data       string
	layout     string
	params     string
	diagConfig string
	out        string
	csv        string
	fmg        string
	diagnose   bool
	jsonOut    bool
	workers    int
	version    bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("flipr-analyze", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.data, "data", "", "instrument export to analyze (.txt, .tsv, .seq1)")
	fs.StringVar(&opts.layout, "layout", "", "plate layout: saved .json layout or .csv/.xlsx metadata sheet")
	fs.StringVar(&opts.params, "params", "", "JSON file with analysis parameters; omitted fields use defaults")
	fs.StringVar(&opts.diagConfig, "diagnosis-config", "", "JSON diagnosis configuration")
	fs.StringVar(&opts.out, "out", "", "results workbook to write (.xlsx)")
	fs.StringVar(&opts.csv, "csv", "", "per-well metrics table to write (.csv)")
	fs.StringVar(&opts.fmg, "fmg", "", "write the layout in the instrument plate format")
	fs.BoolVar(&opts.diagnose, "diagnose", false, "run the diagnostic engine and print its verdicts")
	fs.BoolVar(&opts.jsonOut, "json", false, "print the diagnosis as JSON")
	fs.IntVar(&opts.workers, "workers", 0, "concurrent per-well fits (0 uses GOMAXPROCS)")
	fs.BoolVar(&opts.version, "version", false, "print version information and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.version {
		return opts, nil
	}
	if opts.data == "" {
		return nil, errors.New("-data is required")
	}
	if opts.jsonOut {
		opts.diagnose = true
	}
	return opts, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Warn("Failed to load config, using defaults", "error", err)
		cfg = config.Default()
	}
	cfg.Logging.Output = "stderr"
	cfg.Logging.Format = "text"
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		logger = slog.Default()
	}

	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, logger); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "flipr-analyze:", err)
		os.Exit(1)
	}
}

// run executes one batch analysis: load, label, process, optionally diagnose
// and export.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, logger *slog.Logger) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if opts.version {
		fmt.Fprintf(stdout, "flipr-analyze %s\n", contracts.GetVersionInfo())
		return nil
	}

	validator := validation.NewFileValidator(logger)
	if err := validateInputs(validator, opts); err != nil {
		return err
	}

	serviceOpts := services.AnalysisOptions{
		Workers: opts.workers,
		Logger:  logger,
	}
	if opts.params != "" {
		params, err := loadParameters(opts.params)
		if err != nil {
			return err
		}
		serviceOpts.Params = params
	}
	if opts.diagConfig != "" {
		diagCfg, err := diagnosis.LoadConfig(opts.diagConfig)
		if err != nil {
			return err
		}
		serviceOpts.DiagnosisConfig = &diagCfg
	}

	svc, err := services.NewAnalysisService(serviceOpts)
	if err != nil {
		return err
	}

	summary, err := svc.LoadDataFile(ctx, opts.data)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Loaded %s: %d wells, %d frames\n", summary.Name, summary.Wells, summary.Frames)

	if opts.layout != "" {
		if err := applyLayout(ctx, svc, opts.layout, stdout); err != nil {
			return err
		}
	}

	start := time.Now()
	snap, err := svc.Process(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Processed %d wells into %d groups in %s (%d fit failures)\n",
		len(snap.Metrics), len(snap.Groups), time.Since(start).Round(time.Millisecond), snap.FitFailures)
	printGroups(stdout, snap.Groups)

	if opts.diagnose {
		result, err := svc.Diagnose(ctx)
		if err != nil {
			return err
		}
		if opts.jsonOut {
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
		} else {
			printDiagnosis(stdout, result)
		}
	}

	if opts.out != "" {
		if err := writeTo(opts.out, func(w io.Writer) error { return svc.WriteWorkbook(ctx, w) }); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Workbook written to %s\n", opts.out)
	}
	if opts.csv != "" {
		if err := writeTo(opts.csv, func(w io.Writer) error { return svc.WriteMetricsCSV(ctx, w) }); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Metrics written to %s\n", opts.csv)
	}
	if opts.fmg != "" {
		if err := writeTo(opts.fmg, svc.WriteFMG); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Plate layout written to %s\n", opts.fmg)
	}
	return nil
}

func validateInputs(v *validation.FileValidator, opts *options) error {
	if err := v.ValidateDataFile(opts.data); err != nil {
		return err
	}
	if opts.layout != "" {
		if strings.EqualFold(filepath.Ext(opts.layout), ".json") {
			if err := v.ValidateJSONFile(opts.layout); err != nil {
				return err
			}
		} else if err := v.ValidateMetadataFile(opts.layout); err != nil {
			return err
		}
	}
	for _, path := range []string{opts.params, opts.diagConfig} {
		if path == "" {
			continue
		}
		if err := v.ValidateJSONFile(path); err != nil {
			return err
		}
	}
	if opts.out != "" {
		if err := v.ValidateOutputFile(opts.out, validation.WorkbookExtensions); err != nil {
			return err
		}
	}
	if opts.csv != "" {
		if err := v.ValidateOutputFile(opts.csv, []string{".csv"}); err != nil {
			return err
		}
	}
	if opts.fmg != "" {
		if err := v.ValidateOutputFile(opts.fmg, []string{".fmg"}); err != nil {
			return err
		}
	}
	return nil
}

func loadParameters(path string) (domain.AnalysisParameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.AnalysisParameters{}, fmt.Errorf("read parameters %s: %w", path, err)
	}
	var params domain.AnalysisParameters
	if err := json.Unmarshal(data, &params); err != nil {
		return domain.AnalysisParameters{}, fmt.Errorf("parse parameters %s: %w", path, err)
	}
	return params, nil
}

func applyLayout(ctx context.Context, svc *services.AnalysisService, path string, stdout io.Writer) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		_, err := svc.LoadLayoutFile(ctx, path)
		if err == nil {
			fmt.Fprintf(stdout, "Layout loaded from %s\n", path)
		}
		return err
	}

	res, err := svc.ImportMetadataFile(ctx, path)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Metadata imported: %d wells assigned, %d skipped\n", res.Assigned, len(res.Skipped))
	return nil
}

func writeTo(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func printGroups(w io.Writer, groups []domain.GroupSummary) {
	for _, g := range groups {
		fmt.Fprintf(w, "  %-24s n=%-3d peak %.4f ± %.4f  AUC %.4f\n",
			g.Name, g.Peak.N, g.Peak.Mean, g.Peak.SEM, g.AUC.Mean)
	}
}

func printDiagnosis(w io.Writer, result *domain.DiagnosisResult) {
	qc := "PASSED"
	if !result.QCPassed {
		qc = "FAILED"
	}
	fmt.Fprintf(w, "Quality control: %s\n", qc)

	for _, id := range result.TestOrder {
		t, ok := result.Tests[id]
		if !ok {
			continue
		}
		mark := "pass"
		if !t.Passed {
			mark = "FAIL"
		}
		fmt.Fprintf(w, "  [%s] %s\n", mark, t.Name)
	}

	ids := append([]string(nil), result.SampleIDs...)
	sort.Strings(ids)
	for _, id := range ids {
		d, ok := result.Diagnosis[id]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "Sample %s: %s", id, d.Status)
		if d.Message != "" {
			fmt.Fprintf(w, " (%s)", d.Message)
		}
		fmt.Fprintln(w)
	}
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warn.Message)
	}
}
