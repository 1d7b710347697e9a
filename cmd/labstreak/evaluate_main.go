package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/labstreak/labstreak/internal/cache"
	"github.com/labstreak/labstreak/internal/config"
	"github.com/labstreak/labstreak/internal/detect"
	"github.com/labstreak/labstreak/internal/obs"
	"github.com/labstreak/labstreak/internal/persistence"
	"github.com/labstreak/labstreak/internal/persistence/postgres"
	"github.com/labstreak/labstreak/internal/rules"
)

func newEvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate all diagnostic rules over an observation batch",
		Long: `Loads observations from a CSV file (or PostgreSQL when configured),
runs every diagnostic rule, and reports per-rule detected patients plus the
cross-rule phenotype summary.`,
		RunE: runEvaluate,
	}

	cmd.Flags().String("input", "", "Observations CSV (patient_id,time,channel,value[,ref]); - for stdin")
	cmd.Flags().String("output", "", "Write per-row detections CSV to this path")
	cmd.Flags().Bool("from-db", false, "Load observations from the configured PostgreSQL instead of CSV")
	cmd.Flags().Bool("store", false, "Persist the run summary to PostgreSQL")
	cmd.Flags().String("input-version", "", "Batch version key for result memoization")
	return cmd
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	fromDB, _ := cmd.Flags().GetBool("from-db")
	store, _ := cmd.Flags().GetBool("store")
	inputPath, _ := cmd.Flags().GetString("input")
	inputVersion, _ := cmd.Flags().GetString("input-version")

	var tab obs.Table
	switch {
	case fromDB:
		if cfg.Storage.PostgresDSN == "" {
			return fmt.Errorf("--from-db requires storage.postgres_dsn in the configuration")
		}
		db, err := postgres.Connect(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		repo := postgres.NewObservationsRepo(db, cfg.Storage.Timeout)
		tab, err = repo.List(ctx, persistence.TimeRange{})
		if err != nil {
			return err
		}
	case inputPath != "":
		var in io.ReadCloser = os.Stdin
		if inputPath != "-" {
			in, err = os.Open(inputPath)
			if err != nil {
				return fmt.Errorf("open input: %w", err)
			}
			defer in.Close()
		}
		var stats obs.LoadStats
		tab, stats, err = obs.ReadCSV(in)
		if err != nil {
			return err
		}
		tab = tab.Sorted()
		if stats.Malformed > 0 {
			log.Warn().Int("malformed", stats.Malformed).Int("rows", stats.Rows).
				Msg("some input rows were malformed")
		}
	default:
		return fmt.Errorf("either --input or --from-db is required")
	}

	if len(tab) == 0 {
		return fmt.Errorf("no observations loaded")
	}
	log.Info().Int("rows", len(tab)).Int("patients", len(tab.Patients())).Msg("observations loaded")

	engine := detect.NewEngine(rules.Builtin(),
		detect.WithCache(cache.New(cfg.Storage.RedisAddr), cfg.Storage.MemoTTL))
	for name, params := range cfg.Rules {
		if err := engine.SetRuleParams(name, params); err != nil {
			log.Warn().Str("rule", name).Msg("configured rule not found, override skipped")
		}
	}

	results, err := engine.Evaluate(ctx, tab, inputVersion)
	if err != nil {
		return err
	}
	summary := detect.Summarize(results)

	printResults(cmd.OutOrStdout(), results, summary)

	if outPath, _ := cmd.Flags().GetString("output"); outPath != "" {
		if err := writeDetectionsCSV(outPath, results); err != nil {
			return err
		}
		log.Info().Str("path", outPath).Msg("detections written")
	}

	if store {
		if cfg.Storage.PostgresDSN == "" {
			return fmt.Errorf("--store requires storage.postgres_dsn in the configuration")
		}
		db, err := postgres.Connect(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return err
		}
		run := persistence.EvaluationRun{
			ID:           uuid.New(),
			InputVersion: inputVersion,
			Params:       cfg.Rules,
			CreatedAt:    time.Now(),
		}
		if err := postgres.NewRunsRepo(db, cfg.Storage.Timeout).CreateRun(ctx, run, summary); err != nil {
			return err
		}
		log.Info().Str("run_id", run.ID.String()).Msg("run summary stored")
	}
	return nil
}

func printResults(w io.Writer, results map[string]rules.Result, summary []detect.PatientPhenotype) {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		res := results[name]
		ids := rules.DetectedIDs(res.Rows)
		fmt.Fprintf(w, "%-20s rows=%-6d detected_patients=%v", name, len(res.Rows), ids)
		if res.Excluded > 0 || res.Collapsed > 0 {
			fmt.Fprintf(w, " (excluded=%d collapsed=%d)", res.Excluded, res.Collapsed)
		}
		fmt.Fprintln(w)
	}

	positive := 0
	for _, p := range summary {
		if p.Phenotype == 1 {
			positive++
		}
	}
	fmt.Fprintf(w, "phenotype: %d of %d patients positive under at least one rule\n", positive, len(summary))
}

func writeDetectionsCSV(path string, results map[string]rules.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if err := cw.Write([]string{"rule", "patient_id", "time", "detected"}); err != nil {
		return err
	}

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, d := range results[name].Rows {
			rec := []string{
				name,
				strconv.FormatInt(d.PatientID, 10),
				d.Time.Format("2006-01-02 15:04:05"),
				strconv.FormatBool(d.Detected),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	return cw.Error()
}
