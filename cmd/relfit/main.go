// Package main contains the cli implementation of the tool. It uses
// cobra package for cli tool implementation.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"relfit/internal/connector"
	"relfit/internal/dataframe"
	_ "relfit/internal/dialect/mysql"
	_ "relfit/internal/dialect/postgres"
	_ "relfit/internal/dialect/sqlite"
	"relfit/internal/encoding"
	"relfit/internal/engine"
	"relfit/internal/hyperparams"
	"relfit/internal/metrics"
	"relfit/internal/pipeline"
	"relfit/internal/schema"
	"relfit/internal/server"
)

// fitFlags names the inputs every fit/transform/score/sql invocation
// needs: there is no process shared with a prior invocation, so each
// command refits the pipeline from scratch before doing its own work
// (the same stateless, recompute-from-files shape as the teacher's
// diff/migrate commands; only `serve` keeps long-lived state).
type fitFlags struct {
	root        string
	dataset     string
	hyperparams string
	target      string
	name        string
}

type transformFlags struct {
	fitFlags
	output string
}

type scoreFlags struct {
	fitFlags
	metric string
}

type sqlFlags struct {
	fitFlags
	dialect string
}

type serveFlags struct {
	addr string
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "relfit",
		Short: "Relational feature engineering engine",
	}

	rootCmd.AddCommand(fitCmd())
	rootCmd.AddCommand(transformCmd())
	rootCmd.AddCommand(scoreCmd())
	rootCmd.AddCommand(sqlCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addFitFlags(cmd *cobra.Command, flags *fitFlags) {
	cmd.Flags().StringVar(&flags.root, "root", "", "Path to the schema tree JSON file (required)")
	cmd.Flags().StringVar(&flags.dataset, "dataset", "", "Path to the dataset manifest JSON file (required)")
	cmd.Flags().StringVar(&flags.hyperparams, "hyperparams", "", "Path to the hyperparameters TOML file (required)")
	cmd.Flags().StringVar(&flags.target, "target", "", "Name of the target column on the population table (required)")
	cmd.Flags().StringVar(&flags.name, "name", "pipeline", "Name recorded on the fitted pipeline")
}

func fitCmd() *cobra.Command {
	flags := &fitFlags{}
	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit a pipeline and print its importances",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runFit(flags)
		},
	}
	addFitFlags(cmd, flags)
	return cmd
}

// fitSummary is the fit subcommand's JSON report: the exported parts of
// pipeline.Pipeline relevant to a caller who cannot hold onto the
// *pipeline.Pipeline value itself across a process boundary.
type fitSummary struct {
	Name               string             `json:"name"`
	Fingerprint        string             `json:"fingerprint"`
	NumFeatureLearners int                `json:"num_feature_learners"`
	FeatureImportances map[string]float64 `json:"feature_importances"`
	ColumnImportances  map[string]float64 `json:"column_importances"`
}

func runFit(flags *fitFlags) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	p, _, err := fitPipeline(context.Background(), flags, log)
	if err != nil {
		return err
	}

	summary := fitSummary{
		Name:               p.Name,
		Fingerprint:        string(p.Fingerprint),
		NumFeatureLearners: len(p.FeatureLearners),
		FeatureImportances: p.FeatureImportances,
		ColumnImportances:  p.ColumnImportances,
	}
	return printJSON(summary)
}

func transformCmd() *cobra.Command {
	flags := &transformFlags{}
	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Fit a pipeline and print predictions for every population row",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runTransform(flags)
		},
	}
	addFitFlags(cmd, &flags.fitFlags)
	cmd.Flags().StringVar(&flags.output, "output", "", "Output file for predictions (default: stdout)")
	return cmd
}

func runTransform(flags *transformFlags) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx := context.Background()
	p, tables, err := fitPipeline(ctx, &flags.fitFlags, log)
	if err != nil {
		return err
	}

	yhat, err := p.Transform(ctx, tables)
	if err != nil {
		return fmt.Errorf("transform: %w", err)
	}

	if flags.output == "" {
		return printJSON(yhat)
	}
	raw, err := json.MarshalIndent(yhat, "", "  ")
	if err != nil {
		return fmt.Errorf("transform: encode predictions: %w", err)
	}
	if err := os.WriteFile(flags.output, raw, 0o644); err != nil {
		return fmt.Errorf("transform: write %q: %w", flags.output, err)
	}
	fmt.Printf("wrote %d predictions to %s\n", len(yhat), flags.output)
	return nil
}

func scoreCmd() *cobra.Command {
	flags := &scoreFlags{}
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Fit a pipeline and print a metric against the target column",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runScore(flags)
		},
	}
	addFitFlags(cmd, &flags.fitFlags)
	cmd.Flags().StringVar(&flags.metric, "metric", string(metrics.RMSEKind), "Metric to compute: accuracy, auc, rmse, mae, r_squared, cross_entropy")
	return cmd
}

func runScore(flags *scoreFlags) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx := context.Background()
	p, tables, err := fitPipeline(ctx, &flags.fitFlags, log)
	if err != nil {
		return err
	}

	result, err := p.Score(ctx, tables, flags.fitFlags.target, metrics.Kind(flags.metric))
	if err != nil {
		return fmt.Errorf("score: %w", err)
	}
	return printJSON(result)
}

func sqlCmd() *cobra.Command {
	flags := &sqlFlags{}
	cmd := &cobra.Command{
		Use:   "sql",
		Short: "Fit a pipeline and print its feature SQL",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runSQL(flags)
		},
	}
	addFitFlags(cmd, &flags.fitFlags)
	cmd.Flags().StringVar(&flags.dialect, "dialect", "mysql", "SQL dialect: mysql, postgresql, sqlite")
	return cmd
}

func runSQL(flags *sqlFlags) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx := context.Background()
	p, tables, err := fitPipeline(ctx, &flags.fitFlags, log)
	if err != nil {
		return err
	}

	statements, err := renderSQL(p, tables, flags.dialect)
	if err != nil {
		return fmt.Errorf("sql: %w", err)
	}
	for _, stmt := range statements {
		fmt.Println(stmt)
		fmt.Println()
	}
	return nil
}

func serveCmd() *cobra.Command {
	flags := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the command server",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(flags)
		},
	}
	cmd.Flags().StringVar(&flags.addr, "addr", "127.0.0.1:1708", "Address to listen on")
	return cmd
}

func runServe(flags *serveFlags) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := engine.New()
	s := server.New(e, log)
	return s.Serve(ctx, flags.addr)
}

func newLogger() (*zap.Logger, error) {
	log, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	return log, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func sharedEncodings() connector.Encodings {
	return connector.Encodings{Categories: encoding.New(), JoinKeys: encoding.New(), Words: encoding.New()}
}

// fitPipeline loads --root/--dataset/--hyperparams, fits a fresh
// pipeline.Pipeline against them, and returns it alongside the loaded
// tables (transform/score/sql all need both).
func fitPipeline(ctx context.Context, flags *fitFlags, log *zap.Logger) (*pipeline.Pipeline, map[string]*dataframe.DataFrame, error) {
	if flags.root == "" || flags.dataset == "" || flags.hyperparams == "" || flags.target == "" {
		return nil, nil, fmt.Errorf("--root, --dataset, --hyperparams, and --target are all required")
	}

	rootFile, err := os.Open(flags.root)
	if err != nil {
		return nil, nil, fmt.Errorf("open schema file %q: %w", flags.root, err)
	}
	defer rootFile.Close()
	root, err := schema.ParseJSON(rootFile)
	if err != nil {
		return nil, nil, err
	}

	tables, err := loadDataset(flags.dataset, sharedEncodings())
	if err != nil {
		return nil, nil, err
	}

	hp, err := hyperparams.ParseFile(flags.hyperparams)
	if err != nil {
		return nil, nil, err
	}

	p := &pipeline.Pipeline{Name: flags.name}
	if err := p.Fit(ctx, root, tables, flags.target, hp, pipeline.NewCache(), log); err != nil {
		return nil, nil, fmt.Errorf("fit: %w", err)
	}
	return p, tables, nil
}
