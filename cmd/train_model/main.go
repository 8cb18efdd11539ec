package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"waterguard/config"
	"waterguard/db"
	"waterguard/logging"
	"waterguard/ml"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	dataset    string
	modelPath  string
	features   []string
	trees      int
	testRatio  float64
	seed       int64
}

func rootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "train_model",
		Short: "Train the water quality classifier from a labeled CSV",
		Long: `Reads the labeled dataset, fills missing readings with column means, holds out
a seeded test split, fits a random forest, prints the held-out report and
overwrites the model file.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "config.yaml", "config file path (YAML)")
	flags.StringVar(&opts.dataset, "dataset", "", "labeled CSV dataset (overrides trainer.dataset)")
	flags.StringVar(&opts.modelPath, "model_path", "", "model output path (overrides model.path)")
	flags.StringSliceVar(&opts.features, "features", nil, "comma-separated feature columns (overrides trainer.features)")
	flags.IntVar(&opts.trees, "trees", 0, "number of trees (overrides trainer.trees)")
	flags.Float64Var(&opts.testRatio, "test_ratio", 0, "held-out fraction (overrides trainer.test_ratio)")
	flags.Int64Var(&opts.seed, "seed", 0, "split and forest seed (overrides trainer.seed)")
	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	cfg, cfgErr := config.Load(opts.configPath)
	if cfg == nil {
		return cfgErr
	}
	applyOverrides(cmd, cfg, opts)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()
	if cfgErr != nil {
		if !errors.Is(cfgErr, os.ErrNotExist) {
			return cfgErr
		}
		logger.Warn("config file not found, using defaults", zap.String("path", opts.configPath))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	trainer := ml.NewTrainer(cfg.TrainerConfig(), logger)
	artifact, err := trainer.Run(ctx, cfg.Trainer.Dataset, cfg.Model.Path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "=====================================")
	fmt.Fprintln(out, " WATER QUALITY MODEL PERFORMANCE")
	fmt.Fprintln(out, "=====================================")
	fmt.Fprintf(out, "Features: %s\n", strings.Join(artifact.Schema, ", "))
	fmt.Fprintf(out, "Rows: %d train / %d held out\n\n", artifact.TrainRows, artifact.TestRows)
	fmt.Fprintln(out, "Classification Report:")
	fmt.Fprintln(out)
	fmt.Fprint(out, artifact.Report.String())
	fmt.Fprintf(out, "\nModel saved successfully as %s\n", cfg.Model.Path)

	if cfg.Database.Path != "" {
		store, err := db.Open(cfg.Database.Path)
		if err != nil {
			logger.Warn("training log disabled", zap.Error(err))
			return nil
		}
		defer store.Close()
		if err := store.SaveTrainingRun(ctx, db.TrainingLogFromArtifact(cfg.Model.Path, artifact)); err != nil {
			logger.Warn("failed to record training run", zap.Error(err))
		}
	}
	return nil
}

func applyOverrides(cmd *cobra.Command, cfg *config.Config, opts *options) {
	flags := cmd.Flags()
	if flags.Changed("dataset") {
		cfg.Trainer.Dataset = opts.dataset
	}
	if flags.Changed("model_path") {
		cfg.Model.Path = opts.modelPath
	}
	if flags.Changed("features") {
		cfg.Trainer.Features = opts.features
	}
	if flags.Changed("trees") {
		cfg.Trainer.Trees = opts.trees
	}
	if flags.Changed("test_ratio") {
		cfg.Trainer.TestRatio = opts.testRatio
	}
	if flags.Changed("seed") {
		cfg.Trainer.Seed = opts.seed
	}
}
