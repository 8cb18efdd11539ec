package ml

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// TrainerConfig controls one training run.
type TrainerConfig struct {
	Features        Schema
	LabelColumn     string
	TestRatio       float64
	Seed            int64
	NTrees          int
	MaxDepth        int
	MinSamplesSplit int
}

func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		Features:        Schema{FeaturePH, FeatureFecalColiform},
		LabelColumn:     DefaultLabelColumn,
		TestRatio:       0.25,
		Seed:            42,
		NTrees:          300,
		MaxDepth:        0,
		MinSamplesSplit: 2,
	}
}

type Trainer struct {
	config TrainerConfig
	logger *zap.Logger
	now    func() time.Time
}

func NewTrainer(config TrainerConfig, logger *zap.Logger) *Trainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.LabelColumn == "" {
		config.LabelColumn = DefaultLabelColumn
	}
	return &Trainer{config: config, logger: logger, now: time.Now}
}

// Train imputes missing readings, splits off the held-out rows, fits the forest and scores it.
func (t *Trainer) Train(ctx context.Context, ds *Dataset) (*Artifact, error) {
	if ds.Len() == 0 {
		return nil, ErrEmptyDataset
	}
	if err := CheckCompatible(ds.Schema, t.config.Features); err != nil {
		return nil, err
	}

	imputed, imputer, err := Impute(ds)
	if err != nil {
		return nil, fmt.Errorf("impute: %w", err)
	}
	t.logger.Debug("imputed missing readings", zap.Any("means", imputer.Means()))

	train, test, err := TrainTestSplit(imputed, t.config.TestRatio, t.config.Seed)
	if err != nil {
		return nil, fmt.Errorf("split: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	forest := NewRandomForest(t.config.NTrees, t.config.MaxDepth, t.config.MinSamplesSplit, t.config.Seed)
	trainX, trainY := train.Matrix()
	start := time.Now()
	if err := forest.Train(trainX, trainY); err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}
	t.logger.Info("random forest fitted",
		zap.Int("trees", len(forest.Trees)),
		zap.Int("train_rows", train.Len()),
		zap.Duration("elapsed", time.Since(start)),
	)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report, err := Evaluate(forest, test)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	return &Artifact{
		FormatVersion: ArtifactFormatVersion,
		Schema:        append(Schema(nil), ds.Schema...),
		Forest:        forest,
		Report:        report,
		ImputedMeans:  imputer.Means(),
		TrainRows:     train.Len(),
		TestRows:      test.Len(),
		TestRatio:     t.config.TestRatio,
		TrainedAt:     t.now().UTC(),
	}, nil
}

// Run loads the dataset, trains, and overwrites modelPath with the result.
func (t *Trainer) Run(ctx context.Context, datasetPath, modelPath string) (*Artifact, error) {
	if datasetPath == "" {
		return nil, errors.New("dataset path is required")
	}
	if modelPath == "" {
		return nil, errors.New("model path is required")
	}

	ds, err := LoadDataset(datasetPath, t.config.Features, t.config.LabelColumn)
	if err != nil {
		return nil, err
	}
	t.logger.Info("dataset loaded",
		zap.String("path", datasetPath),
		zap.Int("rows", ds.Len()),
		zap.Stringer("schema", ds.Schema),
	)

	artifact, err := t.Train(ctx, ds)
	if err != nil {
		return nil, err
	}
	if err := SaveArtifact(artifact, modelPath); err != nil {
		return nil, fmt.Errorf("save model: %w", err)
	}
	t.logger.Info("model saved",
		zap.String("path", modelPath),
		zap.Float64("accuracy", artifact.Report.Accuracy),
	)
	return artifact, nil
}
