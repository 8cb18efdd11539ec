package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"waterguard/config"
	"waterguard/db"
	whttp "waterguard/http"
	"waterguard/logging"
	"waterguard/ml"
	"waterguard/monitoring"
)

const Version = "0.3.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "waterguard",
		Short: "Water quality prediction web UI",
		Long: `Serves a form that classifies a water sample as Safe or Not Safe using the
random forest produced by train_model, and shows each reading next to its
regulatory limit.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "config file path (YAML)")

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the prediction web UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("waterguard version %s\n", Version)
		},
	})
	return cmd
}

func serve(configPath string) error {
	// 1. Load config
	cfg, cfgErr := config.Load(configPath)
	if cfg == nil {
		return cfgErr
	}

	// 2. Logger
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()
	if cfgErr != nil {
		if !errors.Is(cfgErr, os.ErrNotExist) {
			return cfgErr
		}
		logger.Warn("config file not found, using defaults", zap.String("path", configPath))
	}

	// 3. Load the model once; any failure here is fatal
	schema := cfg.Schema()
	predictor, err := ml.LoadPredictor(cfg.Model.Path, schema, cfg.Model.CacheSize)
	if err != nil {
		logger.Fatal("failed to load model", zap.String("path", cfg.Model.Path), zap.Error(err))
	}
	artifact := predictor.Artifact()
	logger.Info("model loaded",
		zap.String("path", cfg.Model.Path),
		zap.Stringer("schema", artifact.Schema),
		zap.Int("trees", len(artifact.Forest.Trees)),
		zap.Float64("holdout_accuracy", artifact.Report.Accuracy),
	)
	models := ml.NewModelHandle(predictor)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics := monitoring.NewMetrics()
	metrics.SetModel(artifact)
	hub := monitoring.NewHub(logger)
	go hub.Run(ctx)

	deps := whttp.Deps{
		Models:     models,
		Inputs:     cfg.Inputs,
		Thresholds: cfg.Thresholds,
		Metrics:    metrics,
		Hub:        hub,
		Logger:     logger,
	}

	// 4. Optional prediction history
	if cfg.Database.Path != "" {
		store, err := db.Open(cfg.Database.Path)
		if err != nil {
			logger.Fatal("failed to open database", zap.String("path", cfg.Database.Path), zap.Error(err))
		}
		defer store.Close()
		deps.Store = store
		logger.Info("prediction history enabled", zap.String("path", cfg.Database.Path))
	}

	// 5. Optional reload when train_model rewrites the model file
	if cfg.Model.Watch {
		watcher, err := ml.NewModelWatcher(cfg.Model.Path, schema, cfg.Model.CacheSize, models, logger,
			func(a *ml.Artifact, err error) {
				metrics.ObserveReload(a, err)
				hub.PublishReload(a, err)
			})
		if err != nil {
			logger.Fatal("failed to watch model file", zap.Error(err))
		}
		go watcher.Run(ctx)
	}

	app, err := whttp.NewApp(deps)
	if err != nil {
		return err
	}

	// 6. Start HTTP server
	serverConfig := whttp.DefaultServerConfig()
	serverConfig.Port = cfg.HTTP.Port
	serverConfig.Timeout = cfg.HTTP.Timeout
	serverConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	server := whttp.NewServer(serverConfig, app)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// 7. Graceful shutdown
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	if err := server.Stop(); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}
	logger.Info("exiting")
	return nil
}
