package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"waterguard/ml"
)

// Store keeps the training log and prediction history in SQLite. It never stores the model itself.
type Store struct {
	database *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}
	database, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	query := `
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        model_path TEXT NOT NULL,
        features TEXT NOT NULL,
        accuracy REAL,
        precision REAL,
        recall REAL,
        f1 REAL,
        train_rows INTEGER,
        test_rows INTEGER,
        trained_at DATETIME NOT NULL
    );
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        features TEXT NOT NULL,
        readings TEXT NOT NULL,
        predicted_label INTEGER NOT NULL,
        verdict TEXT NOT NULL,
        confidence REAL,
        created_at DATETIME NOT NULL
    );
    `
	if _, err := database.Exec(query); err != nil {
		database.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &Store{database: database}, nil
}

func (s *Store) Close() error {
	return s.database.Close()
}

type TrainingLog struct {
	ModelPath string    `json:"model_path"`
	Features  []string  `json:"features"`
	Accuracy  float64   `json:"accuracy"`
	Precision float64   `json:"precision"`
	Recall    float64   `json:"recall"`
	F1        float64   `json:"f1"`
	TrainRows int       `json:"train_rows"`
	TestRows  int       `json:"test_rows"`
	TrainedAt time.Time `json:"trained_at"`
}

// TrainingLogFromArtifact records the weighted-average scores of a training run.
func TrainingLogFromArtifact(modelPath string, a *ml.Artifact) TrainingLog {
	return TrainingLog{
		ModelPath: modelPath,
		Features:  append([]string(nil), a.Schema...),
		Accuracy:  a.Report.Accuracy,
		Precision: a.Report.WeightedAvg.Precision,
		Recall:    a.Report.WeightedAvg.Recall,
		F1:        a.Report.WeightedAvg.F1,
		TrainRows: a.TrainRows,
		TestRows:  a.TestRows,
		TrainedAt: a.TrainedAt,
	}
}

func (s *Store) SaveTrainingRun(ctx context.Context, entry TrainingLog) error {
	features, err := json.Marshal(entry.Features)
	if err != nil {
		return err
	}
	_, err = s.database.ExecContext(ctx, `
        INSERT INTO training_log (
            model_path, features, accuracy, precision, recall, f1, train_rows, test_rows, trained_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `,
		entry.ModelPath,
		string(features),
		entry.Accuracy,
		entry.Precision,
		entry.Recall,
		entry.F1,
		entry.TrainRows,
		entry.TestRows,
		entry.TrainedAt.UTC(),
	)
	return err
}

func (s *Store) ListTrainingRuns(ctx context.Context, limit int) ([]TrainingLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.database.QueryContext(ctx, `
        SELECT model_path, features, accuracy, precision, recall, f1, train_rows, test_rows, trained_at
        FROM training_log
        ORDER BY trained_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]TrainingLog, 0)
	for rows.Next() {
		var entry TrainingLog
		var features string
		if err := rows.Scan(&entry.ModelPath, &features, &entry.Accuracy, &entry.Precision, &entry.Recall,
			&entry.F1, &entry.TrainRows, &entry.TestRows, &entry.TrainedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(features), &entry.Features); err != nil {
			return nil, fmt.Errorf("decode features: %w", err)
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

type PredictionRecord struct {
	Features   []string  `json:"features"`
	Readings   []float64 `json:"readings"`
	Label      int       `json:"label"`
	Verdict    string    `json:"verdict"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *Store) SavePrediction(ctx context.Context, result ml.PredictionResult) error {
	features, err := json.Marshal(result.Schema)
	if err != nil {
		return err
	}
	readings, err := json.Marshal(result.Sample.Features)
	if err != nil {
		return err
	}
	_, err = s.database.ExecContext(ctx, `
        INSERT INTO predictions (features, readings, predicted_label, verdict, confidence, created_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		string(features), string(readings), result.Label, result.Verdict.String(), result.Confidence, time.Now().UTC())
	return err
}

func (s *Store) ListPredictions(ctx context.Context, limit int) ([]PredictionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.database.QueryContext(ctx, `
        SELECT features, readings, predicted_label, verdict, confidence, created_at
        FROM predictions
        ORDER BY created_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]PredictionRecord, 0)
	for rows.Next() {
		var rec PredictionRecord
		var features, readings string
		if err := rows.Scan(&features, &readings, &rec.Label, &rec.Verdict, &rec.Confidence, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(features), &rec.Features); err != nil {
			return nil, fmt.Errorf("decode features: %w", err)
		}
		if err := json.Unmarshal([]byte(readings), &rec.Readings); err != nil {
			return nil, fmt.Errorf("decode readings: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
