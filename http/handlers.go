package http

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"waterguard/config"
	"waterguard/db"
	"waterguard/ml"
	"waterguard/monitoring"
	"waterguard/water"
)

//go:embed templates/*.html
var templatesFS embed.FS

// HistoryStore is the subset of db.Store the handlers use.
type HistoryStore interface {
	SavePrediction(ctx context.Context, result ml.PredictionResult) error
	ListPredictions(ctx context.Context, limit int) ([]db.PredictionRecord, error)
	ListTrainingRuns(ctx context.Context, limit int) ([]db.TrainingLog, error)
}

// Deps are the collaborators an App serves from. Store, Metrics and Hub are optional.
type Deps struct {
	Models     *ml.ModelHandle
	Inputs     map[string]config.InputRange
	Thresholds water.Thresholds
	Store      HistoryStore
	Metrics    *monitoring.Metrics
	Hub        *monitoring.Hub
	Logger     *zap.Logger
}

// App holds the handlers. The model handle is the only state shared between requests and it is
// never mutated by a request.
type App struct {
	models     *ml.ModelHandle
	inputs     map[string]config.InputRange
	thresholds water.Thresholds
	store      HistoryStore
	metrics    *monitoring.Metrics
	hub        *monitoring.Hub
	logger     *zap.Logger
	pages      map[string]*template.Template
}

func NewApp(deps Deps) (*App, error) {
	if deps.Models == nil || deps.Models.Predictor() == nil {
		return nil, errors.New("a loaded model is required")
	}
	for _, name := range deps.Models.Predictor().Schema() {
		if _, ok := deps.Inputs[name]; !ok {
			return nil, fmt.Errorf("no input range configured for %s", name)
		}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	return &App{
		models:     deps.Models,
		inputs:     deps.Inputs,
		thresholds: deps.Thresholds,
		store:      deps.Store,
		metrics:    deps.Metrics,
		hub:        deps.Hub,
		logger:     deps.Logger,
		pages:      pages,
	}, nil
}

func parsePages() (map[string]*template.Template, error) {
	funcs := template.FuncMap{
		"num": func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) },
		"pct": func(v float64) string { return fmt.Sprintf("%.1f%%", v*100) },
	}
	pages := make(map[string]*template.Template)
	for _, page := range []string{"index.html", "charts.html", "notes.html"} {
		tmpl, err := template.New(page).Funcs(funcs).ParseFS(templatesFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		pages[page] = tmpl
	}
	return pages, nil
}

func (a *App) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", a.handleIndex)
	mux.HandleFunc("POST /predict", a.handlePredictForm)
	mux.HandleFunc("GET /charts", a.handleCharts)
	mux.HandleFunc("GET /notes", a.handleNotes)
	mux.HandleFunc("POST /api/predict", a.handlePredictJSON)
	mux.HandleFunc("GET /api/history", a.handleHistory)
	mux.HandleFunc("GET /api/health", a.handleHealth)
	if a.metrics != nil {
		mux.Handle("GET /metrics", a.metrics.Handler())
	}
	if a.hub != nil {
		mux.HandleFunc("GET /ws/predictions", a.hub.HandleWebSocket)
	}
}

type formField struct {
	Name  string
	Label string
	Unit  string
	Min   float64
	Max   float64
	Step  float64
	Value float64
}

type indexPage struct {
	Title    string
	Fields   []formField
	Result   *resultView
	LiveFeed bool
}

type resultView struct {
	Verdict    string
	Safe       bool
	Confidence float64
	Checks     []water.ParameterCheck
}

func (a *App) fields(values []float64) []formField {
	schema := a.models.Predictor().Schema()
	fields := make([]formField, len(schema))
	for i, name := range schema {
		r := a.inputs[name]
		param, _ := water.Lookup(name)
		value := r.Default
		if values != nil {
			value = values[i]
		}
		fields[i] = formField{
			Name:  name,
			Label: param.Label,
			Unit:  param.Unit,
			Min:   r.Min,
			Max:   r.Max,
			Step:  r.Step,
			Value: value,
		}
	}
	return fields
}

func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	a.render(w, "index.html", indexPage{
		Title:    "Water Quality Classification",
		Fields:   a.fields(nil),
		LiveFeed: a.hub != nil,
	})
}

func (a *App) handlePredictForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	predictor := a.models.Predictor()
	schema := predictor.Schema()
	row := make([]float64, len(schema))
	for i, name := range schema {
		row[i] = a.formValue(name, r.PostForm.Get(name))
	}

	result, checks, err := a.predict(r.Context(), predictor, row)
	if err != nil {
		a.logger.Error("prediction failed", zap.String("request_id", GetRequestID(r.Context())), zap.Error(err))
		http.Error(w, "prediction failed", http.StatusInternalServerError)
		return
	}

	a.render(w, "index.html", indexPage{
		Title:  "Water Quality Classification",
		Fields: a.fields(row),
		Result: &resultView{
			Verdict:    result.Verdict.String(),
			Safe:       result.Verdict == ml.VerdictSafe,
			Confidence: result.Confidence,
			Checks:     checks,
		},
		LiveFeed: a.hub != nil,
	})
}

// formValue parses one submitted field. Unparseable input falls back to the field default and
// every value is clamped to the field range.
func (a *App) formValue(name, raw string) float64 {
	r := a.inputs[name]
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return r.Default
	}
	return r.Clamp(v)
}

type predictRequest struct {
	Readings map[string]float64 `json:"readings"`
}

type checkResponse struct {
	Feature     string  `json:"feature"`
	Label       string  `json:"label"`
	Value       float64 `json:"value"`
	Limit       string  `json:"limit"`
	WithinLimit bool    `json:"within_limit"`
}

type predictResponse struct {
	Verdict    string             `json:"verdict"`
	Label      int                `json:"label"`
	Confidence float64            `json:"confidence"`
	Readings   map[string]float64 `json:"readings"`
	Checks     []checkResponse    `json:"checks"`
}

func (a *App) handlePredictJSON(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	predictor := a.models.Predictor()
	clamped := make(map[string]float64, len(req.Readings))
	for name, v := range req.Readings {
		if in, ok := a.inputs[name]; ok {
			v = in.Clamp(v)
		}
		clamped[name] = v
	}
	row, err := ml.AssembleRow(predictor.Schema(), clamped)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, checks, err := a.predict(r.Context(), predictor, row)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ml.ErrSchemaMismatch) {
			status = http.StatusBadRequest
		}
		respondError(w, status, err.Error())
		return
	}

	resp := predictResponse{
		Verdict:    result.Verdict.String(),
		Label:      result.Label,
		Confidence: result.Confidence,
		Readings:   clamped,
		Checks:     make([]checkResponse, len(checks)),
	}
	for i, c := range checks {
		resp.Checks[i] = checkResponse{
			Feature:     c.Parameter.Name,
			Label:       c.Parameter.Label,
			Value:       c.Value,
			Limit:       c.Limit,
			WithinLimit: c.WithinLimit,
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// predict classifies row and fans the result out to metrics, history and the live feed.
// History failures are logged and never fail the request.
func (a *App) predict(ctx context.Context, predictor *ml.Predictor, row []float64) (ml.PredictionResult, []water.ParameterCheck, error) {
	start := time.Now()
	result, err := predictor.Predict(ctx, row)
	if err != nil {
		return ml.PredictionResult{}, nil, err
	}
	if a.metrics != nil {
		a.metrics.ObservePrediction(result, time.Since(start))
	}

	checks, err := a.thresholds.CheckReadings(result.Schema, result.Sample.Features)
	if err != nil {
		return ml.PredictionResult{}, nil, err
	}

	if a.store != nil {
		if err := a.store.SavePrediction(ctx, result); err != nil {
			a.logger.Warn("save prediction", zap.Error(err))
		}
	}
	if a.hub != nil {
		a.hub.PublishPrediction(result)
	}
	a.logger.Debug("prediction",
		zap.Stringer("schema", result.Schema),
		zap.Float64s("readings", result.Sample.Features),
		zap.Stringer("verdict", result.Verdict),
		zap.Bool("cached", result.Cached),
	)
	return result, checks, nil
}

type chartsPage struct {
	Title  string
	Charts []chartView
}

func (a *App) handleCharts(w http.ResponseWriter, r *http.Request) {
	series := water.History(a.thresholds)
	charts := make([]chartView, len(series))
	for i, s := range series {
		charts[i] = buildChart(s)
	}
	a.render(w, "charts.html", chartsPage{Title: "Illustrative trends", Charts: charts})
}

type notesPage struct {
	Title        string
	Schema       ml.Schema
	Trees        int
	TrainedAt    time.Time
	TrainRows    int
	TestRows     int
	Report       ml.Report
	ImputedMeans map[string]float64
	Thresholds   []water.ParameterCheck
}

func (a *App) handleNotes(w http.ResponseWriter, r *http.Request) {
	artifact := a.models.Predictor().Artifact()
	limits := make([]water.ParameterCheck, 0, len(ml.KnownFeatures()))
	for _, name := range ml.KnownFeatures() {
		if c, err := a.thresholds.Check(name, 0); err == nil {
			limits = append(limits, c)
		}
	}
	a.render(w, "notes.html", notesPage{
		Title:        "About this model",
		Schema:       artifact.Schema,
		Trees:        len(artifact.Forest.Trees),
		TrainedAt:    artifact.TrainedAt,
		TrainRows:    artifact.TrainRows,
		TestRows:     artifact.TestRows,
		Report:       artifact.Report,
		ImputedMeans: artifact.ImputedMeans,
		Thresholds:   limits,
	})
}

func (a *App) handleHistory(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		respondError(w, http.StatusServiceUnavailable, "history is disabled")
		return
	}
	limit := 50
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 500 {
		limit = l
	}
	predictions, err := a.store.ListPredictions(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	runs, err := a.store.ListTrainingRuns(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"predictions":   predictions,
		"training_runs": runs,
	})
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	artifact := a.models.Predictor().Artifact()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"schema":     artifact.Schema,
		"trained_at": artifact.TrainedAt,
	})
}

func (a *App) render(w http.ResponseWriter, page string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := a.pages[page].ExecuteTemplate(w, "layout", data); err != nil {
		a.logger.Error("render page", zap.String("page", page), zap.Error(err))
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
