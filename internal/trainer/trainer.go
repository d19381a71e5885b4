// Package trainer runs the end-to-end training pipeline: alignment,
// balancing, vectorization, forest fitting and evaluation, recording each
// phase in the run store.
package trainer

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/clickbait-cli/internal/config"
	"github.com/sells-group/clickbait-cli/internal/dataset"
	"github.com/sells-group/clickbait-cli/internal/evaluate"
	"github.com/sells-group/clickbait-cli/internal/features"
	"github.com/sells-group/clickbait-cli/internal/forest"
	"github.com/sells-group/clickbait-cli/internal/model"
	"github.com/sells-group/clickbait-cli/internal/store"
	"github.com/sells-group/clickbait-cli/internal/telemetry"
)

// Phase names, in execution order.
const (
	PhaseAlign     = "align"
	PhaseBalance   = "balance"
	PhaseShuffle   = "shuffle"
	PhaseVectorize = "vectorize"
	PhaseSplit     = "split"
	PhaseCrossVal  = "crossval"
	PhaseFit       = "fit"
	PhaseEvaluate  = "evaluate"
)

// Trainer orchestrates a training run.
type Trainer struct {
	cfg   *config.Config
	store store.Store
}

// New creates a Trainer.
func New(cfg *config.Config, st store.Store) *Trainer {
	return &Trainer{cfg: cfg, store: st}
}

// Result is the outcome of a completed run.
type Result struct {
	RunID        string
	Report       *evaluate.Report
	Vocabularies features.Vocabularies
	Forest       *forest.Forest
	Phases       []model.PhaseResult
	Metrics      *telemetry.RunMetrics
}

// Params returns the forest parameters derived from the configuration.
func (t *Trainer) Params() forest.Params {
	p := forest.DefaultParams()
	p.Trees = t.cfg.Train.Trees
	p.MaxDepth = t.cfg.Train.MaxDepth
	p.MinSamplesSplit = t.cfg.Train.MinSamplesSplit
	p.Seed = t.cfg.Train.Seed
	p.Workers = t.cfg.Train.Workers
	return p
}

// Run trains and evaluates a classifier on records and their truth labels.
// Any phase error is fatal: the run is marked failed and the error returned.
func (t *Trainer) Run(ctx context.Context, records []model.Record, labels []model.Label) (*Result, error) {
	log := zap.L().With(zap.Int("records", len(records)), zap.Int("labels", len(labels)))
	log.Info("trainer: starting run")

	run, err := t.store.CreateRun(ctx, model.RunParams{
		DataDir:     t.cfg.Data.Dir,
		SplitOffset: t.cfg.Train.SplitOffset,
		Trees:       t.cfg.Train.Trees,
		Folds:       t.cfg.Train.Folds,
		Seed:        t.cfg.Train.Seed,
		MaxDepth:    t.cfg.Train.MaxDepth,
	})
	if err != nil {
		return nil, eris.Wrap(err, "trainer: create run")
	}
	log = log.With(zap.String("run_id", run.ID))
	result := &Result{RunID: run.ID, Metrics: telemetry.NewRunMetrics()}

	flushMetrics := func(success bool) {
		result.Metrics.Finish(success, time.Now())
		path := t.cfg.Output.MetricsFile
		if path == "" {
			return
		}
		if err := result.Metrics.WriteTextfile(path); err != nil {
			log.Warn("trainer: failed to write metrics", zap.Error(err))
		}
	}

	setStatus := func(status model.RunStatus) {
		if statusErr := t.store.UpdateRunStatus(ctx, run.ID, status); statusErr != nil {
			log.Warn("trainer: failed to update status", zap.Error(statusErr))
		}
	}

	trackPhase := func(name string, fn func() (map[string]any, error)) error {
		phase, phaseErr := t.store.CreatePhase(ctx, run.ID, name)
		if phaseErr != nil {
			log.Warn("trainer: failed to create phase", zap.String("phase", name), zap.Error(phaseErr))
		}

		start := time.Now()
		meta, fnErr := fn()
		elapsed := time.Since(start)
		duration := elapsed.Milliseconds()
		result.Metrics.ObservePhase(name, elapsed, fnErr != nil)

		pr := model.PhaseResult{Name: name, Duration: duration, Metadata: meta}
		if fnErr != nil {
			pr.Status = model.PhaseStatusFailed
			pr.Error = fnErr.Error()
			log.Error("trainer: phase failed",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
				zap.Error(fnErr),
			)
		} else {
			pr.Status = model.PhaseStatusComplete
			log.Info("trainer: phase complete",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
			)
		}

		if phase != nil {
			if err := t.store.CompletePhase(ctx, phase.ID, &pr); err != nil {
				log.Warn("trainer: failed to complete phase", zap.String("phase", name), zap.Error(err))
			}
		}
		result.Phases = append(result.Phases, pr)
		return fnErr
	}

	fail := func(err error) (*Result, error) {
		if failErr := t.store.FailRun(ctx, run.ID, err.Error()); failErr != nil {
			log.Warn("trainer: failed to mark run failed", zap.Error(failErr))
		}
		flushMetrics(false)
		return result, err
	}

	// ===== Preparation =====
	setStatus(model.RunStatusPreparing)
	rng := dataset.NewRand(t.cfg.Train.Seed)

	var ds dataset.Dataset
	if err := trackPhase(PhaseAlign, func() (map[string]any, error) {
		var err error
		ds, err = dataset.Pair(records, labels)
		if err != nil {
			return nil, err
		}
		pos, neg := ds.Counts()
		return map[string]any{"rows": ds.Len(), "clickbait": pos, "no_clickbait": neg}, nil
	}); err != nil {
		return fail(err)
	}

	if err := trackPhase(PhaseBalance, func() (map[string]any, error) {
		before := ds.Len()
		var err error
		ds, err = dataset.Balance(ds, rng)
		if err != nil {
			return nil, err
		}
		return map[string]any{"rows": ds.Len(), "added": ds.Len() - before}, nil
	}); err != nil {
		return fail(err)
	}

	if err := trackPhase(PhaseShuffle, func() (map[string]any, error) {
		ds = dataset.Shuffle(ds, rng)
		return map[string]any{"seed": t.cfg.Train.Seed}, nil
	}); err != nil {
		return fail(err)
	}

	// ===== Vectorization =====
	setStatus(model.RunStatusVectorizing)

	var X *features.Matrix
	if err := trackPhase(PhaseVectorize, func() (map[string]any, error) {
		var err error
		X, result.Vocabularies, err = features.Assemble(ds.Records, nil)
		if err != nil {
			return nil, err
		}
		if err := features.SaveVocabularies(t.cfg.Output.VocabFile, result.Vocabularies); err != nil {
			return nil, err
		}
		rows, cols := X.Dims()
		return map[string]any{"rows": rows, "columns": cols, "nnz": X.NNZ(), "vocab_path": t.cfg.Output.VocabFile}, nil
	}); err != nil {
		return fail(err)
	}

	// ===== Fitting =====
	setStatus(model.RunStatusFitting)
	params := t.Params()

	var split evaluate.Split
	if err := trackPhase(PhaseSplit, func() (map[string]any, error) {
		var err error
		split, err = evaluate.SplitAt(X, ds.Labels, ds.IDs(), t.cfg.Train.SplitOffset)
		if err != nil {
			return nil, err
		}
		return map[string]any{"train_rows": len(split.TrainY), "test_rows": len(split.TestY)}, nil
	}); err != nil {
		return fail(err)
	}

	var cv []float64
	if err := trackPhase(PhaseCrossVal, func() (map[string]any, error) {
		var err error
		cv, err = evaluate.CrossValidate(ctx, split.TrainX, split.TrainY, t.cfg.Train.Folds, params)
		if err != nil {
			return nil, err
		}
		return map[string]any{"folds": len(cv), "scores": cv}, nil
	}); err != nil {
		return fail(err)
	}

	if err := trackPhase(PhaseFit, func() (map[string]any, error) {
		var err error
		result.Forest, err = forest.Fit(ctx, split.TrainX, split.TrainY, params)
		if err != nil {
			return nil, err
		}
		meta := map[string]any{"trees": len(result.Forest.Trees)}
		if path := t.cfg.Output.ModelFile; path != "" {
			if err := forest.Save(path, result.Forest); err != nil {
				return nil, err
			}
			meta["model_path"] = path
		}
		return meta, nil
	}); err != nil {
		return fail(err)
	}

	// ===== Evaluation =====
	setStatus(model.RunStatusEvaluating)

	rows, cols := X.Dims()
	report := &evaluate.Report{
		RunID:      run.ID,
		Rows:       rows,
		Columns:    cols,
		VocabSizes: result.Vocabularies.Sizes(),
		TrainRows:  len(split.TrainY),
		TestRows:   len(split.TestY),
		CrossVal:   cv,
	}
	if err := trackPhase(PhaseEvaluate, func() (map[string]any, error) {
		proba, err := result.Forest.PredictProba(split.TestX)
		if err != nil {
			return nil, err
		}
		report.ROCAUC, err = evaluate.ROCAUC(proba, split.TestY)
		if err != nil {
			return nil, err
		}
		pred := forest.Threshold(proba, 0.5)
		report.Confusion = evaluate.NewConfusion(pred, split.TestY)
		report.Classification = evaluate.Classify(pred, split.TestY)
		report.FalsePositives = falsePositives(pred, split, ds.Records)

		if path := t.cfg.Output.ReportFile; path != "" {
			if err := evaluate.SaveReport(path, report); err != nil {
				return nil, err
			}
		}
		return map[string]any{
			"roc_auc":         report.ROCAUC,
			"accuracy":        report.Classification.Accuracy,
			"false_positives": len(report.FalsePositives),
		}, nil
	}); err != nil {
		return fail(err)
	}
	result.Report = report
	result.Metrics.ObserveReport(report)

	runResult := &model.RunResult{
		Rows:           rows,
		Columns:        cols,
		VocabSizes:     report.VocabSizes,
		TrainRows:      report.TrainRows,
		TestRows:       report.TestRows,
		CrossVal:       cv,
		ROCAUC:         report.ROCAUC,
		Accuracy:       report.Classification.Accuracy,
		FalsePositives: len(report.FalsePositives),
		VocabPath:      t.cfg.Output.VocabFile,
		ModelPath:      t.cfg.Output.ModelFile,
	}
	if saveErr := t.store.UpdateRunResult(ctx, run.ID, runResult); saveErr != nil {
		log.Warn("trainer: failed to save run result", zap.Error(saveErr))
	}
	flushMetrics(true)

	log.Info("trainer: run complete",
		zap.Int("rows", rows),
		zap.Int("columns", cols),
		zap.Float64("roc_auc", report.ROCAUC),
		zap.Float64("accuracy", report.Classification.Accuracy),
	)
	return result, nil
}

// falsePositives maps false-positive test rows to their record ids and
// titles through the id vector carried with the split.
func falsePositives(pred []bool, split evaluate.Split, records []model.Record) []evaluate.FalsePositive {
	rows := evaluate.FalsePositives(pred, split.TestY)
	if len(rows) == 0 {
		return nil
	}
	titles := make(map[model.ID]string, len(records))
	for _, r := range records {
		titles[r.ID] = r.Title()
	}
	out := make([]evaluate.FalsePositive, len(rows))
	for k, row := range rows {
		id := split.TestIDs[row]
		out[k] = evaluate.FalsePositive{ID: id, Title: titles[id]}
	}
	return out
}
