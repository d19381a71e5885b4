package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// RunStatus represents the current state of a training run.
type RunStatus string

const (
	RunStatusQueued      RunStatus = "queued"
	RunStatusPreparing   RunStatus = "preparing"
	RunStatusVectorizing RunStatus = "vectorizing"
	RunStatusFitting     RunStatus = "fitting"
	RunStatusEvaluating  RunStatus = "evaluating"
	RunStatusComplete    RunStatus = "complete"
	RunStatusFailed      RunStatus = "failed"
)

var runStatuses = []RunStatus{
	RunStatusQueued,
	RunStatusPreparing,
	RunStatusVectorizing,
	RunStatusFitting,
	RunStatusEvaluating,
	RunStatusComplete,
	RunStatusFailed,
}

// ParseRunStatus accepts any known status name, ignoring case.
func ParseRunStatus(s string) (RunStatus, error) {
	want := RunStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, st := range runStatuses {
		if st == want {
			return st, nil
		}
	}
	return "", eris.Errorf("unknown run status %q", s)
}

// Terminal reports whether a run in this status will not change again.
func (s RunStatus) Terminal() bool {
	return s == RunStatusComplete || s == RunStatusFailed
}

// RunParams records the knobs a training run was started with.
type RunParams struct {
	DataDir     string `json:"data_dir"`
	SplitOffset int    `json:"split_offset"`
	Trees       int    `json:"trees"`
	Folds       int    `json:"folds"`
	Seed        uint64 `json:"seed"`
	MaxDepth    int    `json:"max_depth,omitempty"`
}

// Run represents a single training run.
type Run struct {
	ID        string     `json:"id"`
	Params    RunParams  `json:"params"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the final metrics of a completed run.
type RunResult struct {
	Rows           int            `json:"rows"`
	Columns        int            `json:"columns"`
	VocabSizes     map[string]int `json:"vocab_sizes"`
	TrainRows      int            `json:"train_rows"`
	TestRows       int            `json:"test_rows"`
	CrossVal       []float64      `json:"cross_val"`
	ROCAUC         float64        `json:"roc_auc"`
	Accuracy       float64        `json:"accuracy"`
	FalsePositives int            `json:"false_positives"`
	VocabPath      string         `json:"vocab_path,omitempty"`
	ModelPath      string         `json:"model_path,omitempty"`
}

// RunPhase represents a phase within a run.
type RunPhase struct {
	ID         string       `json:"id"`
	RunID      string       `json:"run_id"`
	Name       string       `json:"name"`
	Status     PhaseStatus  `json:"status"`
	Result     *PhaseResult `json:"result,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

// PhaseStatus represents the current state of a pipeline phase.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
)

// PhaseResult holds the outcome of a pipeline phase.
type PhaseResult struct {
	Name     string         `json:"name"`
	Status   PhaseStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
