// Package forest implements a bagged ensemble of CART decision trees
// (a random forest) over sparse row-major matrices.
package forest

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Matrix is the read access the forest needs from a feature matrix.
type Matrix interface {
	Dims() (r, c int)
	At(i, j int) float64
	RowNonZero(i int) ([]int, []float64)
}

// Params configures the ensemble. A zero MaxDepth grows trees until their
// leaves are pure; a zero MaxFeatures samples sqrt(columns) candidates per
// split.
type Params struct {
	Trees           int    `json:"trees"`
	MaxDepth        int    `json:"max_depth,omitempty"`
	MinSamplesSplit int    `json:"min_samples_split"`
	MaxFeatures     int    `json:"max_features,omitempty"`
	Seed            uint64 `json:"seed"`
	Workers         int    `json:"-"`
}

// DefaultParams returns ten fully grown trees.
func DefaultParams() Params {
	return Params{Trees: 10, MinSamplesSplit: 2, Seed: 42, Workers: 1}
}

// Forest is a fitted ensemble.
type Forest struct {
	Params   Params  `json:"params"`
	Features int     `json:"features"`
	Trees    []*Tree `json:"trees"`
}

// Fit grows p.Trees trees, each on a bootstrap sample of the rows of X.
// Tree t draws from its own generator seeded by (p.Seed, t), so the result
// does not depend on p.Workers.
func Fit(ctx context.Context, X Matrix, y []bool, p Params) (*Forest, error) {
	rows, cols := X.Dims()
	if rows == 0 {
		return nil, eris.New("forest: no training rows")
	}
	if rows != len(y) {
		return nil, eris.Errorf("forest: %d rows but %d labels", rows, len(y))
	}
	if p.Trees <= 0 {
		return nil, eris.Errorf("forest: invalid tree count %d", p.Trees)
	}
	if p.MinSamplesSplit < 2 {
		p.MinSamplesSplit = 2
	}

	mtry := p.MaxFeatures
	if mtry <= 0 {
		mtry = max(1, int(math.Sqrt(float64(cols))))
	}
	workers := p.Workers
	if workers <= 0 {
		workers = 1
	}

	f := &Forest{Params: p, Features: cols, Trees: make([]*Tree, p.Trees)}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for t := range p.Trees {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(p.Seed, uint64(t)+1))
			samples := make([]int, rows)
			for i := range samples {
				samples[i] = rng.IntN(rows)
			}
			f.Trees[t] = growTree(X, y, samples, p, mtry, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "forest: fit")
	}

	zap.L().Debug("forest: fitted",
		zap.Int("trees", p.Trees),
		zap.Int("rows", rows),
		zap.Int("features", cols),
		zap.Int("mtry", mtry),
	)
	return f, nil
}

// PredictProba returns the mean positive-class probability of each row.
func (f *Forest) PredictProba(X Matrix) ([]float64, error) {
	rows, cols := X.Dims()
	if cols != f.Features {
		return nil, eris.Errorf("forest: matrix has %d columns, model expects %d", cols, f.Features)
	}
	out := make([]float64, rows)
	for i := range out {
		sum := 0.0
		for _, t := range f.Trees {
			sum += t.Predict(X, i)
		}
		out[i] = sum / float64(len(f.Trees))
	}
	return out, nil
}

// Predict labels a row positive when its probability is at least 0.5.
func (f *Forest) Predict(X Matrix) ([]bool, error) {
	proba, err := f.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return Threshold(proba, 0.5), nil
}

// Threshold converts probabilities into labels.
func Threshold(proba []float64, cut float64) []bool {
	out := make([]bool, len(proba))
	for i, p := range proba {
		out[i] = p >= cut
	}
	return out
}
