package dataset

import (
	"errors"
	"math/rand/v2"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/clickbait-cli/internal/model"
)

// ErrImbalance marks a dataset the balancer cannot oversample: positives
// outnumber negatives, or there is an imbalance but no positive to draw.
var ErrImbalance = errors.New("dataset: unsupported class imbalance")

// NewRand returns a deterministic generator for the given seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Balance oversamples the positive class until both classes have the same
// count. Each draw picks a positive row uniformly with replacement and
// appends a copy of the record and its label to the tail. The input is not
// modified; rows of the input keep their relative order at the head of the
// result.
func Balance(ds Dataset, rng *rand.Rand) (Dataset, error) {
	if len(ds.Records) != len(ds.Labels) {
		return Dataset{}, eris.Wrapf(ErrMisaligned, "balance: %d records, %d labels", len(ds.Records), len(ds.Labels))
	}

	pos, neg := ds.Counts()
	if pos > neg {
		return Dataset{}, eris.Wrapf(ErrImbalance, "balance: %d positives exceed %d negatives", pos, neg)
	}
	imbalance := neg - pos
	if imbalance > 0 && pos == 0 {
		return Dataset{}, eris.Wrapf(ErrImbalance, "balance: no positive rows to oversample against %d negatives", neg)
	}

	var posIdx []int
	for i, l := range ds.Labels {
		if l {
			posIdx = append(posIdx, i)
		}
	}

	out := Dataset{
		Records: make([]model.Record, len(ds.Records), len(ds.Records)+imbalance),
		Labels:  make([]bool, len(ds.Labels), len(ds.Labels)+imbalance),
	}
	copy(out.Records, ds.Records)
	copy(out.Labels, ds.Labels)

	for range imbalance {
		idx := posIdx[rng.IntN(len(posIdx))]
		out.Records = append(out.Records, ds.Records[idx].Clone())
		out.Labels = append(out.Labels, ds.Labels[idx])
	}

	zap.L().Debug("dataset: balanced",
		zap.Int("positives", pos),
		zap.Int("negatives", neg),
		zap.Int("duplicated", imbalance),
	)
	return out, nil
}

// Shuffle permutes records and labels together.
func Shuffle(ds Dataset, rng *rand.Rand) Dataset {
	out := Dataset{
		Records: make([]model.Record, len(ds.Records)),
		Labels:  make([]bool, len(ds.Labels)),
	}
	copy(out.Records, ds.Records)
	copy(out.Labels, ds.Labels)
	rng.Shuffle(len(out.Records), func(i, j int) {
		out.Records[i], out.Records[j] = out.Records[j], out.Records[i]
		out.Labels[i], out.Labels[j] = out.Labels[j], out.Labels[i]
	})
	return out
}
