package dataset

import (
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/clickbait-cli/internal/model"
)

// ErrMisaligned marks instances and truth records that do not pair up
// index by index.
var ErrMisaligned = errors.New("dataset: data and labels are misaligned")

// Aligned reports whether records[i] and labels[i] carry the same id for
// every i. Collections of different length are never aligned.
func Aligned(records []model.Record, labels []model.Label) bool {
	return CheckAlignment(records, labels) == nil
}

// CheckAlignment verifies the positional pairing of records and labels.
// There is no attempt to realign by id: pairing comes from load order.
func CheckAlignment(records []model.Record, labels []model.Label) error {
	if len(records) == 0 || len(labels) == 0 {
		return eris.Wrap(ErrMisaligned, "empty collection")
	}
	if len(records) != len(labels) {
		return eris.Wrapf(ErrMisaligned, "length mismatch: %d records, %d labels", len(records), len(labels))
	}
	for i := range records {
		if records[i].ID != labels[i].ID {
			return eris.Wrapf(ErrMisaligned, "row %d: record id %s, label id %s", i, records[i].ID, labels[i].ID)
		}
	}
	return nil
}

// Pair checks alignment and couples records with collapsed labels.
func Pair(records []model.Record, labels []model.Label) (Dataset, error) {
	if err := CheckAlignment(records, labels); err != nil {
		return Dataset{}, err
	}
	return Dataset{Records: records, Labels: Collapse(labels)}, nil
}
