package trainer

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/clickbait-cli/internal/features"
	"github.com/sells-group/clickbait-cli/internal/forest"
	"github.com/sells-group/clickbait-cli/internal/model"
)

// Prediction is the classifier output for one record.
type Prediction struct {
	ID          model.ID `json:"id"`
	Probability float64  `json:"clickbaitProbability"`
	Clickbait   bool     `json:"clickbait"`
}

// Vectorize assembles records against previously saved vocabularies so the
// columns line up with the training matrix.
func Vectorize(records []model.Record, vocabPath string) (*features.Matrix, features.Vocabularies, error) {
	vocabs, err := features.LoadVocabularies(vocabPath)
	if err != nil {
		return nil, nil, err
	}
	for _, field := range features.TextFields {
		if _, ok := vocabs[field]; !ok {
			return nil, nil, eris.Errorf("trainer: %s has no vocabulary for %s", vocabPath, field)
		}
	}
	X, used, err := features.Assemble(records, vocabs)
	if err != nil {
		return nil, nil, eris.Wrap(err, "trainer: vectorize")
	}
	return X, used, nil
}

// Predict vectorizes records with the saved vocabularies and scores them
// with the saved forest.
func Predict(records []model.Record, vocabPath, modelPath string) ([]Prediction, error) {
	X, _, err := Vectorize(records, vocabPath)
	if err != nil {
		return nil, err
	}
	f, err := forest.Load(modelPath)
	if err != nil {
		return nil, err
	}
	proba, err := f.PredictProba(X)
	if err != nil {
		return nil, eris.Wrap(err, "trainer: predict")
	}

	out := make([]Prediction, len(records))
	positives := 0
	for i, r := range records {
		out[i] = Prediction{ID: r.ID, Probability: proba[i], Clickbait: proba[i] >= 0.5}
		if out[i].Clickbait {
			positives++
		}
	}
	zap.L().Info("trainer: predicted",
		zap.Int("records", len(records)),
		zap.Int("clickbait", positives),
	)
	return out, nil
}
