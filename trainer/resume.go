package trainer

import (
	"github.com/neurlang/cartography/model"
	"github.com/pkg/errors"
)

// Resume returns the model named by modelArg: a saved model directory is
// loaded, the base model name gives a fresh classifier shaped by h.
func Resume(modelArg string, h HyperParameters) (*model.Classifier, error) {
	if model.IsModelDir(modelArg) {
		return model.Load(modelArg)
	}
	if modelArg == model.BaseModel || modelArg == "" {
		return model.New(model.NewConfig(h.Buckets, h.MaxLength, h.Salt))
	}
	return nil, errors.Errorf("model %q is neither a saved model directory nor %q", modelArg, model.BaseModel)
}
