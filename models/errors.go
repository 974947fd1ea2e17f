package models

import (
	"errors"
)

var (
	ErrNoOptions          = errors.New("no initialized model options")
	ErrTargetLenMismatch  = errors.New("target length does not match target rows")
	ErrNoTrainingMatrix   = errors.New("no training matrix")
	ErrNoTargetMatrix     = errors.New("no target matrix")
	ErrNoDesignMatrix     = errors.New("no design matrix for inference")
	ErrEmptyTrainingData  = errors.New("training matrix has no rows")
	ErrFeatureLenMismatch = errors.New("number of features does not match the trained model")
	ErrNotFitted          = errors.New("model has not been fit")
	ErrInvalidWeights     = errors.New("model weights have inconsistent shapes")
)
