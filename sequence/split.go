package sequence

import (
	"fmt"
	"log/slog"
)

// Splits holds the train, validation and test partitions in temporal order
type Splits struct {
	Train      Dataset
	Validation Dataset
	Test       Dataset

	// TestAliasesValidation is set when there are too few samples for a disjoint test split and
	// the validation samples are reused for testing.
	TestAliasesValidation bool
}

// Sizes returns the number of samples in each split
func (s Splits) Sizes() (int, int, int) {
	return s.Train.Len(), s.Validation.Len(), s.Test.Len()
}

func validateFractions(trainFrac, valFrac float64) error {
	if trainFrac <= 0 || trainFrac >= 1 || valFrac <= 0 || valFrac >= 1 || trainFrac+valFrac >= 1 {
		return fmt.Errorf("train %.3f, validation %.3f, %w", trainFrac, valFrac, ErrInvalidSplit)
	}
	return nil
}

// Split partitions ds without shuffling. Train and validation sizes are floored at one sample.
// When the remainder left for test is empty, one sample is borrowed from the end of validation,
// or the validation window moves one step earlier if it only holds a single sample. With only
// two samples the test split reuses validation.
func Split(ds Dataset, trainFrac, valFrac float64) (Splits, error) {
	if err := validateFractions(trainFrac, valFrac); err != nil {
		return Splits{}, err
	}

	n := ds.Len()
	if n < MinSamples {
		return Splits{}, fmt.Errorf("need at least %d windowed samples but have %d, %w", MinSamples, n, ErrInsufficientData)
	}

	trainSize := max(1, int(float64(n)*trainFrac))
	valSize := max(1, int(float64(n)*valFrac))
	if trainSize+valSize > n {
		valSize = n - trainSize
		if valSize < 1 {
			trainSize = n - 1
			valSize = 1
		}
	}

	testSize := n - trainSize - valSize
	aliased := false
	if testSize == 0 {
		if n >= 3 {
			if valSize > 1 {
				valSize--
			} else {
				trainSize--
			}
			testSize = 1
		} else {
			aliased = true
		}
	}

	s := Splits{
		Train:                 ds.slice(0, trainSize),
		Validation:            ds.slice(trainSize, trainSize+valSize),
		Test:                  ds.slice(trainSize+valSize, n),
		TestAliasesValidation: aliased,
	}
	if aliased {
		s.Test = s.Validation
	}

	slog.Debug("split windowed dataset",
		"train", s.Train.Len(),
		"validation", s.Validation.Len(),
		"test", s.Test.Len(),
		"test_aliases_validation", aliased,
	)
	return s, nil
}
