package forecaster

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/aouyang1/go-salesforecast/models"
	"github.com/aouyang1/go-salesforecast/scaler"

	"github.com/goccy/go-json"
)

// Model represents a serializeable format of a trained forecaster storing the options, the fitted
// scaler, the final history window and both trained regressors
type Model struct {
	Options      *Options      `json:"options"`
	TrainEndTime time.Time     `json:"train_end_time"`
	Scaler       scaler.MinMax `json:"scaler"`
	LastWindow   []float64     `json:"last_window"`
	Scores       *ModelScores  `json:"scores"`

	LSTM models.LSTMWeights `json:"lstm"`
	GBT  models.GBTEnsemble `json:"gbt"`

	LSTMLoss models.LossHistory `json:"lstm_loss"`
	GBTLoss  models.LossHistory `json:"gbt_loss"`
}

// TablePrint writes a human readable summary of the model
func (m Model) TablePrint(w io.Writer) error {
	return m.tablePrint(w, "", "  ")
}

func (m Model) tablePrint(w io.Writer, prefix, indent string) error {
	if _, err := fmt.Fprintf(w, "%s%sForecaster:\n", prefix, indentExpand(indent, 0)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s%sTraining End Time: %s\n", prefix, indentExpand(indent, 1), m.TrainEndTime); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s%sScaler: min=%.3f max=%.3f\n", prefix, indentExpand(indent, 1), m.Scaler.Min, m.Scaler.Max); err != nil {
		return err
	}

	if m.Options != nil {
		if _, err := fmt.Fprintf(w, "%s%sLookback: %d    Horizon: %d    Confidence Band: %.3f\n",
			prefix, indentExpand(indent, 1),
			m.Options.Lookback, m.Options.Horizon, m.Options.ConfidenceBand,
		); err != nil {
			return err
		}
		if lstm := m.Options.LSTMOptions; lstm != nil {
			if _, err := fmt.Fprintf(w, "%s%sLSTM: units=%v dropout=%.2f epochs=%d batch=%d\n",
				prefix, indentExpand(indent, 1),
				lstm.Units, lstm.Dropout, lstm.Epochs, lstm.BatchSize,
			); err != nil {
				return err
			}
		}
		if gbt := m.Options.GBTOptions; gbt != nil {
			if _, err := fmt.Fprintf(w, "%s%sGBT: estimators=%d learning_rate=%.3f max_depth=%d\n",
				prefix, indentExpand(indent, 1),
				gbt.Estimators, gbt.LearningRate, gbt.MaxDepth,
			); err != nil {
				return err
			}
		}
	}

	return m.Scores.tablePrint(w, prefix, indent, 0)
}

func (s *ModelScores) tablePrint(w io.Writer, prefix, indent string, indentGrowth int) error {
	noScores := " None"
	if s != nil {
		noScores = ""
	}
	if _, err := fmt.Fprintf(w, "%s%sScores:%s\n", prefix, indentExpand(indent, indentGrowth), noScores); err != nil {
		return err
	}
	if s == nil {
		return nil
	}

	tbl := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	if _, err := fmt.Fprintf(tbl, "%s%sModel\tMSE\tRMSE\tMAE\tMAPE\tR2\t\n", prefix, indentExpand(indent, indentGrowth+1)); err != nil {
		return err
	}
	rows := []struct {
		name   string
		scores *Scores
	}{
		{"lstm", s.LSTM},
		{"gbt", s.GBT},
		{"ensemble", s.Ensemble},
	}
	for _, r := range rows {
		if r.scores == nil {
			continue
		}
		if _, err := fmt.Fprintf(tbl, "%s%s%s\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\t\n",
			prefix, indentExpand(indent, indentGrowth+1),
			r.name, r.scores.MSE, r.scores.RMSE, r.scores.MAE, r.scores.MAPE, r.scores.R2,
		); err != nil {
			return err
		}
	}
	return tbl.Flush()
}

// TablePrint writes the options and test scores of the trained model
func (f *Forecaster) TablePrint(w io.Writer) error {
	m, err := f.Model()
	if err != nil {
		return err
	}
	return m.TablePrint(w)
}

// SaveModel writes the trained model as JSON
func (f *Forecaster) SaveModel(w io.Writer) error {
	m, err := f.Model()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("unable to encode model, %w", err)
	}
	return nil
}

// LoadModel reads a model written by SaveModel and returns a forecaster ready to forecast
func LoadModel(r io.Reader) (*Forecaster, error) {
	var m Model
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("unable to decode model, %w", err)
	}
	return NewFromModel(m)
}
