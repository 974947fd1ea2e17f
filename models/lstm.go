package models

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	DefaultLSTMUnits        = 20
	DefaultLSTMEpochs       = 50
	DefaultLSTMBatchSize    = 1
	DefaultLSTMLearningRate = 0.001
	DefaultLSTMClipNorm     = 5.0
	DefaultSeed             = 42
)

var (
	ErrNoUnits              = errors.New("at least one lstm layer is required")
	ErrNonPositiveUnits     = errors.New("lstm layer units must be positive")
	ErrInvalidDropout       = errors.New("dropout must be in [0, 1)")
	ErrNonPositiveEpochs    = errors.New("epochs must be positive")
	ErrNonPositiveBatchSize = errors.New("batch size must be positive")
	ErrNonPositiveLearnRate = errors.New("learning rate must be positive")
	ErrNegativeClipNorm     = errors.New("negative gradient clip norm")
)

// LSTMOptions configures the recurrent regressor
type LSTMOptions struct {
	// Units lists the hidden size of each stacked LSTM layer. Inputs flow through the layers in
	// order and the last hidden state of the final layer feeds a dense scalar output.
	Units []int `json:"units"`

	// Dropout is the fraction of each layer's outputs zeroed during training
	Dropout float64 `json:"dropout"`

	Epochs       int     `json:"epochs"`
	BatchSize    int     `json:"batch_size"`
	LearningRate float64 `json:"learning_rate"`

	// ClipNorm caps the global gradient norm per update. 0 disables clipping.
	ClipNorm float64 `json:"clip_norm"`

	// Seed drives weight initialization, shuffling and dropout masks
	Seed uint64 `json:"seed"`

	// Shuffle reorders the training samples every epoch
	Shuffle bool `json:"shuffle"`
}

// NewDefaultLSTMOptions returns a single 20 unit layer trained for 50 epochs with a batch size of 1
func NewDefaultLSTMOptions() *LSTMOptions {
	return &LSTMOptions{
		Units:        []int{DefaultLSTMUnits},
		Dropout:      0.0,
		Epochs:       DefaultLSTMEpochs,
		BatchSize:    DefaultLSTMBatchSize,
		LearningRate: DefaultLSTMLearningRate,
		ClipNorm:     DefaultLSTMClipNorm,
		Seed:         DefaultSeed,
		Shuffle:      true,
	}
}

// Validate runs basic validation on the LSTM options
func (l *LSTMOptions) Validate() (*LSTMOptions, error) {
	if l == nil {
		l = NewDefaultLSTMOptions()
	}

	if len(l.Units) == 0 {
		return nil, ErrNoUnits
	}
	for _, u := range l.Units {
		if u < 1 {
			return nil, fmt.Errorf("got %d units, %w", u, ErrNonPositiveUnits)
		}
	}
	if l.Dropout < 0 || l.Dropout >= 1 {
		return nil, ErrInvalidDropout
	}
	if l.Epochs < 1 {
		return nil, ErrNonPositiveEpochs
	}
	if l.BatchSize < 1 {
		return nil, ErrNonPositiveBatchSize
	}
	if l.LearningRate <= 0 {
		return nil, ErrNonPositiveLearnRate
	}
	if l.ClipNorm < 0 {
		return nil, ErrNegativeClipNorm
	}
	return l, nil
}

// LSTMLayer holds the weights of one recurrent layer. Gate blocks are stacked in the order input,
// forget, cell, output so W is 4*Hidden x Input and U is 4*Hidden x Hidden, both row major.
type LSTMLayer struct {
	Input  int       `json:"input"`
	Hidden int       `json:"hidden"`
	W      []float64 `json:"w"`
	U      []float64 `json:"u"`
	B      []float64 `json:"b"`
}

// DenseLayer maps the final hidden state to the scalar prediction
type DenseLayer struct {
	W []float64 `json:"w"`
	B []float64 `json:"b"`
}

// LSTMWeights is the serializable state of a trained LSTMRegression
type LSTMWeights struct {
	Lookback int         `json:"lookback"`
	Layers   []LSTMLayer `json:"layers"`
	Output   DenseLayer  `json:"output"`
}

// Copy returns a deep copy of the weights
func (w LSTMWeights) Copy() LSTMWeights {
	res := LSTMWeights{
		Lookback: w.Lookback,
		Layers:   make([]LSTMLayer, len(w.Layers)),
		Output: DenseLayer{
			W: append([]float64(nil), w.Output.W...),
			B: append([]float64(nil), w.Output.B...),
		},
	}
	for i, l := range w.Layers {
		res.Layers[i] = LSTMLayer{
			Input:  l.Input,
			Hidden: l.Hidden,
			W:      append([]float64(nil), l.W...),
			U:      append([]float64(nil), l.U...),
			B:      append([]float64(nil), l.B...),
		}
	}
	return res
}

// Validate checks that every weight block matches the declared layer sizes
func (w LSTMWeights) Validate() error {
	if len(w.Layers) == 0 {
		return fmt.Errorf("no layers, %w", ErrInvalidWeights)
	}
	if w.Lookback < 1 {
		return fmt.Errorf("lookback %d, %w", w.Lookback, ErrInvalidWeights)
	}
	input := 1
	for i, l := range w.Layers {
		if l.Input != input || l.Hidden < 1 {
			return fmt.Errorf("layer %d has input %d and hidden %d, %w", i, l.Input, l.Hidden, ErrInvalidWeights)
		}
		if len(l.W) != 4*l.Hidden*l.Input || len(l.U) != 4*l.Hidden*l.Hidden || len(l.B) != 4*l.Hidden {
			return fmt.Errorf("layer %d weight blocks do not match its sizes, %w", i, ErrInvalidWeights)
		}
		input = l.Hidden
	}
	if len(w.Output.W) != input || len(w.Output.B) != 1 {
		return fmt.Errorf("output layer expects %d inputs, %w", input, ErrInvalidWeights)
	}
	return nil
}

func (w *LSTMWeights) params() [][]float64 {
	p := make([][]float64, 0, 3*len(w.Layers)+2)
	for i := range w.Layers {
		p = append(p, w.Layers[i].W, w.Layers[i].U, w.Layers[i].B)
	}
	return append(p, w.Output.W, w.Output.B)
}

func (w LSTMWeights) zeros() LSTMWeights {
	res := LSTMWeights{
		Lookback: w.Lookback,
		Layers:   make([]LSTMLayer, len(w.Layers)),
		Output: DenseLayer{
			W: make([]float64, len(w.Output.W)),
			B: make([]float64, len(w.Output.B)),
		},
	}
	for i, l := range w.Layers {
		res.Layers[i] = LSTMLayer{
			Input:  l.Input,
			Hidden: l.Hidden,
			W:      make([]float64, len(l.W)),
			U:      make([]float64, len(l.U)),
			B:      make([]float64, len(l.B)),
		}
	}
	return res
}

func newLSTMWeights(lookback int, units []int, rng *rand.Rand) LSTMWeights {
	w := LSTMWeights{
		Lookback: lookback,
		Layers:   make([]LSTMLayer, len(units)),
	}
	input := 1
	for i, h := range units {
		l := LSTMLayer{
			Input:  input,
			Hidden: h,
			W:      glorotUniform(rng, 4*h*input, input, 4*h),
			U:      glorotUniform(rng, 4*h*h, h, 4*h),
			B:      make([]float64, 4*h),
		}
		// forget gate starts open
		for j := h; j < 2*h; j++ {
			l.B[j] = 1.0
		}
		w.Layers[i] = l
		input = h
	}
	w.Output = DenseLayer{
		W: glorotUniform(rng, input, input, 1),
		B: make([]float64, 1),
	}
	return w
}

func glorotUniform(rng *rand.Rand, size, fanIn, fanOut int) []float64 {
	limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
	res := make([]float64, size)
	for i := range res {
		res[i] = (2*rng.Float64() - 1) * limit
	}
	return res
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func relu(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

func reluGrad(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

// lstmStep caches the activations of a single timestep for backpropagation
type lstmStep struct {
	x, hPrev, cPrev []float64
	i, f, g, o      []float64
	zg, c, h        []float64
}

type lstmLayerCache struct {
	steps []lstmStep
	masks [][]float64
	out   [][]float64
}

// forward runs the layer over seq. A nil rng disables dropout.
func (l *LSTMLayer) forward(seq [][]float64, dropout float64, rng *rand.Rand) lstmLayerCache {
	hid := l.Hidden
	h := make([]float64, hid)
	c := make([]float64, hid)
	z := make([]float64, 4*hid)

	cache := lstmLayerCache{
		steps: make([]lstmStep, len(seq)),
		out:   make([][]float64, len(seq)),
	}
	applyDropout := rng != nil && dropout > 0
	if applyDropout {
		cache.masks = make([][]float64, len(seq))
	}

	for t, x := range seq {
		for r := 0; r < 4*hid; r++ {
			z[r] = floats.Dot(l.W[r*l.Input:(r+1)*l.Input], x) + floats.Dot(l.U[r*hid:(r+1)*hid], h) + l.B[r]
		}

		s := lstmStep{
			x:     x,
			hPrev: h,
			cPrev: c,
			i:     make([]float64, hid),
			f:     make([]float64, hid),
			g:     make([]float64, hid),
			o:     make([]float64, hid),
			zg:    make([]float64, hid),
			c:     make([]float64, hid),
			h:     make([]float64, hid),
		}
		for j := 0; j < hid; j++ {
			s.i[j] = sigmoid(z[j])
			s.f[j] = sigmoid(z[hid+j])
			s.zg[j] = z[2*hid+j]
			s.g[j] = relu(s.zg[j])
			s.o[j] = sigmoid(z[3*hid+j])
			s.c[j] = s.f[j]*c[j] + s.i[j]*s.g[j]
			s.h[j] = s.o[j] * relu(s.c[j])
		}

		out := s.h
		if applyDropout {
			keep := 1 - dropout
			mask := make([]float64, hid)
			out = make([]float64, hid)
			for j := range mask {
				if rng.Float64() < keep {
					mask[j] = 1 / keep
				}
				out[j] = s.h[j] * mask[j]
			}
			cache.masks[t] = mask
		}

		cache.steps[t] = s
		cache.out[t] = out
		h, c = s.h, s.c
	}
	return cache
}

// backward propagates dOut, the loss gradient with respect to each timestep's output, through
// time. Gradients accumulate into grad and the gradient with respect to the layer input is returned.
func (l *LSTMLayer) backward(cache lstmLayerCache, dOut [][]float64, grad *LSTMLayer) [][]float64 {
	hid, in := l.Hidden, l.Input
	steps := len(cache.steps)

	dIn := make([][]float64, steps)
	dhNext := make([]float64, hid)
	dcNext := make([]float64, hid)
	dz := make([]float64, 4*hid)

	for t := steps - 1; t >= 0; t-- {
		s := cache.steps[t]
		for j := 0; j < hid; j++ {
			dh := dhNext[j]
			if dOut[t] != nil {
				d := dOut[t][j]
				if cache.masks != nil {
					d *= cache.masks[t][j]
				}
				dh += d
			}
			dOutGate := dh * relu(s.c[j])
			dc := dh*s.o[j]*reluGrad(s.c[j]) + dcNext[j]
			dcNext[j] = dc * s.f[j]

			dz[j] = dc * s.g[j] * s.i[j] * (1 - s.i[j])
			dz[hid+j] = dc * s.cPrev[j] * s.f[j] * (1 - s.f[j])
			dz[2*hid+j] = dc * s.i[j] * reluGrad(s.zg[j])
			dz[3*hid+j] = dOutGate * s.o[j] * (1 - s.o[j])
		}

		for j := range dhNext {
			dhNext[j] = 0
		}
		dIn[t] = make([]float64, in)
		for r := 0; r < 4*hid; r++ {
			if dz[r] == 0 {
				continue
			}
			floats.AddScaled(grad.W[r*in:(r+1)*in], dz[r], s.x)
			floats.AddScaled(grad.U[r*hid:(r+1)*hid], dz[r], s.hPrev)
			grad.B[r] += dz[r]
			floats.AddScaled(dIn[t], dz[r], l.W[r*in:(r+1)*in])
			floats.AddScaled(dhNext, dz[r], l.U[r*hid:(r+1)*hid])
		}
	}
	return dIn
}

// LSTMRegression predicts the value following a lookback window with stacked LSTM layers and a
// dense output
type LSTMRegression struct {
	opt     *LSTMOptions
	weights *LSTMWeights
	history LossHistory
}

// NewLSTMRegression initializes an LSTM model ready for fitting
func NewLSTMRegression(opt *LSTMOptions) (*LSTMRegression, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	return &LSTMRegression{
		opt: opt,
	}, nil
}

// NewLSTMRegressionFromWeights rebuilds a trained model from previously exported weights
func NewLSTMRegressionFromWeights(opt *LSTMOptions, w LSTMWeights) (*LSTMRegression, error) {
	l, err := NewLSTMRegression(opt)
	if err != nil {
		return nil, err
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	weights := w.Copy()
	l.weights = &weights
	return l, nil
}

// Fit trains the network on windows x and next values y
func (l *LSTMRegression) Fit(x, y mat.Matrix) error {
	return l.FitWithValidation(context.Background(), x, y, nil, nil)
}

// FitContext trains the network, checking ctx for cancellation before every epoch
func (l *LSTMRegression) FitContext(ctx context.Context, x, y mat.Matrix) error {
	return l.FitWithValidation(ctx, x, y, nil, nil)
}

// FitWithValidation trains the network with mini-batch Adam on the mean squared error. When xVal
// and yVal are provided the validation loss is recorded after every epoch.
func (l *LSTMRegression) FitWithValidation(ctx context.Context, x, y, xVal, yVal mat.Matrix) error {
	if l.opt == nil {
		return ErrNoOptions
	}
	windows, targets, err := trainingData(x, y)
	if err != nil {
		return err
	}
	valWindows, valTargets, err := validationData(xVal, yVal)
	if err != nil {
		return err
	}
	lookback := len(windows[0])
	if valWindows != nil && len(valWindows[0]) != lookback {
		return fmt.Errorf("validation windows have %d values but training windows have %d, %w", len(valWindows[0]), lookback, ErrFeatureLenMismatch)
	}

	rng := rand.New(rand.NewPCG(l.opt.Seed, l.opt.Seed^0x9e3779b97f4a7c15))
	weights := newLSTMWeights(lookback, l.opt.Units, rng)
	grad := weights.zeros()
	params := weights.params()
	grads := grad.params()
	optimizer := newAdam(l.opt.LearningRate, params)

	m := len(windows)
	order := make([]int, m)
	for i := range order {
		order[i] = i
	}

	history := LossHistory{Loss: make([]float64, 0, l.opt.Epochs)}
	if valWindows != nil {
		history.ValLoss = make([]float64, 0, l.opt.Epochs)
	}

	for epoch := 0; epoch < l.opt.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("lstm training stopped at epoch %d, %w", epoch, err)
		}
		if l.opt.Shuffle {
			rng.Shuffle(m, func(i, j int) {
				order[i], order[j] = order[j], order[i]
			})
		}

		var epochLoss float64
		for start := 0; start < m; start += l.opt.BatchSize {
			end := min(start+l.opt.BatchSize, m)
			batch := float64(end - start)
			for _, g := range grads {
				clear(g)
			}
			for _, idx := range order[start:end] {
				pred, caches := weights.forward(windows[idx], l.opt.Dropout, rng)
				diff := pred - targets[idx]
				epochLoss += diff * diff
				weights.backward(caches, 2*diff/batch, &grad)
			}
			clipGradients(grads, l.opt.ClipNorm)
			optimizer.update(params, grads)
		}
		history.Loss = append(history.Loss, epochLoss/float64(m))

		if valWindows != nil {
			history.ValLoss = append(history.ValLoss, meanSquaredError(weights.predictRows(valWindows), valTargets))
		}
		slog.Debug("lstm epoch complete", "epoch", epoch+1, "loss", history.Loss[epoch])
	}

	l.weights = &weights
	l.history = history
	return nil
}

func (w *LSTMWeights) forward(window []float64, dropout float64, rng *rand.Rand) (float64, []lstmLayerCache) {
	seq := make([][]float64, len(window))
	for t, v := range window {
		seq[t] = []float64{v}
	}

	caches := make([]lstmLayerCache, len(w.Layers))
	for k := range w.Layers {
		caches[k] = w.Layers[k].forward(seq, dropout, rng)
		seq = caches[k].out
	}
	last := seq[len(seq)-1]
	return floats.Dot(w.Output.W, last) + w.Output.B[0], caches
}

// backward accumulates the gradients of a single sample whose loss gradient with respect to the
// prediction is dPred
func (w *LSTMWeights) backward(caches []lstmLayerCache, dPred float64, grad *LSTMWeights) {
	top := caches[len(caches)-1]
	steps := len(top.out)
	last := top.out[steps-1]

	floats.AddScaled(grad.Output.W, dPred, last)
	grad.Output.B[0] += dPred

	dOut := make([][]float64, steps)
	dOut[steps-1] = make([]float64, len(last))
	floats.AddScaled(dOut[steps-1], dPred, w.Output.W)

	for k := len(w.Layers) - 1; k >= 0; k-- {
		dOut = w.Layers[k].backward(caches[k], dOut, &grad.Layers[k])
	}
}

func (w *LSTMWeights) predictRows(rows [][]float64) []float64 {
	res := make([]float64, len(rows))
	for i, row := range rows {
		res[i], _ = w.forward(row, 0, nil)
	}
	return res
}

// Predict returns the next value for each window in x
func (l *LSTMRegression) Predict(x mat.Matrix) ([]float64, error) {
	if l.opt == nil {
		return nil, ErrNoOptions
	}
	if l.weights == nil {
		return nil, ErrNotFitted
	}
	rows, err := designRows(x, l.weights.Lookback)
	if err != nil {
		return nil, err
	}
	return l.weights.predictRows(rows), nil
}

// PredictWindow returns the next value for a single window
func (l *LSTMRegression) PredictWindow(window []float64) (float64, error) {
	if l.weights == nil {
		return 0.0, ErrNotFitted
	}
	if len(window) != l.weights.Lookback {
		return 0.0, fmt.Errorf("got window of %d values, but expected %d, %w", len(window), l.weights.Lookback, ErrFeatureLenMismatch)
	}
	pred, _ := l.weights.forward(window, 0, nil)
	return pred, nil
}

// Score computes the coefficient of determination of the prediction
func (l *LSTMRegression) Score(x, y mat.Matrix) (float64, error) {
	if l.opt == nil {
		return 0.0, ErrNoOptions
	}
	return rSquared(l, x, y)
}

// History returns the per epoch training and validation loss of the last fit
func (l *LSTMRegression) History() LossHistory {
	return l.history.Copy()
}

// Weights returns a copy of the trained weights
func (l *LSTMRegression) Weights() (LSTMWeights, error) {
	if l.weights == nil {
		return LSTMWeights{}, ErrNotFitted
	}
	return l.weights.Copy(), nil
}

// Options returns the options the model was built with
func (l *LSTMRegression) Options() *LSTMOptions {
	return l.opt
}
