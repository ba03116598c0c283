package classifier

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/myolink/internal/features"
)

// LinearSVM is a one-vs-rest linear model. The predicted label is the class
// with the highest decision value; ties go to the lowest class index.
type LinearSVM struct {
	weights *mat.Dense
	bias    *mat.VecDense
}

// NewLinearSVM builds a model from per-class weight rows and biases.
func NewLinearSVM(weights [][]float64, bias []float64) (*LinearSVM, error) {
	classes := len(weights)
	if classes == 0 {
		return nil, fmt.Errorf("%w: linear_svm needs at least one class", ErrInvalidModel)
	}
	if len(bias) != classes {
		return nil, fmt.Errorf("%w: linear_svm has %d weight rows but %d biases", ErrInvalidModel, classes, len(bias))
	}

	data := make([]float64, 0, classes*features.Size)
	for i, row := range weights {
		if len(row) != features.Size {
			return nil, fmt.Errorf("%w: weight row %d has %d values, want %d", ErrInvalidModel, i, len(row), features.Size)
		}
		data = append(data, row...)
	}

	b := make([]float64, classes)
	copy(b, bias)
	return &LinearSVM{
		weights: mat.NewDense(classes, features.Size, data),
		bias:    mat.NewVecDense(classes, b),
	}, nil
}

// Classes returns the number of classes the model scores.
func (m *LinearSVM) Classes() int {
	r, _ := m.weights.Dims()
	return r
}

// Classify implements Classifier.
func (m *LinearSVM) Classify(v features.Vector) Label {
	x := mat.NewVecDense(features.Size, v.Slice())

	var scores mat.VecDense
	scores.MulVec(m.weights, x)
	scores.AddVec(&scores, m.bias)

	best := 0
	for i := 1; i < scores.Len(); i++ {
		if scores.AtVec(i) > scores.AtVec(best) {
			best = i
		}
	}
	return Label(best)
}
