// Package classifier maps feature vectors to movement intent labels using a
// model that is trained offline and loaded read-only at startup.
package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/myolink/internal/features"
)

// Label is a discrete movement intent produced by a Classifier.
type Label int

// NumLabels is the size of the closed label enumeration 0..NumLabels-1.
const NumLabels = 6

// Known reports whether l is inside the closed enumeration.
func (l Label) Known() bool { return l >= 0 && l < NumLabels }

// Classifier maps a feature vector to a label. Implementations must be
// deterministic and must not mutate their model during inference.
type Classifier interface {
	Classify(features.Vector) Label
}

// ErrInvalidModel is returned when a model artifact is well formed JSON but
// does not describe a usable model.
var ErrInvalidModel = errors.New("invalid model")

// Model artifact kinds.
const (
	KindLinearSVM = "linear_svm"
	KindKNN       = "knn"
)

const maxArtifactSize = 16 * 1024 * 1024

// Artifact is the persisted form of a trained model.
type Artifact struct {
	Kind string `json:"kind"`

	// linear_svm
	Weights [][]float64 `json:"weights,omitempty"`
	Bias    []float64   `json:"bias,omitempty"`

	// knn
	K          int         `json:"k,omitempty"`
	Prototypes []Prototype `json:"prototypes,omitempty"`
}

// Prototype is one labelled training example kept by the knn model.
type Prototype struct {
	Features []float64 `json:"features"`
	Label    Label     `json:"label"`
}

// Load reads the model artifact at path and builds the classifier it
// describes.
func Load(path string) (Classifier, error) {
	cleanPath := filepath.Clean(path)
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat model artifact: %w", err)
	}
	if info.Size() > maxArtifactSize {
		return nil, fmt.Errorf("model artifact too large: %d bytes (max %d)", info.Size(), maxArtifactSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse model artifact %s: %w", cleanPath, err)
	}
	return FromArtifact(a)
}

// FromArtifact builds a classifier from an in-memory artifact.
func FromArtifact(a Artifact) (Classifier, error) {
	switch a.Kind {
	case KindLinearSVM:
		return NewLinearSVM(a.Weights, a.Bias)
	case KindKNN:
		return NewKNN(a.K, a.Prototypes)
	default:
		return nil, fmt.Errorf("%w: unsupported kind %q", ErrInvalidModel, a.Kind)
	}
}
