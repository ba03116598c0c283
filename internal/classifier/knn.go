package classifier

import (
	"fmt"
	"math"
	"sort"

	"github.com/banshee-data/myolink/internal/features"
)

// KNN classifies by majority vote among the k nearest prototypes.
type KNN struct {
	k          int
	prototypes []Prototype
}

type neighbour struct {
	index    int
	distance float64
}

// NewKNN builds a nearest-neighbour model. Prototypes are copied.
func NewKNN(k int, prototypes []Prototype) (*KNN, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: invalid neighbour count %d", ErrInvalidModel, k)
	}
	if len(prototypes) == 0 {
		return nil, fmt.Errorf("%w: knn needs at least one prototype", ErrInvalidModel)
	}

	protos := make([]Prototype, len(prototypes))
	for i, p := range prototypes {
		if len(p.Features) != features.Size {
			return nil, fmt.Errorf("%w: prototype %d has %d features, want %d", ErrInvalidModel, i, len(p.Features), features.Size)
		}
		f := make([]float64, features.Size)
		copy(f, p.Features)
		protos[i] = Prototype{Features: f, Label: p.Label}
	}
	if k > len(protos) {
		k = len(protos)
	}
	return &KNN{k: k, prototypes: protos}, nil
}

// Classify implements Classifier. Vote ties are broken in favour of the
// label of the closest neighbour among the tied labels.
func (m *KNN) Classify(v features.Vector) Label {
	pairs := make([]neighbour, len(m.prototypes))
	for i, p := range m.prototypes {
		var sum float64
		for j, x := range p.Features {
			d := x - v[j]
			sum += d * d
		}
		pairs[i] = neighbour{index: i, distance: math.Sqrt(sum)}
	}
	sort.SliceStable(pairs, func(a, b int) bool { return pairs[a].distance < pairs[b].distance })

	votes := make(map[Label]int)
	var best Label
	bestVotes := 0
	for _, n := range pairs[:m.k] {
		label := m.prototypes[n.index].Label
		votes[label]++
	}
	// walk in distance order so the first label to reach the top count wins
	for _, n := range pairs[:m.k] {
		label := m.prototypes[n.index].Label
		if votes[label] > bestVotes {
			best = label
			bestVotes = votes[label]
		}
	}
	return best
}
