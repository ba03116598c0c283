package recorder

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/myolink/internal/classifier"
	"github.com/banshee-data/myolink/internal/features"
)

func TestConstantLabel(t *testing.T) {
	var src LabelSource = ConstantLabel(0)
	assert.Equal(t, classifier.Label(0), src.GroundTruth(features.Vector{}, 4))
}

func TestOperatorLabels_Run(t *testing.T) {
	o := NewOperatorLabels(0, nil)
	input := "3\n\nbogus\n9\n2\n"
	require.NoError(t, o.Run(context.Background(), strings.NewReader(input)))
	assert.Equal(t, classifier.Label(2), o.GroundTruth(features.Vector{}, 0))
}

func TestOperatorLabels_RunStopsOnCancel(t *testing.T) {
	o := NewOperatorLabels(1, nil)
	r, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx, r) }()

	_, err := w.Write([]byte("4\n"))
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return o.GroundTruth(features.Vector{}, 0) == 4
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
