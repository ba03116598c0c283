// Package features computes the time-domain EMG descriptors used as
// classifier input. Every function is pure and operates on a single window;
// nothing is buffered across calls.
package features

import (
	"fmt"
	"math"
)

// Window is one acquisition cycle's worth of raw sample amplitudes.
type Window []float64

// FromBytes widens each raw sensor byte to its unsigned value.
func FromBytes(b []byte) Window {
	w := make(Window, len(b))
	for i, c := range b {
		w[i] = float64(c)
	}
	return w
}

// FromSignedBytes reads each byte as a two's complement sample, for sensors
// that emit signed 8-bit amplitudes centred on zero.
func FromSignedBytes(b []byte) Window {
	w := make(Window, len(b))
	for i, c := range b {
		w[i] = float64(int8(c))
	}
	return w
}

// Decoder turns a raw sensor buffer into a Window.
type Decoder func([]byte) Window

// DecoderFor returns the decoder for a sample format name: "unsigned"
// (the default when empty) or "signed".
func DecoderFor(format string) (Decoder, error) {
	switch format {
	case "", "unsigned":
		return FromBytes, nil
	case "signed":
		return FromSignedBytes, nil
	}
	return nil, fmt.Errorf("unknown sample format %q", format)
}

// Size is the number of features in a Vector.
const Size = 5

// Feature positions inside a Vector. The order must match the order the
// classifier was trained on.
const (
	MAV = iota
	ZC
	SSC
	WL
	RMS
)

// Names lists the feature column names in vector order.
var Names = [Size]string{"MAV", "ZC", "SSC", "WL", "RMS"}

// Vector holds the five features derived from one Window.
type Vector [Size]float64

// Extract computes all five features from the same window.
func Extract(w Window) Vector {
	return Vector{
		MAV: ComputeMAV(w),
		ZC:  float64(ComputeZC(w)),
		SSC: float64(ComputeSSC(w)),
		WL:  ComputeWL(w),
		RMS: ComputeRMS(w),
	}
}

// Slice returns the vector as a new slice.
func (v Vector) Slice() []float64 {
	out := make([]float64, Size)
	copy(out, v[:])
	return out
}

func (v Vector) MAV() float64 { return v[MAV] }
func (v Vector) ZC() int      { return int(v[ZC]) }
func (v Vector) SSC() int     { return int(v[SSC]) }
func (v Vector) WL() float64  { return v[WL] }
func (v Vector) RMS() float64 { return v[RMS] }

// ComputeMAV returns the mean absolute value, or 0 for an empty window.
func ComputeMAV(w Window) float64 {
	if len(w) == 0 {
		return 0
	}
	var sum float64
	for _, x := range w {
		sum += math.Abs(x)
	}
	return sum / float64(len(w))
}

// ComputeZC counts adjacent pairs with strictly opposite signs. A sample at
// exactly zero never forms a crossing.
func ComputeZC(w Window) int {
	count := 0
	for i := 1; i < len(w); i++ {
		if (w[i-1] > 0 && w[i] < 0) || (w[i-1] < 0 && w[i] > 0) {
			count++
		}
	}
	return count
}

// ComputeSSC counts slope sign changes: indices where consecutive first
// differences have a strictly negative product. Windows shorter than three
// samples have none.
func ComputeSSC(w Window) int {
	count := 0
	for i := 2; i < len(w); i++ {
		if (w[i]-w[i-1])*(w[i-1]-w[i-2]) < 0 {
			count++
		}
	}
	return count
}

// ComputeWL returns the waveform length, the sum of absolute first differences.
func ComputeWL(w Window) float64 {
	var length float64
	for i := 1; i < len(w); i++ {
		length += math.Abs(w[i] - w[i-1])
	}
	return length
}

// ComputeRMS returns the root mean square, or 0 for an empty window.
func ComputeRMS(w Window) float64 {
	if len(w) == 0 {
		return 0
	}
	var sum float64
	for _, x := range w {
		sum += x * x
	}
	return math.Sqrt(sum / float64(len(w)))
}
