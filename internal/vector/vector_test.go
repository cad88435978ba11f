package vector

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"pgregory.net/rapid"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 1}, []float32{-1, -1}, -1},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		v := rapid.SliceOfN(rapid.Float32(), 1, 64).Draw(rt, "v")
		got, err := Decode(Encode(v))
		if err != nil {
			rt.Fatalf("Decode failed: %v", err)
		}
		if len(got) != len(v) {
			rt.Fatalf("length %d, want %d", len(got), len(v))
		}
		for i := range v {
			if math.Float32bits(got[i]) != math.Float32bits(v[i]) {
				rt.Fatalf("element %d: %v, want %v", i, got[i], v[i])
			}
		}
	})
}

func TestDecode_Invalid(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
	v, err := Decode(nil)
	if err != nil || v != nil {
		t.Errorf("Decode(nil) = %v, %v", v, err)
	}
}

func TestFromFloat64(t *testing.T) {
	if diff := cmp.Diff([]float32{0.5, -1}, FromFloat64([]float64{0.5, -1})); diff != "" {
		t.Errorf("FromFloat64 mismatch (-want +got):\n%s", diff)
	}
}
