package engine

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"testing"
)

func TestUnitFloat(t *testing.T) {
	tests := []struct {
		name     string
		bytes    []byte
		expected float64
	}{
		{"all zeros", []byte{0, 0, 0, 0}, 0},
		{"all max values", []byte{255, 255, 255, 255}, float64(1<<32-1) / (1 << 32)},
		{"first byte only", []byte{1, 0, 0, 0}, 1.0 / 256},
		{"last byte only", []byte{0, 0, 0, 1}, 1.0 / (1 << 32)},
		{"half", []byte{128, 0, 0, 0}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := unitFloat(tt.bytes)
			if result != tt.expected {
				t.Errorf("unitFloat() = %.15f, want %.15f", result, tt.expected)
			}
			if result < 0 || result >= 1 {
				t.Errorf("unitFloat() out of range [0, 1): %f", result)
			}
		})
	}
}

func TestStreamSourceMatchesHMACBlocks(t *testing.T) {
	src := NewStreamSource("secret", "wheel")

	for block := 0; block < 2; block++ {
		mac := hmac.New(sha256.New, []byte("secret"))
		mac.Write([]byte(fmt.Sprintf("wheel:%d", block)))
		sum := mac.Sum(nil)

		for i := 0; i < 8; i++ {
			want := unitFloat(sum[i*4 : i*4+4])
			if got := src.Float64(); got != want {
				t.Fatalf("block %d draw %d = %f, want %f", block, i, got, want)
			}
		}
	}
	if src.Draws() != 16 {
		t.Errorf("Draws() = %d, want 16", src.Draws())
	}
}

func TestStreamSourceDeterministic(t *testing.T) {
	a := NewStreamSource("seed", "wheel-a")
	b := NewStreamSource("seed", "wheel-a")

	for i := 0; i < 50; i++ {
		x, y := a.Float64(), b.Float64()
		if x != y {
			t.Fatalf("draw %d: got %f and %f from the same seed", i, x, y)
		}
	}
	if a.Draws() != 50 {
		t.Errorf("Draws() = %d, want 50", a.Draws())
	}
}

func TestStreamSourceLabelsDiverge(t *testing.T) {
	a := NewStreamSource("seed", "wheel-a")
	b := NewStreamSource("seed", "wheel-b")

	same := 0
	for i := 0; i < 20; i++ {
		if a.Float64() == b.Float64() {
			same++
		}
	}
	if same == 20 {
		t.Error("different labels produced identical streams")
	}
}

func TestCryptoSourceRange(t *testing.T) {
	var src CryptoSource
	for i := 0; i < 1000; i++ {
		f := src.Float64()
		if f < 0 || f >= 1 {
			t.Fatalf("crypto draw out of range [0, 1): %f", f)
		}
	}
}

func TestNewSource(t *testing.T) {
	if _, ok := NewSource("", "x").(CryptoSource); !ok {
		t.Error("empty seed should select CryptoSource")
	}
	if _, ok := NewSource("abc", "x").(*StreamSource); !ok {
		t.Error("non-empty seed should select StreamSource")
	}
}

func TestUniform(t *testing.T) {
	src := NewStreamSource("uniform", "test")
	for i := 0; i < 1000; i++ {
		v := Uniform(src, 0.25, 0.75)
		if v < 0.25 || v >= 0.75 {
			t.Fatalf("Uniform out of range [0.25, 0.75): %f", v)
		}
	}
}
