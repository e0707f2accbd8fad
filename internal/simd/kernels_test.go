package simd

import (
	"fmt"
	"math/bits"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func randFloats(rng *rand.Rand, n int) []float32 {
	x := make([]float32, n)
	for i := range x {
		x[i] = rng.Float32()*2 - 1
	}
	return x
}

func refDot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func refL2(a, b []float32) float64 {
	var s float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		s += d * d
	}
	return s
}

func TestFloatKernels(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	for _, isa := range []ISA{Generic, NEON, AVX2, AVX512} {
		if !Use(isa) {
			continue
		}
		for _, n := range []int{0, 1, 3, 4, 7, 16, 33, 128} {
			t.Run(fmt.Sprintf("%s/%d", isa, n), func(t *testing.T) {
				a, b := randFloats(rng, n), randFloats(rng, n)
				assert.InDelta(t, refDot(a, b), Dot(a, b), 1e-4)
				assert.InDelta(t, refL2(a, b), SquaredL2(a, b), 1e-4)
			})
		}
	}
	Reset()
}

func TestHalfKernels(t *testing.T) {
	a := []float16.Float16{float16.Fromfloat32(1), float16.Fromfloat32(2), float16.Fromfloat32(-0.5)}
	b := []float16.Float16{float16.Fromfloat32(3), float16.Fromfloat32(-1), float16.Fromfloat32(0.5)}
	assert.InDelta(t, 0.75, DotHalf(a, b), 1e-6)
	assert.InDelta(t, 4+9+1, SquaredL2Half(a, b), 1e-6)
}

func TestBitKernels(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 9))
	for _, isa := range []ISA{Generic, NEON, AVX2, AVX512} {
		if !Use(isa) {
			continue
		}
		for _, n := range []int{0, 1, 7, 8, 9, 24, 65} {
			a := make([]byte, n)
			b := make([]byte, n)
			for i := range a {
				a[i] = byte(rng.Uint32())
				b[i] = byte(rng.Uint32())
			}
			var wantH, wantAnd, wantOr int
			for i := range a {
				wantH += bits.OnesCount8(a[i] ^ b[i])
				wantAnd += bits.OnesCount8(a[i] & b[i])
				wantOr += bits.OnesCount8(a[i] | b[i])
			}
			assert.Equal(t, uint64(wantH), Hamming(a, b), "%s/%d", isa, n)
			and, or := AndOr(a, b)
			assert.Equal(t, uint64(wantAnd), and)
			assert.Equal(t, uint64(wantOr), or)
		}
	}
	Reset()
}

func TestInitOverride(t *testing.T) {
	t.Setenv(EnvOverride, "generic")
	Reset()
	Init()
	assert.Equal(t, Generic, ActiveISA())
	assert.True(t, IsOverridden())

	t.Setenv(EnvOverride, "not-an-isa")
	Reset()
	Init()
	assert.False(t, IsOverridden())
	Reset()
}

func TestParseISA(t *testing.T) {
	for _, isa := range []ISA{Generic, NEON, AVX2, AVX512} {
		got, ok := ParseISA(isa.String())
		require.True(t, ok)
		assert.Equal(t, isa, got)
	}
	_, ok := ParseISA("sse")
	assert.False(t, ok)
	assert.True(t, Available(Generic))
}
