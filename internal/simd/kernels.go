package simd

import (
	"encoding/binary"
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/x448/float16"
	"gonum.org/v1/gonum/blas/blas32"
)

// kernelSet is the table of distance kernels bound for one ISA.
type kernelSet struct {
	isa       ISA
	override  bool
	dot       func(a, b []float32) float32
	squaredL2 func(a, b []float32) float32
	dotHalf   func(a, b []float16.Float16) float32
	l2Half    func(a, b []float16.Float16) float32
	hamming   func(a, b []byte) uint64
	andOr     func(a, b []byte) (and, or uint64)
}

var (
	initMu sync.Mutex
	active atomic.Pointer[kernelSet]
)

// Init selects the kernels for this process. It runs the CPU detection
// once; later calls are no-ops until Reset.
func Init() {
	load()
}

// Reset drops the selected kernels so that the next call selects again.
// Intended for tests that switch the override.
func Reset() {
	initMu.Lock()
	defer initMu.Unlock()
	active.Store(nil)
}

// Use forces the kernels of isa. It returns false if the CPU does not
// support it, in which case the selection is unchanged.
func Use(isa ISA) bool {
	if !Available(isa) {
		return false
	}
	initMu.Lock()
	defer initMu.Unlock()
	active.Store(newKernelSet(isa, true))
	return true
}

// ActiveISA returns the ISA the kernels were selected for.
func ActiveISA() ISA {
	return load().isa
}

// IsOverridden reports whether the selection came from the environment or Use.
func IsOverridden() bool {
	return load().override
}

func load() *kernelSet {
	if k := active.Load(); k != nil {
		return k
	}
	initMu.Lock()
	defer initMu.Unlock()
	if k := active.Load(); k != nil {
		return k
	}
	isa, override := detectISA()
	k := newKernelSet(isa, override)
	active.Store(k)
	return k
}

func newKernelSet(isa ISA, override bool) *kernelSet {
	k := &kernelSet{
		isa:       isa,
		override:  override,
		dot:       dotGeneric,
		squaredL2: squaredL2Generic,
		dotHalf:   dotHalfGeneric,
		l2Half:    squaredL2HalfGeneric,
		hamming:   hammingBytes,
		andOr:     andOrBytes,
	}
	if isa != Generic {
		// gonum ships assembly for unit-stride float32 dot products.
		k.dot = dotBLAS
	}
	if hasPOPCNT && isa != Generic {
		k.hamming = hammingWords
		k.andOr = andOrWords
	}
	return k
}

// Dot calculates the dot product of two vectors.
//
// SAFETY: Assumes len(a) == len(b). Caller MUST ensure lengths match.
func Dot(a, b []float32) float32 {
	return load().dot(a, b)
}

// SquaredL2 calculates the squared L2 distance.
//
// SAFETY: Assumes len(a) == len(b). Caller MUST ensure lengths match.
func SquaredL2(a, b []float32) float32 {
	return load().squaredL2(a, b)
}

// DotHalf calculates the dot product of two half precision vectors.
func DotHalf(a, b []float16.Float16) float32 {
	return load().dotHalf(a, b)
}

// SquaredL2Half calculates the squared L2 distance of two half precision vectors.
func SquaredL2Half(a, b []float16.Float16) float32 {
	return load().l2Half(a, b)
}

// Hamming counts the differing bits of two packed bit vectors.
func Hamming(a, b []byte) uint64 {
	return load().hamming(a, b)
}

// AndOr counts the bits set in a AND b and in a OR b.
func AndOr(a, b []byte) (and, or uint64) {
	return load().andOr(a, b)
}

func dotGeneric(a, b []float32) float32 {
	var s0, s1, s2, s3 float32
	n := len(a)
	b = b[:n]
	i := 0
	for ; i+4 <= n; i += 4 {
		s0 += a[i] * b[i]
		s1 += a[i+1] * b[i+1]
		s2 += a[i+2] * b[i+2]
		s3 += a[i+3] * b[i+3]
	}
	for ; i < n; i++ {
		s0 += a[i] * b[i]
	}
	return s0 + s1 + s2 + s3
}

func dotBLAS(a, b []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	return blas32.Dot(
		blas32.Vector{N: len(a), Inc: 1, Data: a},
		blas32.Vector{N: len(a), Inc: 1, Data: b},
	)
}

func squaredL2Generic(a, b []float32) float32 {
	var s0, s1, s2, s3 float32
	n := len(a)
	b = b[:n]
	i := 0
	for ; i+4 <= n; i += 4 {
		d0 := a[i] - b[i]
		d1 := a[i+1] - b[i+1]
		d2 := a[i+2] - b[i+2]
		d3 := a[i+3] - b[i+3]
		s0 += d0 * d0
		s1 += d1 * d1
		s2 += d2 * d2
		s3 += d3 * d3
	}
	for ; i < n; i++ {
		d := a[i] - b[i]
		s0 += d * d
	}
	return s0 + s1 + s2 + s3
}

func dotHalfGeneric(a, b []float16.Float16) float32 {
	var s float32
	b = b[:len(a)]
	for i := range a {
		s += a[i].Float32() * b[i].Float32()
	}
	return s
}

func squaredL2HalfGeneric(a, b []float16.Float16) float32 {
	var s float32
	b = b[:len(a)]
	for i := range a {
		d := a[i].Float32() - b[i].Float32()
		s += d * d
	}
	return s
}

func hammingBytes(a, b []byte) uint64 {
	var n int
	b = b[:len(a)]
	for i := range a {
		n += bits.OnesCount8(a[i] ^ b[i])
	}
	return uint64(n)
}

func andOrBytes(a, b []byte) (and, or uint64) {
	var x, y int
	b = b[:len(a)]
	for i := range a {
		x += bits.OnesCount8(a[i] & b[i])
		y += bits.OnesCount8(a[i] | b[i])
	}
	return uint64(x), uint64(y)
}

func hammingWords(a, b []byte) uint64 {
	var n int
	b = b[:len(a)]
	i := 0
	for ; i+8 <= len(a); i += 8 {
		n += bits.OnesCount64(binary.LittleEndian.Uint64(a[i:]) ^ binary.LittleEndian.Uint64(b[i:]))
	}
	return uint64(n) + hammingBytes(a[i:], b[i:])
}

func andOrWords(a, b []byte) (and, or uint64) {
	var x, y int
	b = b[:len(a)]
	i := 0
	for ; i+8 <= len(a); i += 8 {
		wa := binary.LittleEndian.Uint64(a[i:])
		wb := binary.LittleEndian.Uint64(b[i:])
		x += bits.OnesCount64(wa & wb)
		y += bits.OnesCount64(wa | wb)
	}
	tx, ty := andOrBytes(a[i:], b[i:])
	return uint64(x) + tx, uint64(y) + ty
}
