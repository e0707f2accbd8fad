// Package simd provides the distance kernels used by package distance.
//
// The kernel table is selected once per process from the CPU features
// reported by golang.org/x/sys/cpu. Selection happens on first use or via
// Init; Reset tears it down again. The environment variable VECINDEX_SIMD
// (generic, neon, avx2, avx512) forces an ISA when the CPU supports it.
//
// Accelerated float32 dot products use gonum's blas32 assembly; bit
// kernels count 64-bit words with the hardware popcount when present.
package simd
