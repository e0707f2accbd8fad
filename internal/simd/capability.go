package simd

import (
	"os"
	"runtime"
	"strings"
)

// ISA represents an instruction set the kernels can be selected for.
type ISA uint8

const (
	// Generic represents pure Go kernels.
	Generic ISA = iota
	// NEON represents ARM64 ASIMD.
	NEON
	// AVX2 represents x86-64 AVX2 with FMA.
	AVX2
	// AVX512 represents x86-64 AVX-512 (F+BW).
	AVX512
)

// EnvOverride names the environment variable that forces an ISA.
const EnvOverride = "VECINDEX_SIMD"

// String returns the string representation of an ISA.
func (i ISA) String() string {
	switch i {
	case Generic:
		return "generic"
	case NEON:
		return "neon"
	case AVX2:
		return "avx2"
	case AVX512:
		return "avx512"
	default:
		return "unknown"
	}
}

// ParseISA parses a string into an ISA value.
func ParseISA(s string) (ISA, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "generic":
		return Generic, true
	case "neon":
		return NEON, true
	case "avx2":
		return AVX2, true
	case "avx512":
		return AVX512, true
	default:
		return Generic, false
	}
}

// CPU feature flags, set by the platform-specific init.
var (
	hasASIMD    bool
	hasAVX2     bool
	hasAVX512F  bool
	hasAVX512BW bool
	hasPOPCNT   bool
)

// Available reports whether isa is supported on this CPU.
func Available(isa ISA) bool {
	switch isa {
	case Generic:
		return true
	case NEON:
		return hasASIMD
	case AVX2:
		return hasAVX2
	case AVX512:
		return hasAVX512F && hasAVX512BW
	default:
		return false
	}
}

// detectISA returns the override from the environment when it is valid and
// available, else the best ISA of the current platform.
func detectISA() (ISA, bool) {
	if override := os.Getenv(EnvOverride); override != "" {
		if isa, ok := ParseISA(override); ok && Available(isa) {
			return isa, true
		}
	}

	switch runtime.GOARCH {
	case "arm64":
		if hasASIMD {
			return NEON, false
		}
	case "amd64":
		if hasAVX512F && hasAVX512BW {
			return AVX512, false
		}
		if hasAVX2 {
			return AVX2, false
		}
	}
	return Generic, false
}

// HasPOPCNT reports whether the CPU counts bits in hardware.
func HasPOPCNT() bool {
	return hasPOPCNT
}
