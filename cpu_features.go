package confecalc

import (
	"runtime"
	"strings"

	"golang.org/x/sys/cpu"
)

// CPUFeatures tracks available CPU instruction set extensions
type CPUFeatures struct {
	HasSSE4     bool
	HasAVX      bool
	HasAVX2     bool
	HasAVX512F  bool // Foundation
	HasFMA      bool
	HasNEON     bool
	HasNEONFP16 bool
}

// Global CPU feature detection. Package variables are initialized before
// any init function runs, so the default device sees the result.
var cpuFeatures = detectCPUFeatures()

// detectCPUFeatures reads the instruction set extensions of the host
func detectCPUFeatures() CPUFeatures {
	return CPUFeatures{
		HasSSE4:     cpu.X86.HasSSE41 || cpu.X86.HasSSE42,
		HasAVX:      cpu.X86.HasAVX,
		HasAVX2:     cpu.X86.HasAVX2,
		HasAVX512F:  cpu.X86.HasAVX512F,
		HasFMA:      cpu.X86.HasFMA,
		HasNEON:     cpu.ARM64.HasASIMD,
		HasNEONFP16: cpu.ARM64.HasFPHP && cpu.ARM64.HasASIMDHP,
	}
}

// GetCPUFeatures returns the detected CPU features
func GetCPUFeatures() CPUFeatures {
	return cpuFeatures
}

// WideLoadBytes returns the widest single vector load the CPU offers.
// Coordinate storage relies on at least 16 so a padded 32-bit atom moves
// in one instruction.
func (f CPUFeatures) WideLoadBytes() int {
	switch {
	case f.HasAVX512F:
		return 64
	case f.HasAVX2, f.HasAVX:
		return 32
	case f.HasSSE4, f.HasNEON:
		return 16
	case runtime.GOARCH == "amd64":
		// SSE2 is part of the amd64 baseline
		return 16
	default:
		return 8
	}
}

// String describes the available features
func (f CPUFeatures) String() string {
	features := []string{}

	if f.HasSSE4 {
		features = append(features, "SSE4")
	}
	if f.HasAVX {
		features = append(features, "AVX")
	}
	if f.HasAVX2 {
		features = append(features, "AVX2")
	}
	if f.HasFMA {
		features = append(features, "FMA")
	}
	if f.HasAVX512F {
		features = append(features, "AVX512F")
	}
	if f.HasNEON {
		features = append(features, "NEON")
	}
	if f.HasNEONFP16 {
		features = append(features, "NEON-FP16")
	}

	if len(features) == 0 {
		return "No SIMD extensions detected"
	}
	return "CPU features: " + strings.Join(features, ", ")
}
