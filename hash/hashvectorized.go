package hash

import "github.com/klauspost/cpuid/v2"

// HashVectorized computes many hashes sharing one max.
var HashVectorized func(out []uint32, n []uint32, s []uint32, max uint32) = hashNotVectorized

// LogicalCores reports the number of logical cores, or 1 when detection fails.
func LogicalCores() int {
	if cpuid.CPU.LogicalCores > 0 {
		return cpuid.CPU.LogicalCores
	}
	return 1
}

func hashNotVectorized(out []uint32, n []uint32, s []uint32, max uint32) {
	for i := range out {
		out[i] = Hash(n[i], s[i], max)
	}
}
