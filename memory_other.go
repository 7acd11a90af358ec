//go:build !linux

package confecalc

// getSystemMemory returns total system memory in bytes
func getSystemMemory() uint64 {
	return defaultSystemMemory
}
