// Package confecalc configuration constants
package confecalc

// Thread and block dimensions
const (
	// Maximum threads per block (CUDA compatibility)
	MaxThreadsPerBlock = 1024

	// Threads are scheduled in groups of this size; block sizes are rounded up to it
	WarpSize = 32

	// Maximum resident threads per multiprocessor
	MaxThreadsPerMultiProcessor = 2048

	// Maximum resident blocks per multiprocessor
	MaxBlocksPerMultiProcessor = 32
)

// Shared memory and register budgets. On the CPU, shared memory is
// sized to stay inside a core's L1/L2.
const (
	// Shared memory available to one block (in bytes)
	SharedMemPerBlock = 48 * 1024 // 48KB

	// Shared memory available to one multiprocessor (in bytes)
	SharedMemPerMultiProcessor = 96 * 1024 // 96KB

	// Registers available to one multiprocessor
	RegsPerMultiProcessor = 64 * 1024

	// Registers per thread assumed for kernels that do not report attributes
	DefaultKernelRegs = 32

	// Register allocation granularity per warp
	RegAllocUnit = 256
)

// Memory layout parameters
const (
	// Alignment of typed regions carved from block shared memory
	SharedAlignment = 16

	// Memory alignment for allocations
	MemoryAlignment = 64

	// Minimum allocation size to prevent fragmentation
	MinAllocationSize = 64
)

// Fallback when the OS does not report total memory
const defaultSystemMemory = 16 * 1024 * 1024 * 1024 // 16GB
