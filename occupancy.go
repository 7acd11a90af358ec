package confecalc

import (
	"context"
	"fmt"
)

// Attributes describes the resources one thread block of a kernel needs
// beyond what the launch itself requests.
type Attributes struct {
	Name             string
	NumRegs          int   // Registers per thread
	SharedSizeStatic int64 // Shared memory the kernel always uses, in bytes
}

// AttributedKernel is implemented by kernels that report their resource
// footprint. Kernels that do not are assumed to use DefaultKernelRegs
// registers and no static shared memory.
type AttributedKernel interface {
	Attributes() Attributes
}

// KernelAttributes returns the attributes of kernel, filling defaults.
func KernelAttributes(kernel interface{}) Attributes {
	var attrs Attributes
	if k, ok := kernel.(AttributedKernel); ok {
		attrs = k.Attributes()
	}
	if attrs.Name == "" {
		attrs.Name = KernelName(kernel)
	}
	if attrs.NumRegs <= 0 {
		attrs.NumRegs = DefaultKernelRegs
	}
	return attrs
}

// MaxActiveBlocksPerMultiprocessor estimates how many blocks of the given
// size can be resident on one multiprocessor at once. It is the smallest
// of the thread, block, register and shared memory limits, and 0 when a
// single block does not fit.
func MaxActiveBlocksPerMultiprocessor(dev *Device, attrs Attributes, threads int, dynamicShared int64) int {
	if threads <= 0 || threads > dev.MaxThreadsPerBlock {
		return 0
	}

	warps := (threads + dev.WarpSize - 1) / dev.WarpSize
	blocks := dev.MaxBlocksPerMultiProcessor

	// thread limit
	blocks = min(blocks, dev.MaxThreadsPerMultiProcessor/(warps*dev.WarpSize))

	// register limit
	regs := attrs.NumRegs
	if regs <= 0 {
		regs = DefaultKernelRegs
	}
	regsPerWarp := PadToAlignment(int64(regs*dev.WarpSize), RegAllocUnit)
	blocks = min(blocks, int(int64(dev.RegsPerMultiProcessor)/(regsPerWarp*int64(warps))))

	// shared memory limit
	shared := attrs.SharedSizeStatic + dynamicShared
	if shared > dev.SharedMemPerBlock {
		return 0
	}
	if shared > 0 {
		blocks = min(blocks, int(dev.SharedMemPerMultiProcessor/shared))
	}

	return max(blocks, 0)
}

type threadsKey struct {
	name            string
	sharedStatic    int64
	sharedPerThread int64
}

// OptimizeThreads picks the greatest number of threads per block that
// keeps occupancy above 0 for kernel, when each block needs
// sharedStatic + sharedPerThread*threads bytes of dynamic shared memory.
// Candidates are multiples of the warp size. The decision depends only on
// the kernel's footprint, so it is computed once per kernel and cached.
func (ctx *Context) OptimizeThreads(kernel interface{}, sharedStatic, sharedPerThread int64) (int, error) {
	attrs := KernelAttributes(kernel)
	key := threadsKey{attrs.Name, sharedStatic, sharedPerThread}

	ctx.threadsMu.Lock()
	threads, ok := ctx.threadsCache[key]
	ctx.threadsMu.Unlock()
	if ok {
		return threads, nil
	}

	dev := ctx.device
	for threads = dev.MaxThreadsPerBlock / dev.WarpSize * dev.WarpSize; threads >= dev.WarpSize; threads -= dev.WarpSize {
		shared := sharedStatic + sharedPerThread*int64(threads)
		blocks := MaxActiveBlocksPerMultiprocessor(dev, attrs, threads, shared)
		if blocks > 0 {
			ctx.threadsMu.Lock()
			ctx.threadsCache[key] = threads
			ctx.threadsMu.Unlock()
			ctx.logger.LogOccupancy(context.Background(), attrs.Name, threads, blocks, nil)
			return threads, nil
		}
	}

	err := NewInvalidArgError("OptimizeThreads",
		fmt.Sprintf("kernel %s does not fit one warp: %d static + %d per thread shared bytes", attrs.Name, sharedStatic, sharedPerThread))
	ctx.logger.LogOccupancy(context.Background(), attrs.Name, 0, 0, err)
	return 0, err
}

// OptimizeThreads picks a block size on the default context.
func OptimizeThreads(kernel interface{}, sharedStatic, sharedPerThread int64) (int, error) {
	return defaultContext.OptimizeThreads(kernel, sharedStatic, sharedPerThread)
}
