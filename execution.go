package confecalc

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// launchInternal implements the core kernel execution logic
func (ctx *Context) launchInternal(
	kernelFunc func(ThreadID, ...interface{}),
	grid, block Dim3,
	stream *Stream,
	args ...interface{},
) error {
	grid, block = grid.normalized(), block.normalized()
	if block.Size() > ctx.device.MaxThreadsPerBlock {
		return NewInvalidArgError("Launch", fmt.Sprintf("block of %d threads exceeds limit %d", block.Size(), ctx.device.MaxThreadsPerBlock))
	}

	// Calculate total work items
	gridSize := grid.Size()
	blockSize := block.Size()

	// Handle edge case where grid size is zero
	if gridSize == 0 {
		// Submit an empty task to maintain stream ordering
		stream.Submit(func() {})
		return nil
	}

	// Determine parallelism strategy
	numWorkers := ctx.device.NumCores
	if gridSize < numWorkers {
		numWorkers = gridSize
	}

	// Cache-aware scheduling: each worker processes multiple blocks
	// to maximize cache reuse
	blocksPerWorker := (gridSize + numWorkers - 1) / numWorkers

	stream.Submit(func() {
		var wg sync.WaitGroup
		wg.Add(numWorkers)

		for workerID := 0; workerID < numWorkers; workerID++ {
			startBlock := workerID * blocksPerWorker
			endBlock := startBlock + blocksPerWorker
			if endBlock > gridSize {
				endBlock = gridSize
			}

			go func() {
				defer wg.Done()

				for blockID := startBlock; blockID < endBlock; blockID++ {
					blockIdx := linearTo3D(blockID, grid)

					// Threads of a non-cooperative block never synchronize,
					// so they run one after another on this worker
					for threadID := 0; threadID < blockSize; threadID++ {
						tid := ThreadID{
							BlockIdx:  blockIdx,
							ThreadIdx: linearTo3D(threadID, block),
							BlockDim:  block,
							GridDim:   grid,
						}
						kernelFunc(tid, args...)
					}
				}
			}()
		}

		wg.Wait()
	})

	return nil
}

// BlockKernelFunc is a kernel whose threads cooperate within a block.
// Each thread receives its own view of the block, through which it can
// reach the block's shared memory and barrier.
type BlockKernelFunc func(tid ThreadID, blk *Block)

// LaunchCooperative runs kernel over grid with every thread of a block
// on its own goroutine, so threads may wait on each other with
// Block.Sync. Each block gets sharedBytes of zeroed shared memory.
// Blocks run in parallel, at most one per core. The call returns once
// every block has finished; a panicking thread fails its block and the
// launch returns an execution error.
func (ctx *Context) LaunchCooperative(kernel BlockKernelFunc, grid, block Dim3, sharedBytes int) error {
	grid, block = grid.normalized(), block.normalized()
	name := KernelName(kernel)

	err := ctx.validateCooperative(block, sharedBytes)
	if err == nil {
		var g errgroup.Group
		g.SetLimit(ctx.device.NumCores)
		for blockID := 0; blockID < grid.Size(); blockID++ {
			g.Go(func() error {
				return runBlock(kernel, linearTo3D(blockID, grid), grid, block, sharedBytes)
			})
		}
		err = g.Wait()
	}

	ctx.logger.LogLaunch(context.Background(), name, grid, block, sharedBytes, err)
	return err
}

func (ctx *Context) validateCooperative(block Dim3, sharedBytes int) error {
	if block.Size() <= 0 {
		return NewInvalidArgError("LaunchCooperative", "block must contain at least one thread")
	}
	if block.Size() > ctx.device.MaxThreadsPerBlock {
		return NewInvalidArgError("LaunchCooperative", fmt.Sprintf("block of %d threads exceeds limit %d", block.Size(), ctx.device.MaxThreadsPerBlock))
	}
	if sharedBytes < 0 || int64(sharedBytes) > ctx.device.SharedMemPerBlock {
		return NewInvalidArgError("LaunchCooperative", fmt.Sprintf("shared memory of %d bytes exceeds limit %d", sharedBytes, ctx.device.SharedMemPerBlock))
	}
	return nil
}

// runBlock executes one cooperative block to completion.
func runBlock(kernel BlockKernelFunc, blockIdx, grid, block Dim3, sharedBytes int) error {
	st := newBlockState(block.Size(), sharedBytes)

	var wg sync.WaitGroup
	wg.Add(st.size)
	for rank := 0; rank < st.size; rank++ {
		tid := ThreadID{
			BlockIdx:  blockIdx,
			ThreadIdx: linearTo3D(rank, block),
			BlockDim:  block,
			GridDim:   grid,
		}
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					st.fail(rank, r)
				}
				st.leave(rank)
			}()
			kernel(tid, &Block{tid: tid, rank: rank, state: st})
		}()
	}
	wg.Wait()

	return st.err
}

// KernelName returns a stable name for a kernel: the name reported by
// an AttributedKernel, the function name for funcs, or the type name.
func KernelName(kernel interface{}) string {
	if k, ok := kernel.(AttributedKernel); ok {
		if name := k.Attributes().Name; name != "" {
			return name
		}
	}
	v := reflect.ValueOf(kernel)
	if v.Kind() == reflect.Func && !v.IsNil() {
		if fn := runtime.FuncForPC(v.Pointer()); fn != nil {
			return fn.Name()
		}
	}
	return fmt.Sprintf("%T", kernel)
}

// linearTo3D converts a linear index to 3D coordinates
func linearTo3D(linear int, dim Dim3) Dim3 {
	z := linear / (dim.X * dim.Y)
	y := (linear % (dim.X * dim.Y)) / dim.X
	x := linear % dim.X
	return Dim3{X: x, Y: y, Z: z}
}

// normalized treats unset Y and Z extents as 1
func (d Dim3) normalized() Dim3 {
	if d.Y == 0 {
		d.Y = 1
	}
	if d.Z == 0 {
		d.Z = 1
	}
	return d
}

// errBarrierBroken is raised in threads waiting on a barrier whose block
// has already failed.
var errBarrierBroken = errors.New("barrier broken by failed thread")
