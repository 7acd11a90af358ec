// Package confecalc provides a CUDA-style execution runtime on the CPU
// for the conformation energy pipeline: device properties, kernel
// launches over grids of thread blocks, cooperative blocks with shared
// memory and barriers, occupancy-driven launch configuration and the
// small layout helpers the assignment engine depends on.
//
// Example usage:
//
//	ctx := confecalc.NewContext(confecalc.GetDevice())
//	defer ctx.Destroy()
//
//	threads, _ := ctx.OptimizeThreads(kernel, staticBytes, perThreadBytes)
//	err := ctx.LaunchCooperative(kernel,
//		confecalc.Dim3{X: numConfs, Y: 1, Z: 1},
//		confecalc.Dim3{X: threads, Y: 1, Z: 1},
//		sharedBytes)
package confecalc

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// Device represents a compute device. Here this is the CPU with its
// cores and available memory, described with the same limits a GPU
// reports so launch configuration code reads the same on both.
type Device struct {
	ID         int    // Unique device identifier
	Name       string // Human-readable device name
	TotalMem   uint64 // Total available memory in bytes
	NumCores   int    // Number of CPU cores
	MaxThreads int    // Maximum concurrent threads

	MultiProcessorCount         int   // One per core
	WarpSize                    int   // Scheduling granularity of threads
	MaxThreadsPerBlock          int   // Largest launchable block
	MaxThreadsPerMultiProcessor int   // Resident thread limit per multiprocessor
	MaxBlocksPerMultiProcessor  int   // Resident block limit per multiprocessor
	SharedMemPerBlock           int64 // Shared memory one block may use
	SharedMemPerMultiProcessor  int64 // Shared memory all resident blocks may use
	RegsPerMultiProcessor       int   // Register file size per multiprocessor
	WideLoadBytes               int   // Widest single vector load

	Features CPUFeatures
}

// Context represents an execution context.
// It manages device resources, memory allocation, and stream execution.
// A Context must be created before any launches and should be
// destroyed when no longer needed.
type Context struct {
	device        *Device
	mu            sync.Mutex
	streams       map[int]*Stream
	streamID      int32
	memory        *MemoryPool
	defaultStream *Stream
	logger        *Logger

	threadsMu    sync.Mutex
	threadsCache map[threadsKey]int
}

// Stream represents an ordered sequence of operations that execute
// asynchronously. Operations within a stream execute in order, but
// operations in different streams may execute concurrently.
type Stream struct {
	id    int
	tasks chan func()
	done  chan struct{}
	wg    sync.WaitGroup
}

// Dim3 represents 3D dimensions for grid and block configurations.
// This matches CUDA's dim3 structure for kernel launch parameters.
type Dim3 struct {
	X, Y, Z int
}

// ThreadID identifies a thread's position within the execution hierarchy.
// It provides the same indexing semantics as CUDA's built-in variables:
// blockIdx, threadIdx, blockDim, and gridDim.
type ThreadID struct {
	BlockIdx  Dim3 // Block index within the grid
	ThreadIdx Dim3 // Thread index within the block
	BlockDim  Dim3 // Dimensions of the block
	GridDim   Dim3 // Dimensions of the grid
}

// Kernel represents a compute kernel that can be executed in parallel.
// Implementations should be thread-safe as Execute will be called
// concurrently from multiple threads.
type Kernel interface {
	Execute(tid ThreadID, args ...interface{})
}

// KernelFunc is a function that can be launched as a kernel.
// It receives thread identification and variadic arguments.
type KernelFunc func(tid ThreadID, args ...interface{})

// Global runtime state
var (
	defaultDevice  *Device
	defaultContext *Context
	initOnce       sync.Once
)

// Initialize the runtime
func init() {
	initOnce.Do(func() {
		defaultDevice = newCPUDevice()
		defaultContext = NewContext(defaultDevice)
	})
}

func newCPUDevice() *Device {
	numCPU := runtime.NumCPU()
	return &Device{
		ID:         0,
		Name:       "CPU",
		TotalMem:   getSystemMemory(),
		NumCores:   numCPU,
		MaxThreads: numCPU * 2, // Hyperthreading

		MultiProcessorCount:         numCPU,
		WarpSize:                    WarpSize,
		MaxThreadsPerBlock:          MaxThreadsPerBlock,
		MaxThreadsPerMultiProcessor: MaxThreadsPerMultiProcessor,
		MaxBlocksPerMultiProcessor:  MaxBlocksPerMultiProcessor,
		SharedMemPerBlock:           SharedMemPerBlock,
		SharedMemPerMultiProcessor:  SharedMemPerMultiProcessor,
		RegsPerMultiProcessor:       RegsPerMultiProcessor,
		WideLoadBytes:               cpuFeatures.WideLoadBytes(),
		Features:                    cpuFeatures,
	}
}

// NewContext creates an execution context on dev with its own memory
// pool, default stream and a no-op logger.
func NewContext(dev *Device) *Context {
	ctx := &Context{
		device:       dev,
		streams:      make(map[int]*Stream),
		memory:       NewMemoryPool(),
		logger:       NoopLogger(),
		threadsCache: make(map[threadsKey]int),
	}
	ctx.defaultStream = ctx.CreateStream()
	return ctx
}

// Malloc allocates device memory of the specified size in bytes.
// The memory is aligned to MemoryAlignment.
//
// Example:
//
//	d_atoms, err := confecalc.Malloc(numAtoms * real3.StorageSize[float32]())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer confecalc.Free(d_atoms)
func Malloc(size int) (DevicePtr, error) {
	return defaultContext.Malloc(size)
}

// Free releases device memory allocated by Malloc.
func Free(ptr DevicePtr) error {
	return defaultContext.Free(ptr)
}

// Memcpy copies memory between host and device.
// In the unified memory model, this is a simple copy.
func Memcpy(dst, src interface{}, size int, kind MemcpyKind) error {
	return defaultContext.Memcpy(dst, src, size, kind)
}

// Launch executes a kernel on the default stream of the default
// context. Wrap plain functions in KernelFunc.
func Launch(kernel Kernel, grid, block Dim3, args ...interface{}) error {
	return defaultContext.Launch(kernel, grid, block, args...)
}

// LaunchCooperative runs a cooperative kernel on the default context.
func LaunchCooperative(kernel BlockKernelFunc, grid, block Dim3, sharedBytes int) error {
	return defaultContext.LaunchCooperative(kernel, grid, block, sharedBytes)
}

// Synchronize waits for all operations on all streams to complete.
func Synchronize() error {
	return defaultContext.Synchronize()
}

// GetDevice returns the current device information.
// This always returns the CPU device.
func GetDevice() *Device {
	return defaultDevice
}

// SetDevice sets the active device (no-op for CPU)
func SetDevice(id int) error {
	if id != 0 {
		return ErrInvalidDevice
	}
	return nil
}

// GetDeviceCount returns the number of available devices.
func GetDeviceCount() int {
	return 1 // Only CPU
}

// GetDeviceProperties returns device properties
func GetDeviceProperties(id int) (*Device, error) {
	if id != 0 {
		return nil, newError(ErrTypeDevice, "GetDeviceProperties", fmt.Sprintf("invalid device ID: %d", id), nil)
	}
	return defaultDevice, nil
}

// Context methods

// Device returns the device the context runs on.
func (ctx *Context) Device() *Device {
	return ctx.device
}

// SetLogger replaces the context logger. A nil logger disables logging.
func (ctx *Context) SetLogger(l *Logger) {
	if l == nil {
		l = NoopLogger()
	}
	ctx.logger = l
}

// Logger returns the context logger.
func (ctx *Context) Logger() *Logger {
	return ctx.logger
}

// CreateStream creates a new execution stream
func (ctx *Context) CreateStream() *Stream {
	id := int(atomic.AddInt32(&ctx.streamID, 1))
	stream := &Stream{
		id:    id,
		tasks: make(chan func(), 1000),
		done:  make(chan struct{}),
	}

	// Start worker goroutine for stream
	go stream.worker()

	ctx.mu.Lock()
	ctx.streams[id] = stream
	ctx.mu.Unlock()
	return stream
}

// Launch executes a kernel on the default stream
func (ctx *Context) Launch(kernel Kernel, grid, block Dim3, args ...interface{}) error {
	return ctx.LaunchStream(kernel, grid, block, ctx.defaultStream, args...)
}

// LaunchStream executes a kernel on a specific stream
func (ctx *Context) LaunchStream(kernel Kernel, grid, block Dim3, stream *Stream, args ...interface{}) error {
	return ctx.launchInternal(kernel.Execute, grid, block, stream, args...)
}

// Synchronize waits for all streams to complete
func (ctx *Context) Synchronize() error {
	ctx.mu.Lock()
	streams := make([]*Stream, 0, len(ctx.streams))
	for _, stream := range ctx.streams {
		streams = append(streams, stream)
	}
	ctx.mu.Unlock()

	for _, stream := range streams {
		stream.Synchronize()
	}
	return nil
}

// Destroy waits for outstanding work and stops all stream workers.
// The context must not be used afterwards.
func (ctx *Context) Destroy() {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	for id, stream := range ctx.streams {
		stream.Synchronize()
		close(stream.tasks)
		<-stream.done
		delete(ctx.streams, id)
	}
}

// Stream methods

// worker processes tasks for a stream
func (s *Stream) worker() {
	for task := range s.tasks {
		task()
		s.wg.Done()
	}
	close(s.done)
}

// Synchronize waits for all tasks in the stream to complete
func (s *Stream) Synchronize() {
	s.wg.Wait()
}

// Submit adds a task to the stream
func (s *Stream) Submit(task func()) {
	s.wg.Add(1)
	s.tasks <- task
}

// Helper functions

// Global returns the global thread index
func (tid ThreadID) Global() int {
	return tid.BlockIdx.X*tid.BlockDim.X + tid.ThreadIdx.X
}

// LinearThread returns the thread's rank within its block
func (tid ThreadID) LinearThread() int {
	return (tid.ThreadIdx.Z*tid.BlockDim.Y+tid.ThreadIdx.Y)*tid.BlockDim.X + tid.ThreadIdx.X
}

// LinearBlock returns the block's rank within the grid
func (tid ThreadID) LinearBlock() int {
	return (tid.BlockIdx.Z*tid.GridDim.Y+tid.BlockIdx.Y)*tid.GridDim.X + tid.BlockIdx.X
}

// Size returns the total number of elements
func (d Dim3) Size() int {
	return d.X * d.Y * d.Z
}

// Implement KernelFunc as Kernel
func (fn KernelFunc) Execute(tid ThreadID, args ...interface{}) {
	fn(tid, args...)
}
