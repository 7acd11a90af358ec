package confecalc

import (
	"testing"
)

// MallocOrFail allocates device memory and fails the test if unsuccessful
func MallocOrFail(t testing.TB, ctx *Context, size int) DevicePtr {
	t.Helper()
	ptr, err := ctx.Malloc(size)
	if err != nil {
		t.Fatalf("Failed to allocate %d bytes: %v", size, err)
	}
	t.Cleanup(func() { ctx.Free(ptr) })
	return ptr
}

// LaunchCooperativeOrFail launches a cooperative kernel on a one
// dimensional grid and fails the test if unsuccessful
func LaunchCooperativeOrFail(t testing.TB, ctx *Context, kernel BlockKernelFunc, blocks, threads, sharedBytes int) {
	t.Helper()
	err := ctx.LaunchCooperative(kernel, Dim3{X: blocks, Y: 1, Z: 1}, Dim3{X: threads, Y: 1, Z: 1}, sharedBytes)
	if err != nil {
		t.Fatalf("Cooperative launch failed: %v", err)
	}
}

// newTestContext returns a context that is destroyed with the test
func newTestContext(t testing.TB) *Context {
	t.Helper()
	ctx := NewContext(GetDevice())
	t.Cleanup(ctx.Destroy)
	return ctx
}
