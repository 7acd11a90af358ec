package confecalc

import (
	"fmt"
	"sync"
)

// ThreadGroup is a set of threads that can synchronize together, in the
// manner of CUDA cooperative groups. ThreadRank is the calling thread's
// rank within the group, in [0, Size()).
type ThreadGroup interface {
	ThreadRank() int
	Size() int
	Sync()
}

// Block is one thread's view of its cooperative thread block.
type Block struct {
	tid   ThreadID
	rank  int
	state *blockState
}

// ThreadRank returns the calling thread's rank within the block
func (b *Block) ThreadRank() int {
	return b.rank
}

// Size returns the number of threads in the block
func (b *Block) Size() int {
	return b.state.size
}

// Sync waits until every live thread of the block has called Sync.
// Writes made before Sync are visible to every thread after it.
func (b *Block) Sync() {
	b.state.barrier.wait()
}

// SyncThreads is an alias for Sync
func (b *Block) SyncThreads() {
	b.Sync()
}

// ThreadID returns the thread's launch coordinates
func (b *Block) ThreadID() ThreadID {
	return b.tid
}

// Shared returns a carver over the block's shared memory. Every call
// starts at offset zero, so threads that carve the same sequence of
// regions receive the same memory.
func (b *Block) Shared() *SharedMemory {
	return &SharedMemory{buf: b.state.shared}
}

// SharedBytes returns the size of the block's shared memory
func (b *Block) SharedBytes() int {
	return len(b.state.shared)
}

// TiledPartition splits parent into tiles of tileSize consecutive ranks
// and returns the calling thread's tile. tileSize must divide
// parent.Size().
func TiledPartition(parent ThreadGroup, tileSize int) ThreadGroup {
	if tileSize <= 0 || parent.Size()%tileSize != 0 {
		panic(NewInvalidArgError("TiledPartition", fmt.Sprintf("tile size %d does not divide group of %d", tileSize, parent.Size())))
	}
	t := &tile{
		size:  tileSize,
		rank:  parent.ThreadRank() % tileSize,
		index: parent.ThreadRank() / tileSize,
	}
	if blk, ok := parent.(*Block); ok {
		t.barrier = blk.state.tileBarrier(tileSize, t.index)
	} else if tileSize > 1 {
		panic(NewInvalidArgError("TiledPartition", "only blocks can be partitioned into multi-thread tiles"))
	}
	return t
}

type tile struct {
	size    int
	rank    int
	index   int
	barrier *barrier
}

func (t *tile) ThreadRank() int { return t.rank }
func (t *tile) Size() int       { return t.size }

func (t *tile) Sync() {
	if t.barrier != nil {
		t.barrier.wait()
	}
}

// TileRank returns the rank of child among the equally sized tiles of parent.
func TileRank(parent, child ThreadGroup) int {
	return parent.ThreadRank() / child.Size()
}

// NumTiles returns how many tiles the size of child fit in parent.
func NumTiles(parent, child ThreadGroup) int {
	return parent.Size() / child.Size()
}

// SingleThread is the trivial group of one thread. It lets cooperative
// code run on a plain goroutine.
type SingleThread struct{}

func (SingleThread) ThreadRank() int { return 0 }
func (SingleThread) Size() int       { return 1 }
func (SingleThread) Sync()           {}

// blockState is shared by every thread of one running block.
type blockState struct {
	size    int
	shared  []byte
	barrier *barrier

	mu    sync.Mutex
	alive []bool
	tiles map[int][]*barrier
	err   error
}

func newBlockState(size, sharedBytes int) *blockState {
	st := &blockState{
		size:    size,
		barrier: newBarrier(size),
		alive:   make([]bool, size),
		tiles:   make(map[int][]*barrier),
	}
	if sharedBytes > 0 {
		st.shared = AllocAligned(sharedBytes, SharedAlignment)
	}
	for i := range st.alive {
		st.alive[i] = true
	}
	return st
}

// tileBarrier returns the barrier shared by tile index of the given size,
// creating the family of tile barriers on first use.
func (st *blockState) tileBarrier(size, index int) *barrier {
	st.mu.Lock()
	defer st.mu.Unlock()

	family, ok := st.tiles[size]
	if !ok {
		family = make([]*barrier, st.size/size)
		for i := range family {
			parties := 0
			for r := i * size; r < (i+1)*size; r++ {
				if st.alive[r] {
					parties++
				}
			}
			family[i] = newBarrier(parties)
			if st.err != nil {
				family[i].breakBarrier()
			}
		}
		st.tiles[size] = family
	}
	return family[index]
}

// leave removes an exited thread from every barrier it belongs to, so
// threads that finish early never stall the rest of the block.
func (st *blockState) leave(rank int) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.alive[rank] = false
	st.barrier.leave()
	for size, family := range st.tiles {
		family[rank/size].leave()
	}
}

// fail records the first failure and wakes every waiting thread.
func (st *blockState) fail(rank int, r interface{}) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.err == nil {
		if err, ok := r.(error); ok {
			st.err = NewExecutionError("LaunchCooperative", fmt.Sprintf("thread %d panicked", rank), err)
		} else {
			st.err = NewExecutionError("LaunchCooperative", fmt.Sprintf("thread %d panicked: %v", rank, r), nil)
		}
	}
	st.barrier.breakBarrier()
	for _, family := range st.tiles {
		for _, b := range family {
			b.breakBarrier()
		}
	}
}

// barrier is a reusable generation barrier. The mutex hand-off orders
// every write made before wait against every read made after it.
type barrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	parties int
	waiting int
	gen     uint64
	broken  bool
}

func newBarrier(parties int) *barrier {
	b := &barrier{parties: parties}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *barrier) wait() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.broken {
		panic(errBarrierBroken)
	}
	gen := b.gen
	b.waiting++
	if b.waiting >= b.parties {
		b.advance()
		return
	}
	for gen == b.gen && !b.broken {
		b.cond.Wait()
	}
	if gen == b.gen {
		panic(errBarrierBroken)
	}
}

func (b *barrier) advance() {
	b.waiting = 0
	b.gen++
	b.cond.Broadcast()
}

func (b *barrier) leave() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.parties--
	if b.waiting > 0 && b.waiting >= b.parties {
		b.advance()
	}
}

func (b *barrier) breakBarrier() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.broken = true
	b.cond.Broadcast()
}
