package registry

import (
	"sync/atomic"

	"github.com/geospine/entwine/chunk"
)

// entry is the registry's bookkeeping record for one resident chunk: the chunk
// itself, a refcount of live acquirers, and whether it is pinned (base/flat chunks
// are pinned for the life of the build; spec.md §4.4).
type entry struct {
	chunk  *chunk.Chunk
	pinned bool
	refs   atomic.Int32
}
