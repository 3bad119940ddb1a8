package hidcore

import "go.uber.org/zap"

// defaultArenaSize matches ARENA_SIZE in original_source/src/arena_allocator.h.
const defaultArenaSize = 4 * 1024

// Arena is a fixed-capacity bump allocator. Report and Segment records
// are Go-native slices (see DESIGN.md for why the reference's
// pointer-linked arena nodes are re-architected as index-keyed
// slices), but every record creation still debits its struct-sized
// footprint from an Arena so the "no heap growth past a fixed budget"
// resource contract stays real and testable rather than becoming a
// comment nobody checks.
type Arena struct {
	logger *zap.Logger
	buf    []byte
	offset int
}

// NewArena builds an Arena with the given byte capacity. size <= 0
// falls back to defaultArenaSize.
func NewArena(size int, logger *zap.Logger) *Arena {
	if size <= 0 {
		size = defaultArenaSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Arena{
		logger: logger,
		buf:    make([]byte, size),
	}
}

// Alloc bump-allocates size bytes aligned up to align (default 4 when
// align <= 0), returning (nil, false) on exhaustion instead of
// panicking or growing: the Go-idiomatic rendering of the reference
// allocator returning a null pointer.
func (a *Arena) Alloc(size, align int) ([]byte, bool) {
	if align <= 0 {
		align = 4
	}
	aligned := (a.offset + align - 1) &^ (align - 1)
	if aligned+size > len(a.buf) {
		a.logger.Warn("arena exhausted",
			zap.Int("requested", size),
			zap.Int("capacity", len(a.buf)),
			zap.Int("used", a.offset))
		return nil, false
	}
	region := a.buf[aligned : aligned+size]
	a.offset = aligned + size
	return region, true
}

// Reset rewinds the bump offset to zero. Every region previously
// handed out by Alloc is invalidated; callers must not retain a
// region across Reset.
func (a *Arena) Reset() {
	a.offset = 0
}

// Used returns the number of bytes currently allocated.
func (a *Arena) Used() int {
	return a.offset
}

// Cap returns the arena's fixed byte capacity.
func (a *Arena) Cap() int {
	return len(a.buf)
}
