package chunk

import (
	"sync/atomic"

	"github.com/geospine/entwine/point"
)

// slot is one CAS-guarded position in a chunk's slot array. It transitions directly
// from empty (nil) to populated: because the row bytes being published are fully
// formed before the CAS attempt, there is no observable "reserved but partially
// written" state to model, and no global chunk lock is needed on the hot path.
type slot struct {
	row atomic.Pointer[point.Row]
}

// tryInsert attempts to publish row into an empty slot. On success it returns
// (nil, true). On conflict it returns the incumbent row and false.
func (s *slot) tryInsert(row point.Row) (point.Row, bool) {
	candidate := row
	if s.row.CompareAndSwap(nil, &candidate) {
		return nil, true
	}
	existing := s.row.Load()
	return *existing, false
}

// replace unconditionally overwrites an occupied slot. Only safe when nothing else
// can be racing the write, e.g. decoding a chunk from storage before it is published
// to the registry; concurrent tie-break displacement must go through casReplace.
func (s *slot) replace(row point.Row) {
	candidate := row
	s.row.Store(&candidate)
}

// loadOccupant returns the current occupant along with the exact pointer identity
// backing it, so a caller can later CompareAndSwap against precisely the value it
// read rather than blindly overwriting whatever is there by the time it decides.
func (s *slot) loadOccupant() (ptr *point.Row, row point.Row, ok bool) {
	p := s.row.Load()
	if p == nil {
		return nil, nil, false
	}
	return p, *p, true
}

// casReplace overwrites an occupied slot with row, but only if the slot still holds
// exactly the pointer old — if another goroutine has already displaced old since the
// caller read it, this fails and the caller must re-read and re-decide.
func (s *slot) casReplace(old *point.Row, row point.Row) bool {
	candidate := row
	return s.row.CompareAndSwap(old, &candidate)
}

// load returns the current occupant, if any.
func (s *slot) load() (point.Row, bool) {
	p := s.row.Load()
	if p == nil {
		return nil, false
	}
	return *p, true
}
