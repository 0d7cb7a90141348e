package book

import "sort"

// SyncOutcome is the result of feeding a single delta into SyncState.
type SyncOutcome int

const (
	// NoUpdates means the delta was buffered (pre-sync) or discarded as
	// stale; nothing should be applied to the book.
	NoUpdates SyncOutcome = iota
	// Updates means a non-empty, strictly contiguous batch is ready to
	// apply to the book in order.
	Updates
	// Gap means a strict gap was found between the last applied update
	// and the next candidate; the caller must request a fresh snapshot
	// and reset SyncState.
	Gap
)

// SyncState implements the delta synchronization protocol: it buffers
// deltas that arrive before the seeding snapshot, and once seeded,
// dedupes, orders, and contiguity-checks subsequent deltas, detecting
// gaps that require resynchronization.
type SyncState struct {
	lastUpdateID uint64
	hasLast      bool
	buffer       []*DepthUpdate
}

// NewSyncState returns a fresh, unseeded SyncState.
func NewSyncState() *SyncState {
	return &SyncState{}
}

// SetLastUpdateID seeds (or reseeds) the state with a snapshot's
// lastUpdateId.
func (s *SyncState) SetLastUpdateID(id uint64) {
	s.lastUpdateID = id
	s.hasLast = true
}

// LastUpdateID returns the currently known last applied update ID and
// whether one has been set.
func (s *SyncState) LastUpdateID() (uint64, bool) {
	return s.lastUpdateID, s.hasLast
}

// ProcessDelta runs a single incoming delta through the synchronization
// state machine, returning the outcome and, for Updates, the ordered
// batch to apply.
func (s *SyncState) ProcessDelta(update *DepthUpdate) (SyncOutcome, []*DepthUpdate) {
	if !s.hasLast {
		s.buffer = append(s.buffer, update)
		return NoUpdates, nil
	}

	last := s.lastUpdateID

	// discard if fully old
	if update.FinalUpdateID <= last {
		return NoUpdates, nil
	}

	// collect buffered + current, oldest first
	candidates := s.drainBuffer()
	candidates = append(candidates, update)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].FirstUpdateID < candidates[j].FirstUpdateID
	})

	var toApply []*DepthUpdate
	expected := last + 1

	for _, u := range candidates {
		// skip stale chunks
		if u.FinalUpdateID < expected {
			continue
		}
		// require contiguity
		if u.FirstUpdateID > expected {
			return Gap, nil
		}
		toApply = append(toApply, u)
		expected = u.FinalUpdateID + 1
	}

	if len(toApply) > 0 {
		s.SetLastUpdateID(toApply[len(toApply)-1].FinalUpdateID)
		return Updates, toApply
	}
	return NoUpdates, nil
}

// drainBuffer empties and returns the pre-sync buffer.
func (s *SyncState) drainBuffer() []*DepthUpdate {
	buf := s.buffer
	s.buffer = nil
	return buf
}

// Reset discards all synchronization state, returning to the fresh,
// unseeded condition used when a gap forces resynchronization.
func (s *SyncState) Reset() {
	s.lastUpdateID = 0
	s.hasLast = false
	s.buffer = nil
}
