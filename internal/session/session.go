// Package session implements the preview session: a state machine over the
// page currently displayed for one document, and the Controller that drives
// it from user actions and fetch results.
package session

import (
	"errors"

	"github.com/dharsanguruparan/ShelfView/internal/handle"
	"github.com/dharsanguruparan/ShelfView/internal/model"
)

// Status is the rendered state of a session. Navigation in flight while Ready
// is reported through Snapshot.Pending rather than a separate status.
type Status int

const (
	Closed Status = iota
	Opening
	Ready
	Failed
)

func (s Status) String() string {
	switch s {
	case Closed:
		return "closed"
	case Opening:
		return "opening"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Snapshot is a read-only copy of the session state for rendering.
type Snapshot struct {
	Status          Status
	Pending         bool
	Document        model.Book
	Target          model.PreviewTarget
	PendingTarget   model.PreviewTarget
	TotalPages      int
	TotalPagesKnown bool
	Handle          *handle.Handle
	LastError       error
}

// request tags an outstanding page fetch with the session generation and a
// sequence number. Only the most recently issued request of the current
// generation may be applied.
type request struct {
	generation uint64
	seq        uint64
	target     model.PreviewTarget
}

// Session holds the state of one preview. It performs no I/O besides
// materializing and releasing handles through its slot, and is not safe for
// concurrent use.
type Session struct {
	status     Status
	doc        model.Book
	target     model.PreviewTarget
	pending    *request
	retry      *model.PreviewTarget
	totalPages int
	totalKnown bool
	countBusy  bool
	slot       *handle.Slot
	lastError  error
	generation uint64
	seq        uint64
}

func newSession(slot *handle.Slot) *Session {
	return &Session{slot: slot}
}

func (s *Session) issue(target model.PreviewTarget) *request {
	s.seq++
	r := &request{generation: s.generation, seq: s.seq, target: target}
	s.pending = r
	return r
}

// open discards any previous state and starts loading the first page of doc.
// The returned error comes from releasing the previous handle; the session is
// opened regardless.
func (s *Session) open(doc model.Book) (*request, error) {
	err := s.close()
	s.status = Opening
	s.doc = doc
	s.target = model.FirstPage(doc.ID)
	if doc.PageCount > 0 {
		s.totalPages = doc.PageCount
		s.totalKnown = true
	}
	return s.issue(s.target), err
}

// base is the target new navigation starts from: the latest issued target if a
// request is outstanding, the displayed one otherwise.
func (s *Session) base() model.PreviewTarget {
	if s.pending != nil {
		return s.pending.target
	}
	return s.target
}

func (s *Session) inRange(page int) bool {
	if page < 0 {
		return false
	}
	return !s.totalKnown || page < s.totalPages
}

func (s *Session) navigate(direction int) (*request, bool) {
	if s.status != Ready || (direction != 1 && direction != -1) {
		return nil, false
	}
	base := s.base()
	page := base.Page + direction
	if !s.inRange(page) {
		return nil, false
	}
	return s.issue(base.WithPage(page)), true
}

func (s *Session) rescale() (*request, bool) {
	if s.status != Ready {
		return nil, false
	}
	base := s.base()
	next := base.Scale.Next()
	if !next.Valid() || next == base.Scale {
		return nil, false
	}
	return s.issue(base.WithScale(next)), true
}

func (s *Session) retryRequest() (*request, bool) {
	switch {
	case s.status == Failed:
		s.status = Opening
		s.lastError = nil
		return s.issue(s.target), true
	case s.status == Ready && s.pending == nil && s.retry != nil:
		target := *s.retry
		if !s.inRange(target.Page) {
			s.retry = nil
			return nil, false
		}
		return s.issue(target), true
	default:
		return nil, false
	}
}

func (s *Session) stale(r *request) bool {
	return r.generation != s.generation || s.pending == nil || s.pending.seq != r.seq
}

// applyPage promotes data to the live handle if r is still the outstanding
// request. Stale payloads are dropped without touching the slot.
func (s *Session) applyPage(r *request, data []byte, contentType string) (bool, error) {
	if s.stale(r) {
		return false, nil
	}
	h, err := s.slot.Replace(data, contentType)
	if h.ID == "" {
		// Nothing was materialized; report it like a failed fetch.
		return s.applyFailure(r, err), err
	}
	s.pending = nil
	s.retry = nil
	s.lastError = nil
	s.target = r.target
	s.status = Ready
	return true, err
}

// applyFailure records a failed fetch. A failure while opening fails the
// session; a failure while Ready keeps the displayed page.
func (s *Session) applyFailure(r *request, err error) bool {
	if s.stale(r) {
		return false
	}
	if err == nil {
		err = errors.New("preview failed")
	}
	s.pending = nil
	s.lastError = err
	if s.status == Opening {
		// Opening is only entered after close or a failed open, so the slot
		// is already empty.
		s.status = Failed
		s.retry = nil
		return true
	}
	target := r.target
	s.retry = &target
	return true
}

// applyPageCount records the document length. A pending request beyond the
// last page is replaced by one for the last page at the pending scale, which
// is returned for dispatch; it is simply dropped when that page is already
// displayed.
func (s *Session) applyPageCount(generation uint64, n int) (bool, *request) {
	if generation != s.generation {
		return false, nil
	}
	s.countBusy = false
	if s.totalKnown || n <= 0 {
		return false, nil
	}
	// A rendered page proves the document has at least that many pages.
	if s.status == Ready && s.target.Page >= n {
		n = s.target.Page + 1
	}
	s.totalPages = n
	s.totalKnown = true
	if s.pending == nil || s.inRange(s.pending.target.Page) {
		return true, nil
	}
	last := s.pending.target.WithPage(n - 1)
	if s.status == Ready && last == s.target {
		s.pending = nil
		return true, nil
	}
	return true, s.issue(last)
}

func (s *Session) pageCountFailed(generation uint64) {
	if generation == s.generation {
		s.countBusy = false
	}
}

// needsCount reports whether a page count request should be issued, and marks
// it as issued.
func (s *Session) needsCount() bool {
	if s.status == Closed || s.totalKnown || s.countBusy {
		return false
	}
	s.countBusy = true
	return true
}

func (s *Session) dismissError() bool {
	if s.status != Ready || s.lastError == nil {
		return false
	}
	s.lastError = nil
	s.retry = nil
	return true
}

// close releases the live handle unconditionally and discards all state.
// Bumping the generation turns every outstanding request stale.
func (s *Session) close() error {
	err := s.slot.Clear()
	gen := s.generation + 1
	seq := s.seq
	*s = Session{slot: s.slot, generation: gen, seq: seq}
	return err
}

func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		Status:          s.status,
		Pending:         s.pending != nil,
		Document:        s.doc,
		Target:          s.target,
		TotalPages:      s.totalPages,
		TotalPagesKnown: s.totalKnown,
		LastError:       s.lastError,
	}
	if s.pending != nil {
		snap.PendingTarget = s.pending.target
	}
	if h, ok := s.slot.Current(); ok {
		snap.Handle = &h
	}
	return snap
}
