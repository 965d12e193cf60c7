package handle

// Slot owns at most one live handle. The attached handle is released exactly
// once, either when it is replaced or when the slot is cleared. Slot is not
// safe for concurrent use; its owner serializes access.
type Slot struct {
	reg     *Registry
	current *Handle
}

// Replace materializes data as a new handle, attaches it and then releases the
// previously attached handle. If materialization fails the slot is unchanged.
// A failure to remove the old spool file is reported but the new handle stays
// attached and the old one is considered released.
func (s *Slot) Replace(data []byte, contentType string) (Handle, error) {
	next, err := s.reg.acquire(data, contentType)
	if err != nil {
		return Handle{}, err
	}
	prev := s.current
	s.current = next
	if prev != nil {
		if err := s.reg.release(prev); err != nil {
			return *next, err
		}
	}
	return *next, nil
}

// Clear releases the attached handle, if any.
func (s *Slot) Clear() error {
	prev := s.current
	if prev == nil {
		return nil
	}
	s.current = nil
	return s.reg.release(prev)
}

// Current returns a copy of the attached handle.
func (s *Slot) Current() (Handle, bool) {
	if s.current == nil {
		return Handle{}, false
	}
	return *s.current, true
}
