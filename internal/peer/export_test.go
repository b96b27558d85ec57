package peer

// HeldCandidates is the number of local candidates waiting for our description.
func (l *Link) HeldCandidates() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.outbound)
}
