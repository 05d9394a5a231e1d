package join

// Ledger is the grow-only set of pairs that have already produced an
// analytics record. Entries are never removed. Like the Store, it relies on
// the Joiner for serialization.
type Ledger struct {
	emitted map[PairKey]struct{}
}

func NewLedger() *Ledger {
	return &Ledger{emitted: make(map[PairKey]struct{})}
}

// Contains reports whether a record has already been emitted for the pair.
func (l *Ledger) Contains(key PairKey) bool {
	_, ok := l.emitted[key]
	return ok
}

// Mark records the pair as emitted. Marking an already-present key is a no-op.
func (l *Ledger) Mark(key PairKey) {
	l.emitted[key] = struct{}{}
}

// Size returns the number of emitted pairs.
func (l *Ledger) Size() int {
	return len(l.emitted)
}
