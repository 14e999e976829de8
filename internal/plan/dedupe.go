package plan

// Deduplicator interns structurally equal plans so that each distinct plan
// is held once. Lookups bucket by Hash and confirm with Equal.
//
// Not safe for concurrent use.
type Deduplicator struct {
	buckets map[uint64][]Plan
	size    int
}

// NewDeduplicator returns an empty Deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{buckets: make(map[uint64][]Plan)}
}

// Intern returns the previously interned plan equal to p, or stores and
// returns p itself. The bool reports whether p was already present.
func (d *Deduplicator) Intern(p Plan) (Plan, bool) {
	h := p.Hash()
	for _, existing := range d.buckets[h] {
		if existing.Equal(p) {
			return existing, true
		}
	}
	d.buckets[h] = append(d.buckets[h], p)
	d.size++
	return p, false
}

// Len is the number of distinct plans interned.
func (d *Deduplicator) Len() int { return d.size }
