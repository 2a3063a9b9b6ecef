package audio

const (
	// fingerprintLen is how much of the encoded payload identifies a
	// chunk. Collisions are acceptable at this data rate.
	fingerprintLen = 100

	// dedupLimit bounds the remembered set; oldest entries are evicted
	// first (insertion order, not LRU).
	dedupLimit = 50
)

// dedup discards redelivered chunks. The transport may resend a chunk
// on retry; a duplicate must never be scheduled twice.
type dedup struct {
	seen  map[string]struct{}
	order []string
}

func newDedup() *dedup {
	return &dedup{seen: make(map[string]struct{})}
}

func fingerprint(payload string) string {
	if len(payload) > fingerprintLen {
		return payload[:fingerprintLen]
	}
	return payload
}

func (d *dedup) isDuplicate(payload string) bool {
	_, ok := d.seen[fingerprint(payload)]
	return ok
}

func (d *dedup) remember(payload string) {
	fp := fingerprint(payload)
	if _, ok := d.seen[fp]; ok {
		return
	}
	d.seen[fp] = struct{}{}
	d.order = append(d.order, fp)
	if len(d.order) > dedupLimit {
		oldest := d.order[0]
		d.order = d.order[1:]
		delete(d.seen, oldest)
	}
}

func (d *dedup) reset() {
	d.seen = make(map[string]struct{})
	d.order = d.order[:0]
}
