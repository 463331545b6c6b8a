package scheduler

// discardPile is a bounded FIFO of recently played local song paths with an
// auxiliary set for O(1) membership. Not safe for concurrent use; the
// scheduler's lock guards it.
type discardPile struct {
	order  []string
	member map[string]struct{}
}

func newDiscardPile() *discardPile {
	return &discardPile{member: make(map[string]struct{})}
}

func (d *discardPile) Len() int {
	return len(d.order)
}

func (d *discardPile) Contains(path string) bool {
	_, ok := d.member[path]
	return ok
}

// Push appends a path unless it is already present.
func (d *discardPile) Push(path string) {
	if d.Contains(path) {
		return
	}
	d.member[path] = struct{}{}
	d.order = append(d.order, path)
}

// TrimTo evicts from the front until the pile holds at most max entries.
func (d *discardPile) TrimTo(max int) {
	if max < 0 {
		max = 0
	}
	for len(d.order) > max {
		front := d.order[0]
		d.order = d.order[1:]
		delete(d.member, front)
	}
}

// Retain drops entries whose path is no longer in the library, preserving
// FIFO order of the survivors.
func (d *discardPile) Retain(library map[string]struct{}) {
	kept := d.order[:0]
	for _, path := range d.order {
		if _, ok := library[path]; ok {
			kept = append(kept, path)
		} else {
			delete(d.member, path)
		}
	}
	d.order = kept
}

func (d *discardPile) Clear() {
	d.order = nil
	d.member = make(map[string]struct{})
}

// Snapshot returns the paths in FIFO order.
func (d *discardPile) Snapshot() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}
