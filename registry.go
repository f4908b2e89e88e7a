package hamgo

// registry tracks the live objects derived from an owner so the owner can
// close them before itself. It is guarded by the owner's lock.
type registry[T comparable] struct {
	items []T
}

func (r *registry[T]) add(v T) {
	r.items = append(r.items, v)
}

// remove drops v, swapping the last element into its slot.
func (r *registry[T]) remove(v T) bool {
	n := len(r.items)
	for i := 0; i < n; i++ {
		if r.items[i] == v {
			r.items[i] = r.items[n-1]
			var zero T
			r.items[n-1] = zero // Allow GC
			r.items = r.items[:n-1]
			return true
		}
	}
	return false
}

// drain empties the registry and returns what it held.
func (r *registry[T]) drain() []T {
	items := r.items
	r.items = nil
	return items
}

func (r *registry[T]) len() int {
	return len(r.items)
}
