package gitlib

// Hold takes the repository lock until the returned release is called.
func (r *Repository) Hold() (release func()) {
	r.lock.TryAcquire(1)

	return func() { r.lock.Release(1) }
}
