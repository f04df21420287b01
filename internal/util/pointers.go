package util

func AsPtr[T any](v T) *T {
	return &v
}

// Deref returns the value pointed to by p, or the zero value of T when p is nil.
func Deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
