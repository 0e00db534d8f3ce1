// Package slicest holds generic helpers for slices.
package slicest

// Filter returns the elements of s for which fn reports true, in order.
func Filter[T any, S ~[]T](s S, fn func(T) bool) S {
	var result S
	for _, v := range s {
		if fn(v) {
			result = append(result, v)
		}
	}
	return result
}
