// Package mapst holds generic helpers for maps.
package mapst

import (
	"cmp"
	"slices"
)

// Keys returns the keys of m in unspecified order.
func Keys[K comparable, V any, M ~map[K]V](m M) []K {
	result := make([]K, 0, len(m))
	for k := range m {
		result = append(result, k)
	}
	return result
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[K cmp.Ordered, V any, M ~map[K]V](m M) []K {
	result := Keys(m)
	slices.Sort(result)
	return result
}

// Reduce folds every entry of m into an accumulator.
func Reduce[K comparable, V any, M ~map[K]V, R any](m M, fn func(K, V, R) R) R {
	var result R
	for k, v := range m {
		result = fn(k, v, result)
	}
	return result
}
