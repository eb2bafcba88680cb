package cmp

func SliceEq[T comparable](a []T, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for nth, va := range a {
		if va != b[nth] {
			return false
		}
	}
	return true
}

func SliceEqWith[T any, U any](a []T, b []U, pred func(a T, b U) bool) bool {
	if len(a) != len(b) {
		return false
	}
	for nth := range a {
		if !pred(a[nth], b[nth]) {
			return false
		}
	}
	return true
}

// Check A ⊇ B in some equivarency. Ordering does not matter.
//
// For each element in B, an unused equivarent element must be found in A.
//
// # Args
//
// - a, b: compared slice A and B.
//
// - pred: function returning true if elements comming from A and B are equivarent.
//
// # Return
//
// B is subset of A (true) or not (false).
func SliceSubsetWith[A, B any](a []A, b []B, pred func(A, B) bool) bool {
	if len(b) == 0 {
		return true
	}
	if len(a) < len(b) {
		return false
	}

	used := make([]bool, len(a))

B:
	for _, eb := range b {
		for i, ea := range a {
			if used[i] {
				continue
			}
			if pred(ea, eb) {
				used[i] = true
				continue B
			}
		}
		return false
	}
	return true
}

// Check needle appears in haystack as a contiguous run.
//
// The empty needle is found in any haystack.
func SliceContains[T comparable](haystack []T, needle []T) bool {
	if len(haystack) < len(needle) {
		return false
	}
	for start := 0; start <= len(haystack)-len(needle); start++ {
		if SliceEq(haystack[start:start+len(needle)], needle) {
			return true
		}
	}
	return false
}

// Check A ⊇ B for comparable elements, ignoring ordering.
func SliceSubset[T comparable](a []T, b []T) bool {
	return SliceSubsetWith(a, b, func(x, y T) bool { return x == y })
}

// Check A and B hold same contents, ignoring ordering.
func SliceContentEq[T comparable](a []T, b []T) bool {
	return len(a) == len(b) && SliceSubset(a, b)
}

// Check A and B hold same contents in some equivarency, ignoring ordering.
func SliceContentEqWith[T any, U any](a []T, b []U, pred func(T, U) bool) bool {
	return len(a) == len(b) && SliceSubsetWith(a, b, pred)
}
