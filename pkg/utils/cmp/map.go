package cmp

func MapEq[K comparable, V comparable](a map[K]V, b map[K]V) bool {
	return MapEqWith(a, b, func(x, y V) bool { return x == y })
}

func MapEqWith[K comparable, V any, U any](a map[K]V, b map[K]U, pred func(a V, b U) bool) bool {
	return len(a) == len(b) && MapGeqWith(a, b, pred)
}

// Check A ⊇ B; every entry of B is found in A at the same key.
func MapGeq[K comparable, V comparable](a map[K]V, b map[K]V) bool {
	return MapGeqWith(a, b, func(x, y V) bool { return x == y })
}

func MapGeqWith[K comparable, V any, U any](a map[K]V, b map[K]U, pred func(a V, b U) bool) bool {
	for k, vb := range b {
		va, ok := a[k]
		if !ok || !pred(va, vb) {
			return false
		}
	}
	return true
}

// Check A ⊆ B.
func MapLeq[K comparable, V comparable](a map[K]V, b map[K]V) bool {
	return MapGeq(b, a)
}

func MapLeqWith[K comparable, V any, U any](a map[K]V, b map[K]U, pred func(a V, b U) bool) bool {
	return MapGeqWith(b, a, func(x U, y V) bool { return pred(y, x) })
}

// MapMatch tests each entry of m with the predicator registered at the same
// key. Keys must agree exactly on both sides.
func MapMatch[K comparable, V any](m map[K]V, pred map[K]func(V) bool) bool {
	if len(m) != len(pred) {
		return false
	}
	for k, v := range m {
		p, ok := pred[k]
		if !ok || !p(v) {
			return false
		}
	}
	return true
}
