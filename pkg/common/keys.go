package common

import "bytes"

// LhsStrictlyLess reports whether every key with prefix lhs is strictly less
// than every key with prefix rhs. A bound flagged as truncated is only a
// prefix of the real key, so equal prefixes are inconclusive and yield false.
// An empty untruncated lhs is the lowest possible key.
func LhsStrictlyLess(lhs []byte, lhsTruncated bool, rhs []byte, rhsTruncated bool) bool {
	if !lhsTruncated {
		// lhs is exact and rhs <= real rhs
		return bytes.Compare(lhs, rhs) < 0
	}
	n := len(lhs)
	if len(rhs) < n {
		n = len(rhs)
	}
	// Real lhs extends lhs, so the answer is known only if the two differ
	// within the shared prefix
	return bytes.Compare(lhs[:n], rhs[:n]) < 0
}

// TruncateKey cuts a key bound to at most n bytes. A non-positive n keeps
// the key untouched.
func TruncateKey(key []byte, n int) (out []byte, truncated bool) {
	if n <= 0 || len(key) <= n {
		return key, false
	}
	return key[:n], true
}
