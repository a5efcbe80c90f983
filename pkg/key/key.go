// Package key implements the structured key naming scheme used to address
// every quantity in the computation graph: name[:[d1-d2-...][:tag]].
package key

import (
	"sort"
	"strings"

	"quantengine/pkg/graphtypes"
)

const identChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_"

// Key is an immutable value identifying a computed quantity by name, the
// set of dimensions it varies over, and an optional tag. Two keys are equal
// iff name, tag, and the *set* of dims agree — see Hash for why this
// deliberately does not extend to hashing.
type Key struct {
	name string
	dims []string
	tag  string
}

// New builds a Key directly from parts. dims are copied and must not
// contain duplicates; callers that parse user input should use Parse
// instead, which validates the grammar.
func New(name string, dims []string, tag string) Key {
	cp := make([]string, len(dims))
	copy(cp, dims)
	return Key{name: name, dims: cp, tag: tag}
}

// Parse parses the textual form name[:[d1-d2-...][:tag]].
//
// Grammar:
//
//	key   = name [":" dims] [":" tag]
//	dims  = [dim ("-" dim)*]
//
// Parsing the same string twice yields equal Keys.
func Parse(s string) (Key, error) {
	parts := strings.SplitN(s, ":", 3)
	name := parts[0]
	if name == "" {
		return Key{}, &graphtypes.KeyParseError{Input: s, Reason: "empty name"}
	}
	if !isValidIdent(name) {
		return Key{}, &graphtypes.KeyParseError{Input: s, Reason: "invalid characters in name"}
	}

	var dims []string
	var tag string

	if len(parts) >= 2 {
		dimsPart := parts[1]
		if dimsPart != "" {
			if strings.HasSuffix(dimsPart, "-") || strings.HasPrefix(dimsPart, "-") {
				return Key{}, &graphtypes.KeyParseError{Input: s, Reason: "stray '-' in dims"}
			}
			for _, d := range strings.Split(dimsPart, "-") {
				if d == "" {
					return Key{}, &graphtypes.KeyParseError{Input: s, Reason: "empty dim segment"}
				}
				if !isValidIdent(d) {
					return Key{}, &graphtypes.KeyParseError{Input: s, Reason: "invalid characters in dim " + d}
				}
				dims = append(dims, d)
			}
			if hasDuplicate(dims) {
				return Key{}, &graphtypes.KeyParseError{Input: s, Reason: "duplicate dims"}
			}
		}
	}
	if len(parts) == 3 {
		tag = parts[2]
		if tag != "" && !isValidTag(tag) {
			return Key{}, &graphtypes.KeyParseError{Input: s, Reason: "invalid characters in tag"}
		}
	}

	return Key{name: name, dims: dims, tag: tag}, nil
}

// MustParse panics on a malformed string; intended for literal keys in
// code, not for user input.
func MustParse(s string) Key {
	k, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return k
}

func isValidIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune(identChars, r) {
			return false
		}
	}
	return true
}

func isValidTag(s string) bool {
	for _, r := range s {
		if r == '+' {
			continue
		}
		if !strings.ContainsRune(identChars, r) {
			return false
		}
	}
	return true
}

func hasDuplicate(ss []string) bool {
	seen := make(map[string]struct{}, len(ss))
	for _, s := range ss {
		if _, ok := seen[s]; ok {
			return true
		}
		seen[s] = struct{}{}
	}
	return false
}

// Name returns the key's identifier.
func (k Key) Name() string { return k.name }

// Dims returns the key's dimensions in the order they are stored. Callers
// must not mutate the returned slice.
func (k Key) Dims() []string { return k.dims }

// Tag returns the key's tag, or "" if untagged.
func (k Key) Tag() string { return k.tag }

// HasDim reports whether d is one of the key's dimensions.
func (k Key) HasDim(d string) bool {
	for _, x := range k.dims {
		if x == d {
			return true
		}
	}
	return false
}

// String renders the canonical textual form, dims in their stored order.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(k.name)
	if len(k.dims) > 0 || k.tag != "" {
		b.WriteByte(':')
		b.WriteString(strings.Join(k.dims, "-"))
	}
	if k.tag != "" {
		b.WriteByte(':')
		b.WriteString(k.tag)
	}
	return b.String()
}

// sortedDims returns a freshly sorted copy of dims, used for both equality
// and ordering.
func (k Key) sortedDims() []string {
	cp := make([]string, len(k.dims))
	copy(cp, k.dims)
	sort.Strings(cp)
	return cp
}

// Equal reports whether k and o share the same name, tag, and *set* of
// dims — dim order does not affect equality.
func (k Key) Equal(o Key) bool {
	if k.name != o.name || k.tag != o.tag {
		return false
	}
	if len(k.dims) != len(o.dims) {
		return false
	}
	a, b := k.sortedDims(), o.sortedDims()
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Hash returns a string suitable for use as a map key, computed from the
// *canonical textual form with dims in their given order*. Two equal keys
// with different dim orderings therefore hash differently by design — see
// DESIGN.md for why the unsorted-key index exists to reconcile this with
// Equal. Callers that need set-based identity must use Equal, not Hash.
func (k Key) Hash() string {
	return k.String()
}

// UnsortedIdentity returns the (name, sorted-dims-joined, tag) triple used
// by the graph's unsorted-key index: it identifies a key's equality class
// independent of dim ordering, without being a rendering of the key itself.
func (k Key) UnsortedIdentity() string {
	var b strings.Builder
	b.WriteString(k.name)
	b.WriteByte(0)
	b.WriteString(strings.Join(k.sortedDims(), "-"))
	b.WriteByte(0)
	b.WriteString(k.tag)
	return b.String()
}

// AddTag returns a new Key with t appended to the tag, joined with "+" if
// the key already carries one.
func (k Key) AddTag(t string) Key {
	nk := k.clone()
	if nk.tag == "" {
		nk.tag = t
	} else {
		nk.tag = nk.tag + "+" + t
	}
	return nk
}

// Add returns a new Key with the given dims added; dims already present are
// left untouched (no-op for those).
func (k Key) Add(dims ...string) Key {
	nk := k.clone()
	for _, d := range dims {
		if !nk.HasDim(d) {
			nk.dims = append(nk.dims, d)
		}
	}
	return nk
}

// Drop returns a new Key with the given dims removed. Dims not present are
// silently ignored.
func (k Key) Drop(dims ...string) Key {
	drop := make(map[string]struct{}, len(dims))
	for _, d := range dims {
		drop[d] = struct{}{}
	}
	nk := k.clone()
	out := nk.dims[:0:0]
	for _, d := range nk.dims {
		if _, ok := drop[d]; !ok {
			out = append(out, d)
		}
	}
	nk.dims = out
	return nk
}

func (k Key) clone() Key {
	cp := make([]string, len(k.dims))
	copy(cp, k.dims)
	return Key{name: k.name, dims: cp, tag: k.tag}
}

// Compare implements the lexicographic ordering on (name, sorted(dims),
// tag) described in spec §3.1. It returns -1, 0, or 1.
func (k Key) Compare(o Key) int {
	if k.name != o.name {
		if k.name < o.name {
			return -1
		}
		return 1
	}
	a, b := k.sortedDims(), o.sortedDims()
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	if k.tag != o.tag {
		if k.tag < o.tag {
			return -1
		}
		return 1
	}
	return 0
}

// PartialSum pairs a subset key with the source key it is summed from and
// the dims that must be dropped to compute it — the task shape §4.1
// describes for iter_sums: (sum_op, source_key, nil, drop_dims).
type PartialSum struct {
	Key       Key
	Source    Key
	DropDims  []string
}

// IterSums enumerates every strictly-smaller, non-empty subset of k's dims,
// returning one PartialSum per subset (at most one entry per subset,
// tie-broken by sorted-dim canonical form — duplicate subsets cannot occur
// here since dims are already duplicate-free).
func (k Key) IterSums() []PartialSum {
	n := len(k.dims)
	if n == 0 {
		return nil
	}
	var out []PartialSum
	// Enumerate all non-empty proper subsets via bitmask; subset size < n
	// excludes the full set (the full set isn't "smaller").
	for mask := 1; mask < (1 << n); mask++ {
		if mask == (1<<n)-1 {
			continue // full set is not a strict subset
		}
		var keep []string
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				keep = append(keep, k.dims[i])
			}
		}
		var drop []string
		for _, d := range k.dims {
			found := false
			for _, kd := range keep {
				if kd == d {
					found = true
					break
				}
			}
			if !found {
				drop = append(drop, d)
			}
		}
		sub := New(k.name, keep, k.tag)
		out = append(out, PartialSum{Key: sub, Source: k, DropDims: drop})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.Compare(out[j].Key) < 0
	})
	return out
}
