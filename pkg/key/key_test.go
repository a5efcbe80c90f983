package key_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantengine/pkg/key"
)

func TestParseRenderRoundTrip(t *testing.T) {
	cases := []string{
		"energy",
		"energy:x",
		"energy:x-y-z",
		"energy::tag1",
		"energy:x-y:tag1",
		"energy:x-y:tag1+tag2",
	}
	for _, s := range cases {
		k, err := key.Parse(s)
		require.NoError(t, err, s)
		k2, err := key.Parse(k.String())
		require.NoError(t, err, s)
		assert.True(t, k.Equal(k2), "parse(render(k)) == k for %s", s)
		assert.Equal(t, s, k.String())
	}
}

func TestParseErrors(t *testing.T) {
	bad := []string{
		"",
		":x",
		"energy:x-",
		"energy:-x",
		"energy:x--y",
		"energy$bad",
	}
	for _, s := range bad {
		_, err := key.Parse(s)
		assert.Error(t, err, s)
	}
}

func TestTagAppendJoinsWithPlus(t *testing.T) {
	k := key.MustParse("energy")
	k = k.AddTag("t1")
	k = k.AddTag("t2")
	assert.Equal(t, "energy::t1+t2", k.String())
}

func TestAddDropInverse(t *testing.T) {
	k := key.MustParse("energy:x")
	k2 := k.Add("y")
	assert.True(t, k2.HasDim("y"))
	k3 := k2.Drop("y")
	assert.True(t, k.Equal(k3))
}

func TestAddNoopIfPresent(t *testing.T) {
	k := key.MustParse("energy:x")
	k2 := k.Add("x")
	assert.True(t, k.Equal(k2))
	assert.Equal(t, []string{"x"}, k2.Dims())
}

func TestDropNoopIfAbsent(t *testing.T) {
	k := key.MustParse("energy:x")
	k2 := k.Drop("y")
	assert.True(t, k.Equal(k2))
}

func TestEqualityIgnoresDimOrder(t *testing.T) {
	a := key.New("energy", []string{"x", "y"}, "")
	b := key.New("energy", []string{"y", "x"}, "")
	assert.True(t, a.Equal(b))
}

func TestHashDiffersByDimOrder(t *testing.T) {
	a := key.New("energy", []string{"x", "y"}, "")
	b := key.New("energy", []string{"y", "x"}, "")
	assert.True(t, a.Equal(b))
	assert.NotEqual(t, a.Hash(), b.Hash(), "hash is deliberately order-sensitive")
	assert.Equal(t, a.UnsortedIdentity(), b.UnsortedIdentity(), "unsorted identity is order-independent")
}

func TestCompareOrdersByNameThenSortedDimsThenTag(t *testing.T) {
	a := key.MustParse("a:x-y")
	b := key.MustParse("a:x-z")
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
}

func TestIterSumsEnumeratesStrictNonEmptySubsets(t *testing.T) {
	k := key.MustParse("energy:x-y-z")
	sums := k.IterSums()
	// 2^3 - 2 = 6 strict non-empty proper subsets (excludes empty and full).
	assert.Len(t, sums, 6)
	seen := map[string]bool{}
	for _, ps := range sums {
		assert.True(t, ps.Source.Equal(k))
		assert.Less(t, len(ps.Key.Dims()), 3)
		assert.NotEmpty(t, ps.Key.Dims())
		seen[ps.Key.String()] = true
	}
	assert.Len(t, seen, 6, "no duplicate subsets")
}

func TestIterSumsEmptyDimsYieldsNothing(t *testing.T) {
	k := key.MustParse("energy")
	assert.Empty(t, k.IterSums())
}
