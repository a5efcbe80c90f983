package cache

import "testing"

func TestHashArgsIsDeterministic(t *testing.T) {
	a := HashArgs([]string{"a.csv", "MJ"})
	b := HashArgs([]string{"a.csv", "MJ"})
	if a != b {
		t.Fatalf("expected identical args to hash identically, got %q and %q", a, b)
	}
}

func TestHashArgsDistinguishesOrder(t *testing.T) {
	a := HashArgs([]string{"a.csv", "MJ"})
	b := HashArgs([]string{"MJ", "a.csv"})
	if a == b {
		t.Fatalf("expected differently-ordered args to hash differently, got %q for both", a)
	}
}

func TestHashArgsDistinguishesConcatenationBoundary(t *testing.T) {
	// Without a separator between elements, ["ab", "c"] and ["a", "bc"]
	// would collide; HashArgs must not do that.
	a := HashArgs([]string{"ab", "c"})
	b := HashArgs([]string{"a", "bc"})
	if a == b {
		t.Fatalf("expected no boundary collision, got %q for both", a)
	}
}

func TestHashArgsEmptyIsStable(t *testing.T) {
	a := HashArgs(nil)
	b := HashArgs([]string{})
	if a != b {
		t.Fatalf("expected nil and empty slice to hash identically, got %q and %q", a, b)
	}
}
