package cells

import (
	"errors"
	"testing"
)

func TestLookupByNameAndCode(t *testing.T) {
	byName, ok := Lookup("sepconv5x5")
	if !ok {
		t.Fatal("expected sepconv5x5")
	}
	byCode, ok := Lookup("N")
	if !ok || byCode != byName {
		t.Fatalf("expected code N to resolve to sepconv5x5, got %+v", byCode)
	}
	if _, ok := Lookup("conv7x7"); ok {
		t.Fatal("conv7x7 should not exist")
	}
}

func TestCodesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, op := range All() {
		if seen[op.Code] || seen[op.Name] {
			t.Fatalf("duplicate catalog entry %+v", op)
		}
		seen[op.Code] = true
		seen[op.Name] = true
	}
}

func TestParams(t *testing.T) {
	cases := map[string]int{
		"conv1x1":    16*16 + 32,
		"conv3x3":    9*16*16 + 32,
		"conv1x3":    3*16*16 + 32,
		"dwconv3x3":  9*16 + 32,
		"sepconv3x3": 9*16 + 16*16 + 32,
		"maxpool3x3": 0,
	}
	for name, want := range cases {
		op, _ := Lookup(name)
		if got := op.Params(16); got != want {
			t.Fatalf("%s params = %d, want %d", name, got, want)
		}
	}
}

func TestResolve(t *testing.T) {
	got, err := Resolve([]string{"A", "conv3x3", "F"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := []string{"conv1x1", "conv3x3", "conv3x1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("resolve = %v, want %v", got, want)
		}
	}
	if _, err := Resolve([]string{"Z"}); !errors.Is(err, ErrUnknownOp) {
		t.Fatalf("expected ErrUnknownOp, got %v", err)
	}
}
