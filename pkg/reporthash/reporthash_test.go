package reporthash

import "testing"

func TestEqualValuesHashEqual(t *testing.T) {
	type doc struct {
		Name    string             `json:"name"`
		Details map[string]float64 `json:"details"`
	}
	a := doc{Name: "x", Details: map[string]float64{"b": 2, "a": 1}}
	b := doc{Name: "x", Details: map[string]float64{"a": 1, "b": 2}}
	ha, _, err := CanonicalSHA256(a)
	if err != nil {
		t.Fatal(err)
	}
	hb, _, _ := CanonicalSHA256(b)
	if ha != hb {
		t.Fatalf("map insertion order must not change the hash: %s vs %s", ha, hb)
	}
}

func TestDifferentValuesHashDifferent(t *testing.T) {
	ha, _, _ := CanonicalSHA256(map[string]float64{"score": 100})
	hb, _, _ := CanonicalSHA256(map[string]float64{"score": 99})
	if ha == hb {
		t.Fatal("distinct values must not collide")
	}
}
