package rail

import (
	"errors"
	"testing"
)

func TestCombineMergesByGroup(t *testing.T) {
	items := []Passenger{
		{Category: Adult, Count: 1},
		{Category: Child, Count: 1},
		{Category: Adult, Count: 2},
	}

	out, err := Combine(items)
	if err != nil {
		t.Fatalf("Combine returned error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("Combine returned %d groups, expected 2", len(out))
	}
	if out[0].Category != Adult || out[0].Count != 3 {
		t.Errorf("first group = %v x%d, expected adult x3", out[0].Category, out[0].Count)
	}
	if out[1].Category != Child || out[1].Count != 1 {
		t.Errorf("second group = %v x%d, expected child x1", out[1].Category, out[1].Count)
	}
}

func TestCombineIdempotent(t *testing.T) {
	items := []Passenger{
		{Category: Adult, Count: 2},
		{Category: Senior, Count: 1},
		{Category: Adult, Count: 1},
	}

	once, err := Combine(items)
	if err != nil {
		t.Fatalf("first Combine: %v", err)
	}
	twice, err := Combine(once)
	if err != nil {
		t.Fatalf("second Combine: %v", err)
	}

	if len(once) != len(twice) {
		t.Fatalf("group count changed: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Errorf("group %d changed: %+v vs %+v", i, once[i], twice[i])
		}
	}
}

func TestCombineOrderIndependentCounts(t *testing.T) {
	forward := []Passenger{
		{Category: Adult, Count: 1},
		{Category: Child, Count: 2},
		{Category: Adult, Count: 1},
	}
	backward := []Passenger{
		{Category: Adult, Count: 1},
		{Category: Adult, Count: 1},
		{Category: Child, Count: 2},
	}

	a, err := Combine(forward)
	if err != nil {
		t.Fatalf("Combine(forward): %v", err)
	}
	b, err := Combine(backward)
	if err != nil {
		t.Fatalf("Combine(backward): %v", err)
	}

	counts := func(items []Passenger) map[Category]int {
		m := make(map[Category]int)
		for _, p := range items {
			m[p.Category] += p.Count
		}
		return m
	}
	ca, cb := counts(a), counts(b)
	if len(ca) != len(cb) {
		t.Fatalf("category sets differ: %v vs %v", ca, cb)
	}
	for cat, n := range ca {
		if cb[cat] != n {
			t.Errorf("category %v: %d vs %d", cat, n, cb[cat])
		}
	}
}

func TestCombineDropsZeroGroups(t *testing.T) {
	out, err := Combine([]Passenger{
		{Category: Adult, Count: 1},
		{Category: Child, Count: 0},
	})
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if len(out) != 1 || out[0].Category != Adult {
		t.Errorf("Combine = %v, expected only the adult group", out)
	}
}

func TestCombineRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		items []Passenger
	}{
		{"unknown category", []Passenger{{Category: Category(99), Count: 1}}},
		{"negative count", []Passenger{{Category: Adult, Count: -1}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Combine(tc.items); !errors.Is(err, ErrInvalidPassenger) {
				t.Errorf("Combine = %v, expected ErrInvalidPassenger", err)
			}
		})
	}
}

func TestCombineFillsDefaultDiscount(t *testing.T) {
	out, err := Combine([]Passenger{{Category: Senior, Count: 1}})
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if out[0].DiscountCode != "131" {
		t.Errorf("senior discount = %q, expected 131", out[0].DiscountCode)
	}
}

func TestPrepareDefaultsToOneAdult(t *testing.T) {
	out, err := Prepare(nil)
	if err != nil {
		t.Fatalf("Prepare(nil): %v", err)
	}
	if Total(out) != 1 || out[0].Category != Adult {
		t.Errorf("Prepare(nil) = %v, expected one adult", out)
	}
}

func TestPrepareRejectsEmptyBooking(t *testing.T) {
	_, err := Prepare([]Passenger{{Category: Adult, Count: 0}})
	if !errors.Is(err, ErrInvalidPassenger) {
		t.Errorf("Prepare = %v, expected ErrInvalidPassenger", err)
	}
}
