package rail

import (
	"fmt"
)

// Category classifies a passenger line item. Category-specific codes live
// in lookup tables here and in the backend clients; there is no type
// hierarchy.
type Category int

const (
	Adult Category = iota
	Child
	Toddler
	Senior
	Disability1To3
	Disability4To6
)

var categoryNames = map[Category]string{
	Adult:          "adult",
	Child:          "child",
	Toddler:        "toddler",
	Senior:         "senior",
	Disability1To3: "disability 1-3",
	Disability4To6: "disability 4-6",
}

// defaultDiscount is the fare discount code applied when a line item does
// not carry an explicit one. "000" is the undiscounted adult fare.
var defaultDiscount = map[Category]string{
	Adult:          "000",
	Child:          "000",
	Toddler:        "321",
	Senior:         "131",
	Disability1To3: "111",
	Disability4To6: "112",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("category(%d)", int(c))
}

func (c Category) valid() bool {
	_, ok := categoryNames[c]
	return ok
}

// Passenger is one line item of a booking request: a count of identical
// travellers sharing a category, a discount code, and (optionally) a
// discount-card reference.
type Passenger struct {
	Category     Category
	Count        int
	DiscountCode string // empty means the category default
	CardCode     string
	CardNo       string
	CardPw       string
}

// withDefaults fills in the category's default discount code.
func (p Passenger) withDefaults() Passenger {
	if p.DiscountCode == "" {
		p.DiscountCode = defaultDiscount[p.Category]
	}
	return p
}

// groupKey identifies line items that must be merged before submission.
func (p Passenger) groupKey() string {
	return fmt.Sprintf("%d_%s_%s_%s_%s", p.Category, p.DiscountCode, p.CardCode, p.CardNo, p.CardPw)
}

func (p Passenger) String() string {
	return fmt.Sprintf("%s x%d", p.Category, p.Count)
}

// Adults is a convenience constructor for the common case.
func Adults(count int) []Passenger {
	return []Passenger{{Category: Adult, Count: count}}
}

// Combine merges line items with identical (category, discount code, card
// reference), sums their counts, drops empty groups and preserves
// first-seen group order. Combine is idempotent. Unknown categories and
// negative post-merge counts are rejected.
func Combine(items []Passenger) ([]Passenger, error) {
	merged := make(map[string]int)
	var order []string
	byKey := make(map[string]Passenger)

	for _, item := range items {
		if !item.Category.valid() {
			return nil, fmt.Errorf("%w: unknown category %d", ErrInvalidPassenger, int(item.Category))
		}
		item = item.withDefaults()
		key := item.groupKey()
		if _, seen := merged[key]; !seen {
			order = append(order, key)
			byKey[key] = item
		}
		merged[key] += item.Count
	}

	out := make([]Passenger, 0, len(order))
	for _, key := range order {
		count := merged[key]
		if count < 0 {
			return nil, fmt.Errorf("%w: negative count for %s", ErrInvalidPassenger, byKey[key].Category)
		}
		if count == 0 {
			continue
		}
		item := byKey[key]
		item.Count = count
		out = append(out, item)
	}
	return out, nil
}

// Total returns the summed head count of a line-item list.
func Total(items []Passenger) int {
	total := 0
	for _, item := range items {
		total += item.Count
	}
	return total
}

// Prepare combines the given passengers (defaulting to one adult) and
// verifies the result books at least one traveller. Backend clients call
// this before touching the network.
func Prepare(items []Passenger) ([]Passenger, error) {
	if len(items) == 0 {
		items = Adults(1)
	}
	combined, err := Combine(items)
	if err != nil {
		return nil, err
	}
	if Total(combined) == 0 {
		return nil, fmt.Errorf("%w: no passengers after aggregation", ErrInvalidPassenger)
	}
	return combined, nil
}
