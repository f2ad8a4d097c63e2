// Package category defines the closed set of spending categories and the
// keyword hints used to steer free text toward them.
package category

import (
	"slices"
	"strings"
)

// Category is one entry of the spending vocabulary.
type Category string

const (
	FoodDrinks     Category = "Food & Drinks"
	Transportation Category = "Transportation"
	Shopping       Category = "Shopping"
	Entertainment  Category = "Entertainment"
	BillsUtilities Category = "Bills & Utilities"
	Healthcare     Category = "Healthcare"
	Travel         Category = "Travel"
	Other          Category = "Other"
)

var all = []Category{
	FoodDrinks,
	Transportation,
	Shopping,
	Entertainment,
	BillsUtilities,
	Healthcare,
	Travel,
	Other,
}

// synonyms maps everyday words to the category they usually imply.
var synonyms = map[Category][]string{
	FoodDrinks:     {"coffee", "lunch", "dinner", "breakfast", "groceries", "restaurant", "snack", "drinks", "beer", "takeout"},
	Transportation: {"uber", "lyft", "taxi", "gas", "fuel", "parking", "bus", "train", "metro", "toll"},
	Shopping:       {"clothes", "shoes", "amazon", "electronics", "gift", "furniture"},
	Entertainment:  {"movie", "concert", "netflix", "spotify", "game", "tickets", "bar"},
	BillsUtilities: {"rent", "electricity", "water", "internet", "phone", "insurance", "subscription"},
	Healthcare:     {"doctor", "pharmacy", "medicine", "dentist", "gym", "therapy"},
	Travel:         {"flight", "hotel", "airbnb", "vacation", "luggage"},
}

// All returns the vocabulary in its canonical order.
func All() []Category {
	return slices.Clone(all)
}

// Names returns the vocabulary as plain strings.
func Names() []string {
	names := make([]string, len(all))
	for i, c := range all {
		names[i] = string(c)
	}
	return names
}

// IsValid reports whether s exactly matches a vocabulary entry. Matching is case-sensitive.
func IsValid(s string) bool {
	return slices.Contains(all, Category(s))
}

// Synonyms returns the keyword hints for c, or nil when it has none.
func Synonyms(c Category) []string {
	return slices.Clone(synonyms[c])
}

// Hints renders the keyword table one category per line, for prompt construction.
func Hints() string {
	var sb strings.Builder
	for _, c := range all {
		words, ok := synonyms[c]
		if !ok {
			continue
		}
		sb.WriteString("- ")
		sb.WriteString(strings.Join(words, ", "))
		sb.WriteString(" → ")
		sb.WriteString(string(c))
		sb.WriteString("\n")
	}
	return sb.String()
}
