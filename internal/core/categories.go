package core

import "strings"

// OtherNature is the placeholder choice that asks for custom text.
const OtherNature = "Other"

// Uncategorized labels records with a blank nature in groupings.
const Uncategorized = "Uncategorized"

var natureOptions = map[TransactionType][]string{
	Expense: {
		"Food", "Housing", "Transport", "Entertainment", "Utilities", "Fuel",
		"Groceries", "Education", "Learning", "Rent", "Internet",
		"Mobile Recharge", "Tea/Coffee", "Shopping", "Health", OtherNature,
	},
	Income: {
		"Salary", "Freelancing", "Gift", "Investment", "Business", "Rental", OtherNature,
	},
	Borrowing: {
		"Friend", "Family", "Bank Loan", "Credit Card", OtherNature,
	},
}

// NatureOptions returns a copy of the standard categories for t.
func NatureOptions(t TransactionType) []string {
	opts := natureOptions[t]
	out := make([]string, len(opts))
	copy(out, opts)
	return out
}

func IsStandardNature(t TransactionType, nature string) bool {
	for _, opt := range natureOptions[t] {
		if opt == nature {
			return true
		}
	}
	return false
}

// ResolveNature turns a category choice into the stored nature.
// Picking Other requires custom text, which becomes the nature.
func ResolveNature(t TransactionType, selected, custom string) (string, bool, error) {
	selected = strings.TrimSpace(selected)
	custom = strings.TrimSpace(custom)
	switch {
	case selected == OtherNature:
		if custom == "" {
			return "", false, &ValidationError{Field: "nature", Err: ErrCustomNatureRequired}
		}
		return custom, !IsStandardNature(t, custom), nil
	case selected == "":
		if custom != "" {
			return custom, !IsStandardNature(t, custom), nil
		}
		return "", false, &ValidationError{Field: "nature", Err: ErrEmptyNature}
	default:
		return selected, !IsStandardNature(t, selected), nil
	}
}
