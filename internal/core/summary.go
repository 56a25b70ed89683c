package core

// Totals holds per-type sums. Skipped counts records left out of the sums.
type Totals struct {
	Income    Amount `json:"income"`
	Expense   Amount `json:"expense"`
	Borrowing Amount `json:"borrowing"`
	Skipped   int    `json:"skipped"`
}

// CategoryTotal is an amount aggregated by nature.
type CategoryTotal struct {
	Nature string          `json:"nature"`
	Type   TransactionType `json:"type"`
	Total  Amount          `json:"total"`
}

// Progress describes spending against a positive limit.
type Progress struct {
	Ratio      float64 `json:"ratio"`
	OverBudget bool    `json:"overBudget"`
}

// BudgetLine is one category's spending against its limit.
type BudgetLine struct {
	Category string    `json:"category"`
	Spent    Amount    `json:"spent"`
	Limit    Amount    `json:"limit"`
	Progress *Progress `json:"progress,omitempty"`
}

// MonthReport is a compact summary for one calendar month.
type MonthReport struct {
	Year     int             `json:"year"`
	Month    int             `json:"month"` // 1-12
	Totals   Totals          `json:"totals"`
	Balance  Amount          `json:"balance"`
	ByNature []CategoryTotal `json:"byNature"`
	Count    int             `json:"count"`
}
