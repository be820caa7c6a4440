package core

import "github.com/shopspring/decimal"

// Summary holds the income/expense/balance figures for a set of transactions.
type Summary struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Balance decimal.Decimal
}

// Summarize folds the given transactions once. An empty slice yields zeros.
func Summarize(txs []Transaction) Summary {
	income, expense := decimal.Zero, decimal.Zero
	for _, t := range txs {
		if t.IsIncome() {
			income = income.Add(t.Amount)
		} else {
			expense = expense.Add(t.Amount)
		}
	}
	return Summary{Income: income, Expense: expense, Balance: income.Sub(expense)}
}
