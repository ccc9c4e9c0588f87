package accounts

import (
	"fmt"
	"strings"
)

const debtDivider = "----------------------------------------"

// FormatSummary renders the account and every outstanding debt as chat text.
func FormatSummary(account *Account) string {
	var b strings.Builder
	name := account.CustomerName
	if name == "" {
		name = "Customer"
	}
	extID := account.ExternalID
	if extID == "" {
		extID = "N/A"
	}
	fmt.Fprintf(&b, "Account Summary for %s\n", name)
	fmt.Fprintf(&b, "Account: %s\n\n", extID)

	if len(account.Debts) == 0 {
		b.WriteString("No active debts found.")
		return b.String()
	}
	for _, d := range account.Debts {
		fmt.Fprintf(&b, "Loan ID: %s\n", orNA(d.ID))
		fmt.Fprintf(&b, "Status: %s\n", orNA(d.Status))
		fmt.Fprintf(&b, "Principal: %s\n", formatAmount(d.Principal))
		fmt.Fprintf(&b, "Balance: %s\n", formatAmount(d.Balance))
		fmt.Fprintf(&b, "Due Date: %s\n", orNA(d.DueDate))
		b.WriteString(debtDivider + "\n")
	}
	return b.String()
}

// FormatStatement renders the loan statement view: per-loan principal and
// outstanding balance.
func FormatStatement(account *Account) string {
	if len(account.Debts) == 0 {
		return "You have no active loans on record."
	}
	var b strings.Builder
	b.WriteString("Loan Statement\n\n")
	for _, d := range account.Debts {
		fmt.Fprintf(&b, "Loan %s (%s)\n", orNA(d.ID), orNA(d.Status))
		fmt.Fprintf(&b, "  Principal: %s\n", formatAmount(d.Principal))
		fmt.Fprintf(&b, "  Outstanding: %s\n", formatAmount(d.Balance))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatSchedule renders the repayment view: per-loan balance and next due
// date.
func FormatSchedule(account *Account) string {
	if len(account.Debts) == 0 {
		return "You have no upcoming repayments."
	}
	var b strings.Builder
	b.WriteString("Repayment Schedule\n\n")
	for _, d := range account.Debts {
		fmt.Fprintf(&b, "Loan %s: %s due %s\n", orNA(d.ID), formatAmount(d.Balance), orNA(d.DueDate))
	}
	return strings.TrimRight(b.String(), "\n")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// formatAmount renders a monetary amount with thousands separators and two
// decimal places, e.g. 1234567.5 -> "1,234,567.50".
func formatAmount(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	dot := strings.IndexByte(s, '.')
	whole, frac := s[:dot], s[dot:]
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteString(frac)
	return b.String()
}
