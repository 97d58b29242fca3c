package core

import "time"

// InvoiceDates are the next statement closing and payment due dates of a
// credit card.
type InvoiceDates struct {
	Closing Date
	Due     Date
}

// NextInvoiceDates returns the first closing day and the first due day on or
// after from. A day past the end of a short month falls on its last day, so
// a card closing on the 31st closes on February 28th. Debit cards have no
// invoice and report false.
func (c CreditCard) NextInvoiceDates(from Date) (InvoiceDates, bool) {
	if c.Type != CreditCardType || c.ClosingDay < 1 || c.DueDay < 1 {
		return InvoiceDates{}, false
	}
	return InvoiceDates{
		Closing: nextMonthDay(c.ClosingDay, from),
		Due:     nextMonthDay(c.DueDay, from),
	}, true
}

// nextMonthDay returns the first occurrence of day-of-month day on or after from.
func nextMonthDay(day int, from Date) Date {
	candidate := clampedDate(from.Year(), from.Month(), day)
	if candidate.Before(from.Time) {
		candidate = clampedDate(from.Year(), from.Month()+1, day)
	}
	return Date{Time: candidate}
}

func clampedDate(year int, month time.Month, day int) time.Time {
	// day 0 of the following month is the last day of this one
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
