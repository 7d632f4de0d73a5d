package invoice

import "time"

// Display computes the presentation status for an invoice at the given
// time. Pure: no side effects, deterministic for fixed inputs.
//
// Priority order: cancelled, partial, paid, draft, overdue/due, sent.
func Display(inv *Invoice, now time.Time) DisplayStatus {
	switch {
	case inv.Status == StatusCancelled:
		return DisplayCancelled

	case inv.AmountPaid.IsPositive() && inv.AmountPaid.LessThan(inv.Total):
		return DisplayPartial

	case inv.Status == StatusPaid || inv.AmountPaid.GreaterThanOrEqual(inv.Total):
		return DisplayPaid

	case inv.Status == StatusDraft || inv.EmailSentAt == nil:
		return DisplayDraft
	}

	if inv.DueDate != nil {
		if now.After(endOfDay(*inv.DueDate)) {
			return DisplayOverdue
		}

		return DisplayDue
	}

	return DisplaySent
}

// endOfDay returns the last instant of the due date's calendar day, so
// an invoice is not overdue until the day it is due has fully passed.
func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()

	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
