package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"campus-ledger/internal/rules"
)

// Standing summarises how current a student is on the tranche schedule.
type Standing string

const (
	StandingCurrent      Standing = "À jour"
	StandingUpcoming     Standing = "Échéance prochaine"
	StandingLate         Standing = "En retard"
	StandingSeverelyLate Standing = "Retard grave"
)

// SevereLatenessDays is the lateness beyond which standing degrades to
// StandingSeverelyLate. A due date within upcomingWindowDays of the
// reference instant surfaces as StandingUpcoming.
const (
	SevereLatenessDays = 30
	upcomingWindowDays = 7
)

// ScheduleLine is one tranche annotated with its payment state.
type ScheduleLine struct {
	Tranche       rules.Tranche
	Due           bool
	Paid          bool
	Partial       bool
	AmountPaid    decimal.Decimal
	RemainingOwed decimal.Decimal
}

// Schedule is the allocation of cumulative payments over a fee schedule.
type Schedule struct {
	Lines      []ScheduleLine
	TotalDue   decimal.Decimal
	TotalPaid  decimal.Decimal
	TotalOwed  decimal.Decimal
	// EarliestUnpaid indexes the earliest tranche that is due and not
	// fully covered, or -1 when every due tranche is covered.
	EarliestUnpaid int
	// NextDueDate is the due date of the earliest unpaid dated tranche,
	// nil when nothing dated remains unpaid.
	NextDueDate *time.Time
	DaysLate    int
	Standing    Standing
}

// Allocate spreads the cumulative amount paid over the tranches of a fee
// schedule in due-date order, immediate tranches first. Allocation is a
// single pass: each tranche consumes from the remaining pool until the
// pool is exhausted, so a pool covering one and a half tranches yields one
// paid line and one partial line. The same inputs always produce the same
// schedule; allocation never mutates persisted state.
func Allocate(fs rules.FeeSchedule, totalPaid decimal.Decimal, ref time.Time) Schedule {
	if totalPaid.IsNegative() {
		totalPaid = decimal.Zero
	}
	sched := Schedule{
		Lines:          make([]ScheduleLine, 0, len(fs.Tranches)),
		TotalPaid:      totalPaid,
		EarliestUnpaid: -1,
	}
	pool := totalPaid
	for _, tr := range fs.Tranches {
		if !tr.Amount.IsPositive() {
			continue
		}
		line := ScheduleLine{Tranche: tr, Due: tr.DueBy(ref)}
		switch {
		case pool.GreaterThanOrEqual(tr.Amount):
			line.Paid = true
			line.AmountPaid = tr.Amount
			line.RemainingOwed = decimal.Zero
			pool = pool.Sub(tr.Amount)
		case pool.IsPositive():
			line.Partial = true
			line.AmountPaid = pool
			line.RemainingOwed = tr.Amount.Sub(pool)
			pool = decimal.Zero
		default:
			line.AmountPaid = decimal.Zero
			line.RemainingOwed = tr.Amount
		}
		if line.Due && !line.Paid {
			sched.TotalDue = sched.TotalDue.Add(line.RemainingOwed)
			if sched.EarliestUnpaid < 0 {
				sched.EarliestUnpaid = len(sched.Lines)
			}
		}
		if !line.Paid {
			sched.TotalOwed = sched.TotalOwed.Add(line.RemainingOwed)
			if sched.NextDueDate == nil && tr.DueDate != nil {
				d := *tr.DueDate
				sched.NextDueDate = &d
			}
		}
		sched.Lines = append(sched.Lines, line)
	}
	sched.DaysLate, sched.Standing = standing(sched, ref)
	return sched
}

func standing(s Schedule, ref time.Time) (int, Standing) {
	if s.EarliestUnpaid >= 0 {
		late := 0
		if due := s.Lines[s.EarliestUnpaid].Tranche.DueDate; due != nil {
			late = int(ref.Sub(*due).Hours() / 24)
			if late < 0 {
				late = 0
			}
		}
		if late > SevereLatenessDays {
			return late, StandingSeverelyLate
		}
		if late == 0 {
			// Due today, not yet late.
			return 0, StandingUpcoming
		}
		return late, StandingLate
	}
	if s.NextDueDate != nil && !s.NextDueDate.After(ref.AddDate(0, 0, upcomingWindowDays)) {
		return 0, StandingUpcoming
	}
	return 0, StandingCurrent
}
