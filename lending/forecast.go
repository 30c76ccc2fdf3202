/*
forecast.go - Availability forecaster

PURPOSE:
  Answers "when can I get this book?" by projecting active borrows and
  open reservations onto the calendar. Read-only: the forecaster derives
  everything on demand from the stores and keeps no state of its own, so
  it can never disagree with the ledger.

MODEL:
  Each commitment occupies a copy over a closed day interval - an active
  borrow from its start date through its due date, an open reservation
  from its pickup date through its duration. A sweep over sorted
  interval endpoints counts concurrent commitments; the first day the
  count drops below the total copy count is the next available date.
  Overdue borrows are extended to the query date: an overdue copy is not
  predicted free until it actually comes back.
*/
package lending

import (
	"context"
	"fmt"
	"sort"
)

// DayStatus classifies a single calendar day for a book.
type DayStatus string

const (
	DayPast      DayStatus = "past"
	DayBorrowed  DayStatus = "borrowed"
	DayReserved  DayStatus = "reserved"
	DayAvailable DayStatus = "available"
)

// CalendarDay is one entry of a book's availability calendar.
type CalendarDay struct {
	Date   Date
	Status DayStatus
}

// Forecast is the full availability answer for a book.
type Forecast struct {
	BookID            BookID
	TotalCopies       uint
	AvailableCopies   uint
	NextAvailableDate Date
	QueueLength       int
}

// Forecaster projects lending commitments forward. Construct with
// NewForecaster; the zero value is not usable.
type Forecaster struct {
	store Store
}

func NewForecaster(store Store) *Forecaster {
	return &Forecaster{store: store}
}

// NextAvailableDate returns the earliest day on or after asOf a copy of
// the book is predicted free. If a copy is free right now that day is
// asOf itself.
func (f *Forecaster) NextAvailableDate(ctx context.Context, bookID BookID, asOf Date) (Date, error) {
	inv, err := f.store.GetInventory(ctx, bookID)
	if err != nil {
		return Date{}, err
	}
	if inv == nil {
		return Date{}, fmt.Errorf("book %s: %w", bookID, ErrNotFound)
	}
	if inv.AvailableCopies > 0 {
		return asOf, nil
	}

	intervals, err := f.commitments(ctx, bookID, asOf)
	if err != nil {
		return Date{}, err
	}

	// Endpoint sweep: +1 the day a commitment starts, -1 the day after
	// it ends. The first swept day with occupancy below the copy count
	// is the answer.
	type boundary struct {
		day   Date
		delta int
	}
	bounds := make([]boundary, 0, len(intervals)*2)
	for _, iv := range intervals {
		start := iv.start
		if start.Before(asOf) {
			start = asOf
		}
		bounds = append(bounds, boundary{start, +1})
		bounds = append(bounds, boundary{iv.end.AddDays(1), -1})
	}
	sort.Slice(bounds, func(i, j int) bool {
		return bounds[i].day.Before(bounds[j].day)
	})

	occupied := 0
	for i := 0; i < len(bounds); {
		d := bounds[i].day
		// Apply every delta for this day before testing occupancy: a day
		// where one copy comes back and another goes out is not free.
		for i < len(bounds) && bounds[i].day.Equal(d) {
			occupied += bounds[i].delta
			i++
		}
		if d.AfterOrEqual(asOf) && occupied < int(inv.TotalCopies) {
			return d, nil
		}
	}
	if len(bounds) == 0 {
		// No commitments yet nothing available: copies are all out on
		// hold or the ledger is mid-transition; predict tomorrow.
		return asOf.AddDays(1), nil
	}
	return bounds[len(bounds)-1].day, nil
}

// Calendar classifies each day of [from, to] for a book. Precedence when
// a day matches several states: past beats borrowed beats reserved
// beats available.
func (f *Forecaster) Calendar(ctx context.Context, bookID BookID, from, to Date, today Date) ([]CalendarDay, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("calendar range %s..%s: %w", from, to, ErrInvalidStateTransition)
	}
	if _, err := f.store.GetInventory(ctx, bookID); err != nil {
		return nil, err
	}

	borrows, err := f.store.ActiveBorrowsByBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	reservations, err := f.store.OpenReservationsByBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	days := make([]CalendarDay, 0, DaysBetween(from, to)+1)
	for d := from; d.BeforeOrEqual(to); d = d.AddDays(1) {
		status := DayAvailable
		switch {
		case d.Before(today):
			status = DayPast
		case anyBorrowCovers(borrows, d, today):
			status = DayBorrowed
		case anyReservationCovers(reservations, d):
			status = DayReserved
		}
		days = append(days, CalendarDay{Date: d, Status: status})
	}
	return days, nil
}

// =============================================================================
// SERVICE DELEGATION
// =============================================================================

// NextAvailableDate forecasts from the service's clock.
func (s *Service) NextAvailableDate(ctx context.Context, bookID BookID) (Date, error) {
	f := NewForecaster(s.Store)
	return f.NextAvailableDate(ctx, bookID, s.clock())
}

// GetForecast bundles the inventory counters, the next available date
// and the queue length for a book.
func (s *Service) GetForecast(ctx context.Context, bookID BookID) (*Forecast, error) {
	inv, err := s.inv.Inventory(ctx, bookID)
	if err != nil {
		return nil, err
	}
	f := NewForecaster(s.Store)
	next, err := f.NextAvailableDate(ctx, bookID, s.clock())
	if err != nil {
		return nil, err
	}
	open, err := s.Store.OpenReservationsByBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return &Forecast{
		BookID:            bookID,
		TotalCopies:       inv.TotalCopies,
		AvailableCopies:   inv.AvailableCopies,
		NextAvailableDate: next,
		QueueLength:       len(open),
	}, nil
}

// Calendar classifies each day of [from, to] for a book using the
// service's clock for the past boundary.
func (s *Service) Calendar(ctx context.Context, bookID BookID, from, to Date) ([]CalendarDay, error) {
	f := NewForecaster(s.Store)
	return f.Calendar(ctx, bookID, from, to, s.clock())
}

type interval struct {
	start, end Date
}

// commitments gathers every copy-occupying interval for a book: active
// borrows through their due date (or today, if already overdue) and
// open reservations over their pickup window.
func (f *Forecaster) commitments(ctx context.Context, bookID BookID, asOf Date) ([]interval, error) {
	borrows, err := f.store.ActiveBorrowsByBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	reservations, err := f.store.OpenReservationsByBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	intervals := make([]interval, 0, len(borrows)+len(reservations))
	for _, b := range borrows {
		// An active borrow occupies its copy right now whatever its
		// nominal start date, and an overdue one holds it through today.
		end := b.DueDate
		if end.Before(asOf) {
			end = asOf
		}
		intervals = append(intervals, interval{start: asOf, end: end})
	}
	for _, r := range reservations {
		intervals = append(intervals, interval{
			start: r.PickupWindowStart,
			end:   r.PickupWindowStart.AddDays(r.DurationDays),
		})
	}
	return intervals, nil
}

func anyBorrowCovers(borrows []Borrow, d Date, today Date) bool {
	for _, b := range borrows {
		end := b.DueDate
		if end.Before(today) {
			end = today
		}
		if d.AfterOrEqual(b.StartDate) && d.BeforeOrEqual(end) {
			return true
		}
	}
	return false
}

func anyReservationCovers(reservations []Reservation, d Date) bool {
	for _, r := range reservations {
		end := r.PickupWindowStart.AddDays(r.DurationDays)
		if d.AfterOrEqual(r.PickupWindowStart) && d.BeforeOrEqual(end) {
			return true
		}
	}
	return false
}
