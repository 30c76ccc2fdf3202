package lending

import "context"

// DueSoonScan emits a BorrowDueSoon event for every active borrow whose
// due date falls within the configured horizon. Runs from the background
// scheduler alongside hold expiry; emitting twice for the same borrow on
// consecutive days is acceptable, the dispatcher dedupes downstream.
func (s *Service) DueSoonScan(ctx context.Context) (int, error) {
	today := s.clock()
	horizon := today.AddDays(s.Config.DueSoonDays)

	due, err := s.Store.BorrowsDueBetween(ctx, today, horizon)
	if err != nil {
		return 0, err
	}

	emitted := 0
	for _, b := range due {
		if b.Status != BorrowActive {
			continue
		}
		s.publish(ctx, Event{
			Type:     EventBorrowDueSoon,
			BookID:   b.BookID,
			UserID:   b.UserID,
			BorrowID: b.ID,
			Date:     b.DueDate,
		})
		emitted++
	}
	return emitted, nil
}
