/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

CONVENTIONS:
  - Dates: YYYY-MM-DD strings
  - Timestamps: RFC3339 strings
  - snake_case field names
  - Derived fields (overdue status, tier progress) are flattened here
    rather than exposing domain types directly

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/shelfline/lending-engine/lending"
	"github.com/shelfline/lending-engine/score"
	"github.com/shelfline/lending-engine/store/sqlite"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// =============================================================================
// ERROR RESPONSE
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// USERS
// =============================================================================

type CreateUserRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type UserDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	BannedUntil string `json:"banned_until,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func toUserDTO(u *sqlite.User) UserDTO {
	dto := UserDTO{
		ID:        string(u.ID),
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
	if u.BannedUntil != nil {
		dto.BannedUntil = u.BannedUntil.String()
	}
	return dto
}

type BanUserRequest struct {
	// Until is the last banned day, YYYY-MM-DD. Empty lifts the ban.
	Until string `json:"until,omitempty"`
}

// =============================================================================
// SCORE / TIER
// =============================================================================

type ScoreSummaryDTO struct {
	UserID       string  `json:"user_id"`
	Score        float64 `json:"score"`
	Tier         string  `json:"tier"`
	NextTier     string  `json:"next_tier,omitempty"`
	Percent      float64 `json:"percent_to_next"`
	PointsToNext int64   `json:"points_to_next"`

	BorrowLimit           int `json:"borrow_limit"`
	MaxBorrowDurationDays int `json:"max_borrow_duration_days"`
}

type ScoreEventDTO struct {
	ID          string  `json:"id"`
	Delta       float64 `json:"delta"`
	Reason      string  `json:"reason"`
	ReferenceID string  `json:"reference_id,omitempty"`
	OccurredAt  string  `json:"occurred_at"`
}

func toScoreEventDTO(e score.Event) ScoreEventDTO {
	return ScoreEventDTO{
		ID:          string(e.ID),
		Delta:       e.Delta.Float64(),
		Reason:      string(e.Reason),
		ReferenceID: e.ReferenceID,
		OccurredAt:  e.OccurredAt.Format(time.RFC3339),
	}
}

type AdjustScoreRequest struct {
	Delta          float64 `json:"delta"`
	Reason         string  `json:"reason,omitempty"`
	IdempotencyKey string  `json:"idempotency_key,omitempty"`
}

// =============================================================================
// BOOKS / INVENTORY
// =============================================================================

type RegisterBookRequest struct {
	BookID      string `json:"book_id"`
	TotalCopies uint   `json:"total_copies"`
}

type ChangeCopiesRequest struct {
	Delta int `json:"delta"`
}

type InventoryDTO struct {
	BookID          string `json:"book_id"`
	TotalCopies     uint   `json:"total_copies"`
	AvailableCopies uint   `json:"available_copies"`
}

func toInventoryDTO(inv lending.BookInventory) InventoryDTO {
	return InventoryDTO{
		BookID:          string(inv.BookID),
		TotalCopies:     inv.TotalCopies,
		AvailableCopies: inv.AvailableCopies,
	}
}

type ForecastDTO struct {
	BookID            string `json:"book_id"`
	TotalCopies       uint   `json:"total_copies"`
	AvailableCopies   uint   `json:"available_copies"`
	NextAvailableDate string `json:"next_available_date"`
	QueueLength       int    `json:"queue_length"`
}

type CalendarDayDTO struct {
	Date   string `json:"date"`
	Status string `json:"status"`
}

// =============================================================================
// BORROWS
// =============================================================================

type BorrowRequest struct {
	UserID string `json:"user_id"`
	BookID string `json:"book_id"`
	Days   int    `json:"days"`
}

type RenewRequest struct {
	ExtraDays int `json:"extra_days"`
}

type BorrowDTO struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	BookID    string `json:"book_id"`
	StartDate string `json:"start_date"`
	DueDate   string `json:"due_date"`

	// Status reflects today: active, overdue, or returned.
	Status       string `json:"status"`
	ReturnedDate string `json:"returned_date,omitempty"`

	ReservationID  string `json:"reservation_id,omitempty"`
	PickupDeadline string `json:"pickup_deadline,omitempty"`
	CollectedAt    string `json:"collected_at,omitempty"`

	CreatedAt string `json:"created_at"`
}

func toBorrowDTO(b lending.Borrow, today lending.Date) BorrowDTO {
	dto := BorrowDTO{
		ID:            string(b.ID),
		UserID:        string(b.UserID),
		BookID:        string(b.BookID),
		StartDate:     b.StartDate.String(),
		DueDate:       b.DueDate.String(),
		Status:        string(b.EffectiveStatus(today)),
		ReservationID: string(b.ReservationID),
		CreatedAt:     b.CreatedAt.Format(time.RFC3339),
	}
	if b.ReturnedDate != nil {
		dto.ReturnedDate = b.ReturnedDate.String()
	}
	if b.PickupDeadline != nil {
		dto.PickupDeadline = b.PickupDeadline.String()
	}
	if b.CollectedAt != nil {
		dto.CollectedAt = b.CollectedAt.String()
	}
	return dto
}

// =============================================================================
// RESERVATIONS
// =============================================================================

type ReserveRequest struct {
	UserID      string `json:"user_id"`
	BookID      string `json:"book_id"`
	PickupStart string `json:"pickup_start"` // YYYY-MM-DD
	Days        int    `json:"days"`
}

type ReservationDTO struct {
	ID                string `json:"id"`
	UserID            string `json:"user_id"`
	BookID            string `json:"book_id"`
	Status            string `json:"status"`
	Position          uint   `json:"position,omitempty"`
	PriorityClass     int    `json:"priority_class"`
	PickupWindowStart string `json:"pickup_window_start"`
	DurationDays      int    `json:"duration_days"`
	HoldExpiresAt     string `json:"hold_expires_at,omitempty"`
	CreatedAt         string `json:"created_at"`
}

func toReservationDTO(r lending.Reservation) ReservationDTO {
	dto := ReservationDTO{
		ID:                string(r.ID),
		UserID:            string(r.UserID),
		BookID:            string(r.BookID),
		Status:            string(r.Status),
		Position:          r.Position,
		PriorityClass:     r.PriorityClass,
		PickupWindowStart: r.PickupWindowStart.String(),
		DurationDays:      r.DurationDays,
		CreatedAt:         r.CreatedAt.Format(time.RFC3339),
	}
	if r.HoldExpiresAt != nil {
		dto.HoldExpiresAt = r.HoldExpiresAt.String()
	}
	return dto
}

// =============================================================================
// TIERS
// =============================================================================

type TierDTO struct {
	Name                     string `json:"name"`
	Threshold                int64  `json:"threshold"`
	BorrowLimit              int    `json:"borrow_limit"`
	MaxBorrowDurationDays    int    `json:"max_borrow_duration_days"`
	ReservationPriorityClass int    `json:"reservation_priority_class"`
	PickupAdvanceDays        int    `json:"pickup_advance_days"`
}

func toTierDTO(t score.Tier) TierDTO {
	return TierDTO{
		Name:                     t.Name,
		Threshold:                t.Threshold,
		BorrowLimit:              t.BorrowLimit,
		MaxBorrowDurationDays:    t.MaxBorrowDurationDays,
		ReservationPriorityClass: t.ReservationPriorityClass,
		PickupAdvanceDays:        t.PickupAdvanceDays,
	}
}
