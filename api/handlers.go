/*
handlers.go - HTTP API handlers for the lending engine

PURPOSE:
  Exposes the lending engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Users:
    GET    /api/users/{id}               Get user details
    POST   /api/users                    Create user
    POST   /api/users/{id}/ban           Set or lift a ban window
    GET    /api/users/{id}/score         Score, tier, and progress
    GET    /api/users/{id}/score/events  Score event history
    POST   /api/users/{id}/score/adjust  Manual score adjustment
    GET    /api/users/{id}/borrows       Borrow history
    GET    /api/users/{id}/reservations  Reservation history

  Books:
    GET    /api/books                    List inventory
    POST   /api/books                    Register a book
    GET    /api/books/{id}               Inventory counts
    POST   /api/books/{id}/copies        Change total copies
    GET    /api/books/{id}/forecast      Next available date + queue length
    GET    /api/books/{id}/calendar      Day-by-day availability
    GET    /api/books/{id}/queue         Open reservation queue

  Borrows:
    POST   /api/borrows                  Borrow a book
    POST   /api/borrows/{id}/renew       Extend the due date
    POST   /api/borrows/{id}/return      Return the copy
    POST   /api/borrows/{id}/collect     Pick up a held copy

  Reservations:
    POST   /api/reservations             Join the queue
    DELETE /api/reservations/{id}        Cancel (leave the queue)

  Tiers:
    GET    /api/tiers                    The configured tier schedule

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Record not found
  - 409: Conflict (duplicates, capacity, bad state transitions)
  - 422: Eligibility failures (limits, bans)
  - 500: Internal errors, integrity violations

SECURITY NOTE:
  Currently NO authentication or authorization. The engine assumes an
  authenticated caller upstream.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shelfline/lending-engine/lending"
	"github.com/shelfline/lending-engine/score"
	"github.com/shelfline/lending-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *lending.Service
	Store   *sqlite.Store
	Scores  score.Ledger
}

// NewHandler creates a new handler around the engine and its store.
func NewHandler(svc *lending.Service, store *sqlite.Store, scores score.Ledger) *Handler {
	return &Handler{Service: svc, Store: store, Scores: scores}
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// CreateUser creates a new user.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	u := sqlite.User{
		ID:    lending.UserID(req.ID),
		Name:  req.Name,
		Email: req.Email,
	}
	if err := h.Store.SaveUser(r.Context(), u); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create user", err)
		return
	}

	saved, err := h.Store.GetUser(r.Context(), u.ID)
	if err != nil || saved == nil {
		writeError(w, http.StatusInternalServerError, "Failed to load created user", err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(saved))
}

// ListUsers returns all users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list users", err)
		return
	}
	dtos := make([]UserDTO, 0, len(users))
	for i := range users {
		dtos = append(dtos, toUserDTO(&users[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetUser returns a single user.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := lending.UserID(chi.URLParam(r, "id"))

	u, err := h.Store.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get user", err)
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(u))
}

// BanUser sets or lifts a user's ban window.
func (h *Handler) BanUser(w http.ResponseWriter, r *http.Request) {
	id := lending.UserID(chi.URLParam(r, "id"))

	var req BanUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var until *lending.Date
	if req.Until != "" {
		d, err := lending.ParseDate(req.Until)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid until date (use YYYY-MM-DD)", err)
			return
		}
		until = &d
	}

	if err := h.Store.BanUser(r.Context(), id, until); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetScore returns the user's score, tier, and progress toward the next.
func (h *Handler) GetScore(w http.ResponseWriter, r *http.Request) {
	id := lending.UserID(chi.URLParam(r, "id"))

	points, progress, err := h.Service.ScoreSummary(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute score", err)
		return
	}

	dto := ScoreSummaryDTO{
		UserID:                string(id),
		Score:                 points.Float64(),
		Tier:                  progress.Tier.Name,
		Percent:               progress.Percent,
		PointsToNext:          progress.PointsToNext,
		BorrowLimit:           progress.Tier.BorrowLimit,
		MaxBorrowDurationDays: progress.Tier.MaxBorrowDurationDays,
	}
	if progress.NextTier != nil {
		dto.NextTier = progress.NextTier.Name
	}
	writeJSON(w, http.StatusOK, dto)
}

// GetScoreEvents returns the user's score event history.
func (h *Handler) GetScoreEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	events, err := h.Scores.Events(r.Context(), score.UserID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load score events", err)
		return
	}

	dtos := make([]ScoreEventDTO, len(events))
	for i, e := range events {
		dtos[i] = toScoreEventDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AdjustScore applies a manual score adjustment (librarian action).
func (h *Handler) AdjustScore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req AdjustScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Delta == 0 {
		writeError(w, http.StatusBadRequest, "delta must be non-zero", nil)
		return
	}

	event, err := h.Service.AdjustScore(r.Context(),
		lending.UserID(id), score.NewPointsFromFloat(req.Delta), req.Reason, req.IdempotencyKey)
	if err != nil {
		if errors.Is(err, score.ErrDuplicateIdempotencyKey) {
			writeError(w, http.StatusConflict, "Duplicate idempotency key", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to adjust score", err)
		return
	}
	writeJSON(w, http.StatusCreated, toScoreEventDTO(*event))
}

// GetUserBorrows returns the user's borrow history.
func (h *Handler) GetUserBorrows(w http.ResponseWriter, r *http.Request) {
	id := lending.UserID(chi.URLParam(r, "id"))

	borrows, err := h.Service.UserBorrows(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load borrows", err)
		return
	}

	today := lending.Today()
	dtos := make([]BorrowDTO, len(borrows))
	for i, b := range borrows {
		dtos[i] = toBorrowDTO(b, today)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetUserReservations returns the user's reservation history.
func (h *Handler) GetUserReservations(w http.ResponseWriter, r *http.Request) {
	id := lending.UserID(chi.URLParam(r, "id"))

	reservations, err := h.Service.UserReservations(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load reservations", err)
		return
	}

	dtos := make([]ReservationDTO, len(reservations))
	for i, res := range reservations {
		dtos[i] = toReservationDTO(res)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// BOOK HANDLERS
// =============================================================================

// ListBooks returns all inventory rows.
func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	inventory, err := h.Store.ListInventory(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list inventory", err)
		return
	}

	dtos := make([]InventoryDTO, len(inventory))
	for i, inv := range inventory {
		dtos[i] = toInventoryDTO(inv)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RegisterBook registers a book with the engine.
func (h *Handler) RegisterBook(w http.ResponseWriter, r *http.Request) {
	var req RegisterBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.BookID == "" || req.TotalCopies == 0 {
		writeError(w, http.StatusBadRequest, "book_id and a positive total_copies are required", nil)
		return
	}

	bookID := lending.BookID(req.BookID)
	if err := h.Service.Inventory().RegisterBook(r.Context(), bookID, req.TotalCopies); err != nil {
		writeDomainError(w, err)
		return
	}

	inv, err := h.Service.Inventory().Inventory(r.Context(), bookID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInventoryDTO(*inv))
}

// GetBook returns inventory counts for a book.
func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	bookID := lending.BookID(chi.URLParam(r, "id"))

	inv, err := h.Service.Inventory().Inventory(r.Context(), bookID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInventoryDTO(*inv))
}

// ChangeCopies adjusts the total copy count for a book.
func (h *Handler) ChangeCopies(w http.ResponseWriter, r *http.Request) {
	bookID := lending.BookID(chi.URLParam(r, "id"))

	var req ChangeCopiesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Service.ChangeTotalCopies(r.Context(), bookID, req.Delta); err != nil {
		writeDomainError(w, err)
		return
	}

	inv, err := h.Service.Inventory().Inventory(r.Context(), bookID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInventoryDTO(*inv))
}

// GetForecast returns the availability forecast for a book.
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	bookID := lending.BookID(chi.URLParam(r, "id"))

	forecast, err := h.Service.GetForecast(r.Context(), bookID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ForecastDTO{
		BookID:            string(forecast.BookID),
		TotalCopies:       forecast.TotalCopies,
		AvailableCopies:   forecast.AvailableCopies,
		NextAvailableDate: forecast.NextAvailableDate.String(),
		QueueLength:       forecast.QueueLength,
	})
}

// GetCalendar returns day-by-day availability for a book.
// Query params: from, to (YYYY-MM-DD). Defaults to the next 30 days.
func (h *Handler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	bookID := lending.BookID(chi.URLParam(r, "id"))

	today := lending.Today()
	from, to := today, today.AddDays(30)

	if v := r.URL.Query().Get("from"); v != "" {
		d, err := lending.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
			return
		}
		from = d
	}
	if v := r.URL.Query().Get("to"); v != "" {
		d, err := lending.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
			return
		}
		to = d
	}

	days, err := h.Service.Calendar(r.Context(), bookID, from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]CalendarDayDTO, len(days))
	for i, d := range days {
		dtos[i] = CalendarDayDTO{Date: d.Date.String(), Status: string(d.Status)}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetQueue returns the open reservation queue for a book.
func (h *Handler) GetQueue(w http.ResponseWriter, r *http.Request) {
	bookID := lending.BookID(chi.URLParam(r, "id"))

	queue, err := h.Service.BookQueue(r.Context(), bookID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]ReservationDTO, len(queue))
	for i, res := range queue {
		dtos[i] = toReservationDTO(res)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// BORROW HANDLERS
// =============================================================================

// CreateBorrow admits a borrow request.
func (h *Handler) CreateBorrow(w http.ResponseWriter, r *http.Request) {
	var req BorrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == "" || req.BookID == "" {
		writeError(w, http.StatusBadRequest, "user_id and book_id are required", nil)
		return
	}

	borrow, err := h.Service.Borrow(r.Context(),
		lending.UserID(req.UserID), lending.BookID(req.BookID), req.Days)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBorrowDTO(*borrow, lending.Today()))
}

// RenewBorrow extends an active borrow's due date.
func (h *Handler) RenewBorrow(w http.ResponseWriter, r *http.Request) {
	id := lending.BorrowID(chi.URLParam(r, "id"))

	var req RenewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	borrow, err := h.Service.Renew(r.Context(), id, req.ExtraDays)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBorrowDTO(*borrow, lending.Today()))
}

// ReturnBorrow closes an active borrow and releases the copy.
func (h *Handler) ReturnBorrow(w http.ResponseWriter, r *http.Request) {
	id := lending.BorrowID(chi.URLParam(r, "id"))

	borrow, err := h.Service.Return(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBorrowDTO(*borrow, lending.Today()))
}

// CollectBorrow marks a held copy as picked up.
func (h *Handler) CollectBorrow(w http.ResponseWriter, r *http.Request) {
	id := lending.BorrowID(chi.URLParam(r, "id"))

	borrow, err := h.Service.Collect(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBorrowDTO(*borrow, lending.Today()))
}

// =============================================================================
// RESERVATION HANDLERS
// =============================================================================

// CreateReservation places the user in a book's queue.
func (h *Handler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var req ReserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == "" || req.BookID == "" {
		writeError(w, http.StatusBadRequest, "user_id and book_id are required", nil)
		return
	}

	pickup := lending.Today()
	if req.PickupStart != "" {
		d, err := lending.ParseDate(req.PickupStart)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid pickup_start date (use YYYY-MM-DD)", err)
			return
		}
		pickup = d
	}

	reservation, err := h.Service.Reserve(r.Context(),
		lending.UserID(req.UserID), lending.BookID(req.BookID), pickup, req.Days)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReservationDTO(*reservation))
}

// CancelReservation removes a reservation from the queue.
func (h *Handler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	id := lending.ReservationID(chi.URLParam(r, "id"))

	if err := h.Service.CancelReservation(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// TIER HANDLERS
// =============================================================================

// ListTiers returns the configured tier schedule.
func (h *Handler) ListTiers(w http.ResponseWriter, r *http.Request) {
	tiers := h.Service.Config.Tiers.Tiers
	dtos := make([]TierDTO, len(tiers))
	for i, t := range tiers {
		dtos[i] = toTierDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerSweep runs the hold-expiry and due-soon sweeps immediately.
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	expired, err := h.Service.ExpireHolds(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Hold expiry sweep failed", err)
		return
	}
	notified, err := h.Service.DueSoonScan(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Due-soon scan failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"holds_expired":    expired,
		"due_soon_emitted": notified,
	})
}

// ResetDatabase clears all data (dev only).
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case lending.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Record not found", err)
	case errors.Is(err, lending.ErrNotEligible):
		writeError(w, http.StatusUnprocessableEntity, "Not eligible", err)
	case lending.IsClientError(err):
		writeError(w, http.StatusConflict, "Request conflicts with current state", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
