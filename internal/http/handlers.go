package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/filmhaus/movie-ticket-booking/internal/config"
	"github.com/filmhaus/movie-ticket-booking/internal/domain"
	"github.com/filmhaus/movie-ticket-booking/internal/idempotency"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// BookingService is the surface of the booking core the HTTP layer
// needs; satisfied by *booking.Orchestrator.
type BookingService interface {
	ReserveSeats(ctx context.Context, screeningID int64, seatIDs []int64, userID uuid.UUID) domain.BookingResult
	ConfirmBooking(ctx context.Context, screeningID int64, seatIDs []int64, userID uuid.UUID) domain.BookingResult
	CancelTicket(ctx context.Context, ticketID, userID uuid.UUID) error
	ListAvailableSeats(ctx context.Context, screeningID int64) ([]domain.SeatReservation, error)
	ListUserTickets(ctx context.Context, userID uuid.UUID) ([]domain.Ticket, error)
	ListUserActiveTickets(ctx context.Context, userID uuid.UUID) ([]domain.Ticket, error)
}

// IdempotencyStore replays stored responses for repeated POSTs;
// satisfied by *idempotency.Idempotency.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*idempotency.Response, error)
	Set(ctx context.Context, key string, resp idempotency.Response) error
}

type Handlers struct {
	cfg   *config.Config
	svc   BookingService
	idemp IdempotencyStore
}

func NewHandlers(cfg *config.Config, svc BookingService, idemp IdempotencyStore) *Handlers {
	return &Handlers{cfg: cfg, svc: svc, idemp: idemp}
}

type bookingRequest struct {
	SeatIDs []int64   `json:"seat_ids"`
	UserID  uuid.UUID `json:"user_id"`
}

type ticketView struct {
	ID           uuid.UUID `json:"id"`
	ScreeningID  int64     `json:"screening_id"`
	SeatID       int64     `json:"seat_id"`
	PurchaseTime string    `json:"purchase_time"`
	Status       string    `json:"status"`
}

type bookingResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Seats   []int64      `json:"seats,omitempty"`
	Tickets []ticketView `json:"tickets,omitempty"`
}

func toResponse(res domain.BookingResult) bookingResponse {
	out := bookingResponse{Success: res.Success, Message: res.Message, Seats: res.Seats}
	for _, t := range res.Tickets {
		out.Tickets = append(out.Tickets, ticketView{
			ID:           t.ID,
			ScreeningID:  t.ScreeningID,
			SeatID:       t.SeatID,
			PurchaseTime: t.PurchaseTime.Format(time.RFC3339),
			Status:       string(t.Status),
		})
	}
	return out
}

// ReserveSeats handles phase A: hold the requested seats.
func (h *Handlers) ReserveSeats(w http.ResponseWriter, r *http.Request) {
	h.bookingPhase(w, r, http.StatusCreated, h.svc.ReserveSeats)
}

// ConfirmBooking handles phase B: confirm held seats into tickets after
// payment has succeeded externally.
func (h *Handlers) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	h.bookingPhase(w, r, http.StatusOK, h.svc.ConfirmBooking)
}

func (h *Handlers) bookingPhase(w http.ResponseWriter, r *http.Request, okStatus int, phase func(context.Context, int64, []int64, uuid.UUID) domain.BookingResult) {
	key := r.Header.Get("Idempotency-Key")
	if existing, err := h.idemp.Get(r.Context(), key); err == nil && existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return
	}

	screeningID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid screening id", http.StatusBadRequest)
		return
	}

	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.SeatIDs) == 0 {
		http.Error(w, "seat_ids required", http.StatusBadRequest)
		return
	}

	res := phase(r.Context(), screeningID, req.SeatIDs, req.UserID)

	status := okStatus
	if !res.Success {
		status = http.StatusConflict
	}
	data, _ := json.Marshal(toResponse(res))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)

	h.idemp.Set(r.Context(), key, idempotency.Response{Status: status, Result: data})
}

func (h *Handlers) CancelTicket(w http.ResponseWriter, r *http.Request) {
	ticketID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid ticket id", http.StatusBadRequest)
		return
	}

	var req struct {
		UserID uuid.UUID `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = h.svc.CancelTicket(r.Context(), ticketID, req.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "ticket not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, domain.ErrInvalidInput) {
		http.Error(w, "ticket is not active", http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"canceled":true}`))
}

func (h *Handlers) ListAvailableSeats(w http.ResponseWriter, r *http.Request) {
	screeningID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid screening id", http.StatusBadRequest)
		return
	}

	seats, err := h.svc.ListAvailableSeats(r.Context(), screeningID)
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "screening not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	type seatView struct {
		SeatID int64 `json:"seat_id"`
	}
	out := make([]seatView, 0, len(seats))
	for _, s := range seats {
		out = append(out, seatView{SeatID: s.SeatID})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"screening_id": screeningID,
		"available":    out,
	})
}

func (h *Handlers) ListUserTickets(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	var tickets []domain.Ticket
	if r.URL.Query().Get("active") == "true" {
		tickets, err = h.svc.ListUserActiveTickets(r.Context(), userID)
	} else {
		tickets, err = h.svc.ListUserTickets(r.Context(), userID)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	views := make([]ticketView, 0, len(tickets))
	for _, t := range tickets {
		views = append(views, ticketView{
			ID:           t.ID,
			ScreeningID:  t.ScreeningID,
			SeatID:       t.SeatID,
			PurchaseTime: t.PurchaseTime.Format(time.RFC3339),
			Status:       string(t.Status),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"tickets": views})
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
