package domain

import (
	"time"

	"github.com/google/uuid"
)

// Seat is the static identity of a seat within a hall. Seats are created
// by the layout initializer and never mutated by the booking core.
type Seat struct {
	ID          int64
	HallNumber  int
	Row         int
	Number      int
	DisplayName string
}

// Screening is a read-only catalog view of a scheduled show.
type Screening struct {
	ID         int64
	MovieID    uuid.UUID
	MovieTitle string
	HallNumber int
	StartTime  time.Time
	EndTime    time.Time
	Price      float64
	TotalSeats int
}

type TicketStatus string

const (
	TicketActive   TicketStatus = "ACTIVE"
	TicketUsed     TicketStatus = "USED"
	TicketCanceled TicketStatus = "CANCELED"
)

// Ticket is the durable proof that a reservation reached CONFIRMED.
type Ticket struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	ScreeningID  int64
	SeatID       int64
	PurchaseTime time.Time
	Status       TicketStatus
}

func NewTicket(userID uuid.UUID, screeningID, seatID int64, now time.Time) Ticket {
	return Ticket{
		ID:           uuid.New(),
		UserID:       userID,
		ScreeningID:  screeningID,
		SeatID:       seatID,
		PurchaseTime: now,
		Status:       TicketActive,
	}
}

// BookingResult is the transient outcome of a booking workflow. It is
// either fully successful or fully failed; partial success is never
// reported.
type BookingResult struct {
	Success bool
	Message string
	Seats   []int64
	Tickets []Ticket
}

func Failure(message string) BookingResult {
	return BookingResult{Success: false, Message: message}
}

func HeldSeats(seats []int64) BookingResult {
	return BookingResult{Success: true, Message: "seats held", Seats: seats}
}

func Booked(tickets []Ticket) BookingResult {
	seats := make([]int64, len(tickets))
	for i, t := range tickets {
		seats[i] = t.SeatID
	}
	return BookingResult{Success: true, Message: "booking confirmed", Seats: seats, Tickets: tickets}
}
