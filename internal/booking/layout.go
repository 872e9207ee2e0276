package booking

import (
	"context"
	"fmt"

	"github.com/filmhaus/movie-ticket-booking/internal/domain"
)

const seatsPerRow = 10

// GenerateSeats lays out a hall's seats for a screening: rows of ten,
// named A1, A2, ... Seat IDs are local to the screening, starting at 1.
func GenerateSeats(hallNumber, totalSeats int) []domain.Seat {
	seats := make([]domain.Seat, 0, totalSeats)
	for i := 0; i < totalSeats; i++ {
		row := i / seatsPerRow
		number := i%seatsPerRow + 1
		seats = append(seats, domain.Seat{
			ID:          int64(i + 1),
			HallNumber:  hallNumber,
			Row:         row + 1,
			Number:      number,
			DisplayName: fmt.Sprintf("%c%d", rune('A'+row), number),
		})
	}
	return seats
}

// InitializeScreening wipes and recreates the reservation rows for a
// screening, one AVAILABLE row per seat. It runs once per screening
// creation or edit, before any reserve call.
func InitializeScreening(ctx context.Context, store ReservationStore, screening domain.Screening) ([]domain.Seat, error) {
	if screening.TotalSeats <= 0 {
		return nil, domain.ErrInvalidInput
	}
	if err := store.DeleteAllByScreening(ctx, screening.ID); err != nil {
		return nil, err
	}
	seats := GenerateSeats(screening.HallNumber, screening.TotalSeats)
	if err := store.InitScreening(ctx, screening.ID, seats); err != nil {
		return nil, err
	}
	return seats, nil
}
