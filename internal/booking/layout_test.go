package booking

import (
	"context"
	"errors"
	"testing"

	"github.com/filmhaus/movie-ticket-booking/internal/domain"
)

func TestGenerateSeats(t *testing.T) {
	seats := GenerateSeats(3, 25)

	if len(seats) != 25 {
		t.Fatalf("len = %d, want 25", len(seats))
	}
	if seats[0].DisplayName != "A1" {
		t.Fatalf("first seat = %s, want A1", seats[0].DisplayName)
	}
	if seats[9].DisplayName != "A10" {
		t.Fatalf("tenth seat = %s, want A10", seats[9].DisplayName)
	}
	if seats[10].DisplayName != "B1" {
		t.Fatalf("eleventh seat = %s, want B1", seats[10].DisplayName)
	}
	if seats[24].DisplayName != "C5" {
		t.Fatalf("last seat = %s, want C5", seats[24].DisplayName)
	}
	if seats[24].ID != 25 {
		t.Fatalf("last seat ID = %d, want 25", seats[24].ID)
	}
	for _, s := range seats {
		if s.HallNumber != 3 {
			t.Fatalf("seat %d hall = %d, want 3", s.ID, s.HallNumber)
		}
	}
}

func TestInitializeScreening(t *testing.T) {
	store := newMemReservationStore()
	screening := domain.Screening{ID: 7, HallNumber: 1, TotalSeats: 12}

	seats, err := InitializeScreening(context.Background(), store, screening)
	if err != nil {
		t.Fatalf("InitializeScreening: %v", err)
	}
	if len(seats) != 12 {
		t.Fatalf("seats = %d, want 12", len(seats))
	}

	all, err := store.ListByScreening(context.Background(), 7)
	if err != nil {
		t.Fatalf("ListByScreening: %v", err)
	}
	if len(all) != 12 {
		t.Fatalf("reservation rows = %d, want 12", len(all))
	}
	for _, res := range all {
		if res.State != domain.SeatAvailable {
			t.Fatalf("seat %d state = %s, want AVAILABLE", res.SeatID, res.State)
		}
	}
}

func TestInitializeScreeningReplacesExistingRows(t *testing.T) {
	store := newMemReservationStore()
	store.seed(7, 30)

	screening := domain.Screening{ID: 7, HallNumber: 1, TotalSeats: 10}
	if _, err := InitializeScreening(context.Background(), store, screening); err != nil {
		t.Fatalf("InitializeScreening: %v", err)
	}

	all, _ := store.ListByScreening(context.Background(), 7)
	if len(all) != 10 {
		t.Fatalf("reservation rows = %d, want 10 after re-init", len(all))
	}
}

func TestInitializeScreeningRejectsEmptyHall(t *testing.T) {
	store := newMemReservationStore()
	screening := domain.Screening{ID: 7, HallNumber: 1, TotalSeats: 0}

	if _, err := InitializeScreening(context.Background(), store, screening); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("InitializeScreening = %v, want ErrInvalidInput", err)
	}
}
