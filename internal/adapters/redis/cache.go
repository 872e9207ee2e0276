package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/filmhaus/movie-ticket-booking/internal/domain"
	"github.com/redis/go-redis/v9"
)

const seatCacheTTL = 30 * time.Second

// Cache fronts the available-seats view for a screening. Entries are
// short-lived and invalidated on every reservation transition, so a
// stale read only ever lasts until the next write or the TTL.
type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

func seatsKey(screeningID int64) string {
	return "seats:" + strconv.FormatInt(screeningID, 10)
}

func (c *Cache) GetSeats(ctx context.Context, screeningID int64) ([]domain.SeatReservation, bool, error) {
	val, err := c.client.Get(ctx, seatsKey(screeningID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var seats []domain.SeatReservation
	if err := json.Unmarshal(val, &seats); err != nil {
		return nil, false, err
	}
	return seats, true, nil
}

func (c *Cache) SetSeats(ctx context.Context, screeningID int64, seats []domain.SeatReservation) error {
	data, err := json.Marshal(seats)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, seatsKey(screeningID), data, seatCacheTTL).Err()
}

func (c *Cache) Invalidate(ctx context.Context, screeningID int64) error {
	return c.client.Del(ctx, seatsKey(screeningID)).Err()
}
