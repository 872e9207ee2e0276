package mongo

import (
	"context"
	"time"

	"github.com/filmhaus/movie-ticket-booking/internal/domain"
	"github.com/filmhaus/movie-ticket-booking/internal/observability"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// CatalogRepository is the read side of the movie/screening catalog.
// Catalog management lives outside the booking core; the core only
// validates existence and reads seat counts.
type CatalogRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewCatalogRepository(db *mongo.Database, logger observability.Logger) *CatalogRepository {
	return &CatalogRepository{
		coll:   db.Collection("screenings"),
		logger: logger,
	}
}

type ScreeningDoc struct {
	ID         int64     `bson:"_id"`
	MovieID    uuid.UUID `bson:"movie_id"`
	MovieTitle string    `bson:"movie_title"`
	HallNumber int       `bson:"hall_number"`
	StartTime  time.Time `bson:"start_time"`
	EndTime    time.Time `bson:"end_time"`
	Price      float64   `bson:"price"`
	TotalSeats int       `bson:"total_seats"`
	CreatedAt  time.Time `bson:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

func (c *CatalogRepository) GetScreening(ctx context.Context, id int64) (domain.Screening, error) {
	var doc ScreeningDoc
	err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return domain.Screening{}, domain.ErrNotFound
	}
	if err != nil {
		c.logger.WithError(err).Error("failed to get screening")
		return domain.Screening{}, err
	}
	return domain.Screening{
		ID:         doc.ID,
		MovieID:    doc.MovieID,
		MovieTitle: doc.MovieTitle,
		HallNumber: doc.HallNumber,
		StartTime:  doc.StartTime,
		EndTime:    doc.EndTime,
		Price:      doc.Price,
		TotalSeats: doc.TotalSeats,
	}, nil
}

func (c *CatalogRepository) CreateScreening(ctx context.Context, doc ScreeningDoc) error {
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = time.Now()
	_, err := c.coll.InsertOne(ctx, doc)
	if err != nil {
		c.logger.WithError(err).Error("failed to create screening")
		return err
	}
	return nil
}

func (c *CatalogRepository) DeleteScreening(ctx context.Context, id int64) error {
	_, err := c.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		c.logger.WithError(err).Error("failed to delete screening")
		return err
	}
	return nil
}
