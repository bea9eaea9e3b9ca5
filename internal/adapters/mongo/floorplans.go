package mongo

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/floorplan-seating/internal/domain"
	"github.com/robertarktes/floorplan-seating/internal/observability"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type FloorPlanRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewFloorPlanRepository(db *mongo.Database, logger observability.Logger) *FloorPlanRepository {
	return &FloorPlanRepository{
		coll:   db.Collection("floor_plans"),
		logger: logger,
	}
}

type FloorPlanDoc struct {
	ID        string    `bson:"_id"`
	EventID   string    `bson:"event_id"`
	Name      string    `bson:"name"`
	Layout    LayoutDoc `bson:"layout"`
	CreatedAt time.Time `bson:"created_at"`
}

// LayoutDoc stores prices as decimal strings so they round-trip exactly.
type LayoutDoc struct {
	HallName      string  `bson:"hall_name"`
	Description   string  `bson:"description,omitempty"`
	GuestCount    int     `bson:"guest_count"`
	SeatsPerTable int     `bson:"seats_per_table"`
	TableType     string  `bson:"table_type"`
	HallLength    float64 `bson:"hall_length"`
	HallWidth     float64 `bson:"hall_width"`
	VIPSeats      int     `bson:"vip_seats"`
	PremiumSeats  int     `bson:"premium_seats"`
	GeneralSeats  int     `bson:"general_seats"`
	VIPPrice      string  `bson:"vip_price"`
	PremiumPrice  string  `bson:"premium_price"`
	GeneralPrice  string  `bson:"general_price"`
}

func toDoc(p domain.FloorPlan) FloorPlanDoc {
	l := p.Layout
	return FloorPlanDoc{
		ID:      p.ID.String(),
		EventID: p.EventID.String(),
		Name:    p.Name,
		Layout: LayoutDoc{
			HallName:      l.HallName,
			Description:   l.Description,
			GuestCount:    l.GuestCount,
			SeatsPerTable: l.SeatsPerTable,
			TableType:     l.TableType,
			HallLength:    l.HallLength,
			HallWidth:     l.HallWidth,
			VIPSeats:      l.VIPSeats,
			PremiumSeats:  l.PremiumSeats,
			GeneralSeats:  l.GeneralSeats,
			VIPPrice:      l.VIPPrice.String(),
			PremiumPrice:  l.PremiumPrice.String(),
			GeneralPrice:  l.GeneralPrice.String(),
		},
		CreatedAt: p.CreatedAt,
	}
}

func fromDoc(d FloorPlanDoc) (domain.FloorPlan, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return domain.FloorPlan{}, errors.Wrap(err, "floor plan id")
	}
	eventID, err := uuid.Parse(d.EventID)
	if err != nil {
		return domain.FloorPlan{}, errors.Wrap(err, "floor plan event id")
	}
	price := func(s string) decimal.Decimal {
		v, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero
		}
		return v
	}
	l := d.Layout
	return domain.FloorPlan{
		ID:      id,
		EventID: eventID,
		Name:    d.Name,
		Layout: domain.Layout{
			HallName:      l.HallName,
			Description:   l.Description,
			GuestCount:    l.GuestCount,
			SeatsPerTable: l.SeatsPerTable,
			TableType:     l.TableType,
			HallLength:    l.HallLength,
			HallWidth:     l.HallWidth,
			VIPSeats:      l.VIPSeats,
			PremiumSeats:  l.PremiumSeats,
			GeneralSeats:  l.GeneralSeats,
			VIPPrice:      price(l.VIPPrice),
			PremiumPrice:  price(l.PremiumPrice),
			GeneralPrice:  price(l.GeneralPrice),
		},
		CreatedAt: d.CreatedAt.UTC(),
	}, nil
}

func (r *FloorPlanRepository) SaveFloorPlan(ctx context.Context, plan domain.FloorPlan) error {
	_, err := r.coll.InsertOne(ctx, toDoc(plan))
	if err != nil {
		r.logger.Error("failed to save floor plan", err)
		return err
	}
	return nil
}

func (r *FloorPlanRepository) ListFloorPlans(ctx context.Context, eventID uuid.UUID) ([]domain.FloorPlan, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := r.coll.Find(ctx, bson.M{"event_id": eventID.String()}, opts)
	if err != nil {
		r.logger.Error("failed to list floor plans", err)
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []FloorPlanDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	plans := make([]domain.FloorPlan, 0, len(docs))
	for _, d := range docs {
		p, err := fromDoc(d)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, nil
}

func (r *FloorPlanRepository) LatestFloorPlan(ctx context.Context, eventID uuid.UUID) (*domain.FloorPlan, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	var doc FloorPlanDoc
	err := r.coll.FindOne(ctx, bson.M{"event_id": eventID.String()}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p, err := fromDoc(doc)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// EnsureIndexes creates the event/created_at index used by the list and
// latest queries.
func (r *FloorPlanRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "event_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return err
}

func Connect(ctx context.Context, uri, database string) (*mongo.Client, *mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, errors.Wrap(err, "connect mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, nil, errors.Wrap(err, "ping mongo")
	}
	return client, client.Database(database), nil
}
