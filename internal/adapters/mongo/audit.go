package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/floorplan-seating/internal/domain"
	"github.com/robertarktes/floorplan-seating/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID        string    `bson:"_id"`
	Action    string    `bson:"action"`
	EventID   string    `bson:"event_id"`
	SessionID string    `bson:"session_id,omitempty"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) LogEvent(ctx context.Context, action string, eventID uuid.UUID, sessionID string, data map[string]interface{}) error {
	log := AuditLog{
		ID:        uuid.NewString(),
		Action:    action,
		EventID:   eventID.String(),
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Data:      bson.M(data),
	}
	_, err := a.coll.InsertOne(ctx, log)
	if err != nil {
		a.logger.Error("failed to insert audit log", err)
		return err
	}
	return nil
}

func (a *AuditLogger) LogSeatEvent(ctx context.Context, ev domain.SeatEvent) error {
	seats := make([]string, len(ev.SeatIDs))
	for i, id := range ev.SeatIDs {
		seats[i] = id.String()
	}
	data := map[string]interface{}{
		"seat_ids": seats,
		"at":       ev.At.Format(time.RFC3339),
	}
	if ev.Count > 0 {
		data["count"] = ev.Count
	}
	return a.LogEvent(ctx, ev.Type, ev.EventID, ev.SessionID, data)
}
