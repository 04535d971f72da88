package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"whereabouts/internal/domain/chat"
	"whereabouts/internal/domain/geo"
	"whereabouts/internal/domain/presence"
)

// Store persists the hub's write-behind records in PostgreSQL
type Store struct {
	db *pgxpool.Pool
}

// NewStore creates a store over an existing connection pool
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// UpsertUser saves the latest known profile for a user
func (s *Store) UpsertUser(ctx context.Context, u presence.User) error {
	query := `
		INSERT INTO users (id, display_name, status, last_seen)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE
		SET
			display_name = $2,
			status = $3,
			last_seen = now()
	`

	_, err := s.db.Exec(ctx, query, u.ID, u.DisplayName, string(u.Status))
	if err != nil {
		return fmt.Errorf("error upserting user: %w", err)
	}
	return nil
}

// InsertMessage appends a chat message to the durable log
func (s *Store) InsertMessage(ctx context.Context, m chat.Message) error {
	query := `
		INSERT INTO messages (id, sender_id, sender_name, body, kind, recipient_id, room_id, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := s.db.Exec(
		ctx,
		query,
		m.ID,
		m.SenderID,
		m.SenderDisplayName,
		m.Body,
		string(m.Kind),
		m.RecipientID,
		m.RoomID,
		m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("error inserting message: %w", err)
	}
	return nil
}

// InsertTrack appends a position sample to a user's track
func (s *Store) InsertTrack(ctx context.Context, userID string, pos geo.Position) error {
	query := `
		INSERT INTO tracks (user_id, lat, lng, accuracy, observed_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.db.Exec(ctx, query, userID, pos.Latitude, pos.Longitude, pos.Accuracy, pos.ObservedAt)
	if err != nil {
		return fmt.Errorf("error inserting track point: %w", err)
	}
	return nil
}
