package store

import (
	"context"

	"spendy/internal/models"

	"github.com/google/uuid"
)

type AuditStore struct {
	db DB
}

func NewAuditStore(db DB) *AuditStore {
	return &AuditStore{db: db}
}

// Log records an action. An empty actorID is stored as NULL and marks a
// system action.
func (s *AuditStore) Log(ctx context.Context, tx Execer, actorID, action, entityType, entityID, data string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_user_id, action, entity_type, entity_id, data)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)
	`, uuid.NewString(), actorID, action, entityType, entityID, data)
	return err
}

func (s *AuditStore) ListByAction(ctx context.Context, action string, limit, offset int) ([]models.ReviewItem, error) {
	var items []models.ReviewItem
	err := s.db.SelectContext(ctx, &items, `
		SELECT id, actor_user_id, action, entity_type, entity_id, data, created_at
		FROM audit_logs
		WHERE action = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, action, limit, offset)
	if err != nil {
		return nil, err
	}
	return items, nil
}
