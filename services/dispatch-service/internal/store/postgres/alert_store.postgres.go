// services/dispatch-service/internal/store/postgres/alert_store.postgres.go

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukens11-create/gud/services/dispatch-service/internal/domain"
	"github.com/lib/pq"
)

func (s *PostgresStore) ListExpiringDocuments(ctx context.Context, from, to time.Time) ([]domain.Document, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, owner_kind, owner_id, doc_type, expires_at, status
		FROM documents
		WHERE status = $1 AND expires_at > $2 AND expires_at < $3
		ORDER BY id`, string(domain.DocumentValid), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var (
			d       domain.Document
			expires sql.NullTime
		)
		if err := rows.Scan(&d.ID, &d.OwnerKind, &d.OwnerID, &d.Type, &expires, &d.Status); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		d.ExpiresAt = nullTime(&expires)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *PostgresStore) HasActiveAlert(ctx context.Context, key domain.AlertKey) (bool, error) {
	var exists bool
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM expiration_alerts
			WHERE subject_kind = $1 AND subject_id = $2 AND document_type = $3
			  AND status IN ('pending', 'sent')
		)`, string(key.SubjectKind), key.SubjectID, string(key.DocumentType)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check active alert: %w", err)
	}
	return exists, nil
}

// CreateAlert relies on the partial unique index over active alerts, so a
// concurrent run inserting the same key is a no-op rather than a duplicate.
func (s *PostgresStore) CreateAlert(ctx context.Context, a domain.ExpirationAlert) (bool, error) {
	res, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO expiration_alerts
		(id, subject_kind, subject_id, document_id, document_type, expires_at, status, days_remaining, created_at, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT DO NOTHING`,
		a.ID, string(a.SubjectKind), a.SubjectID, a.DocumentID, string(a.DocumentType),
		a.ExpiresAt, string(a.Status), a.DaysRemaining, a.CreatedAt, a.SentAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *PostgresStore) ListActiveAlerts(ctx context.Context) ([]domain.ExpirationAlert, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, subject_kind, subject_id, document_id, document_type, expires_at, status, days_remaining, created_at, sent_at
		FROM expiration_alerts
		WHERE status IN ('pending', 'sent')
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []domain.ExpirationAlert
	for rows.Next() {
		var (
			a      domain.ExpirationAlert
			sentAt sql.NullTime
		)
		err := rows.Scan(&a.ID, &a.SubjectKind, &a.SubjectID, &a.DocumentID, &a.DocumentType,
			&a.ExpiresAt, &a.Status, &a.DaysRemaining, &a.CreatedAt, &sentAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.SentAt = nullTime(&sentAt)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// UpdateDaysRemaining writes every value in one statement.
func (s *PostgresStore) UpdateDaysRemaining(ctx context.Context, days map[string]int) error {
	if len(days) == 0 {
		return nil
	}
	ids := make([]string, 0, len(days))
	values := make([]int64, 0, len(days))
	for id, d := range days {
		ids = append(ids, id)
		values = append(values, int64(d))
	}
	_, err := s.q(ctx).ExecContext(ctx, `
		UPDATE expiration_alerts AS a
		SET days_remaining = v.days
		FROM unnest($1::text[], $2::int[]) AS v(id, days)
		WHERE a.id = v.id`, pq.Array(ids), pq.Array(values))
	if err != nil {
		return fmt.Errorf("failed to update days remaining: %w", err)
	}
	return nil
}
