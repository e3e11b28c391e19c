package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"mailguard/internal/fingerprint/models"
	id "mailguard/pkg/domain"
	"mailguard/pkg/platform/tx"
	"mailguard/pkg/requestcontext"
)

// PostgresStore keeps records in device_fingerprints (migrations/002).
// Record locks the row with SELECT ... FOR UPDATE for the whole update.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectFingerprint = `
	SELECT hash, emails_used, projects_seen, signup_count, first_seen, last_seen, last_ip
	FROM device_fingerprints
	WHERE hash = $1`

func (s *PostgresStore) Check(ctx context.Context, hash id.FingerprintHash, email string) (models.DeviceData, error) {
	record, err := scanRecord(tx.QuerierFrom(ctx, s.db).QueryRowContext(ctx, selectFingerprint, hash.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return models.UnknownDevice(), nil
	}
	if err != nil {
		return models.DeviceData{}, fmt.Errorf("load fingerprint: %w", err)
	}
	return models.ToDeviceData(record, email), nil
}

func (s *PostgresStore) Record(ctx context.Context, hash id.FingerprintHash, email, ip string, tenantID id.TenantID) error {
	now := requestcontext.Now(ctx).UTC()
	return tx.RunInTx(ctx, s.db, func(ctx context.Context) error {
		q := tx.QuerierFrom(ctx, s.db)

		record, err := scanRecord(q.QueryRowContext(ctx, selectFingerprint+" FOR UPDATE", hash.String()))
		if errors.Is(err, sql.ErrNoRows) {
			created := models.NewRecord(hash, email, ip, tenantID, now)
			res, err := q.ExecContext(ctx, `
				INSERT INTO device_fingerprints
					(hash, emails_used, projects_seen, signup_count, first_seen, last_seen, last_ip)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (hash) DO NOTHING`,
				hash.String(), pq.Array(created.EmailsUsed), pq.Array(created.ProjectsSeen),
				created.SignupCount, created.FirstSeen, created.LastSeen, created.LastIP,
			)
			if err != nil {
				return fmt.Errorf("insert fingerprint: %w", err)
			}
			if n, _ := res.RowsAffected(); n == 1 {
				return nil
			}
			// Another signup created the row first; lock it and fold into it.
			record, err = scanRecord(q.QueryRowContext(ctx, selectFingerprint+" FOR UPDATE", hash.String()))
			if err != nil {
				return fmt.Errorf("lock fingerprint: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("lock fingerprint: %w", err)
		}

		record.ApplySignup(email, ip, tenantID, now)
		_, err = q.ExecContext(ctx, `
			UPDATE device_fingerprints
			SET emails_used = $2, projects_seen = $3, signup_count = $4, last_seen = $5, last_ip = $6
			WHERE hash = $1`,
			hash.String(), pq.Array(record.EmailsUsed), pq.Array(record.ProjectsSeen),
			record.SignupCount, record.LastSeen, record.LastIP,
		)
		if err != nil {
			return fmt.Errorf("update fingerprint: %w", err)
		}
		return nil
	})
}

func scanRecord(row *sql.Row) (*models.Record, error) {
	var (
		record models.Record
		hash   string
	)
	err := row.Scan(&hash, pq.Array(&record.EmailsUsed), pq.Array(&record.ProjectsSeen),
		&record.SignupCount, &record.FirstSeen, &record.LastSeen, &record.LastIP)
	if err != nil {
		return nil, err
	}
	record.Hash = id.FingerprintHash(hash)
	return &record, nil
}
