package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"mailguard/internal/logqueue/models"
)

// BatchSender is the pgx surface the sink needs; *pgxpool.Pool satisfies it.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PostgresSink writes logs to validation_logs (migrations/003) with one
// pipelined batch per call. The batch runs as a single implicit transaction,
// so either every row lands or none does.
type PostgresSink struct {
	db BatchSender
}

func NewPostgresSink(db BatchSender) *PostgresSink {
	return &PostgresSink{db: db}
}

const insertValidationLog = `
	INSERT INTO validation_logs (
		id, tenant_id, email_hash, email_sealed, domain, checks, signals, score,
		recommendation, ip, asn, country, fingerprint_hash, device, latency_ms, created_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	ON CONFLICT (id) DO NOTHING`

func (s *PostgresSink) WriteBatch(ctx context.Context, logs []models.ValidationLog) error {
	if len(logs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, l := range logs {
		checks, err := json.Marshal(l.Checks)
		if err != nil {
			return fmt.Errorf("marshal checks: %w", err)
		}
		var device []byte
		if l.Device != nil {
			if device, err = json.Marshal(l.Device); err != nil {
				return fmt.Errorf("marshal device: %w", err)
			}
		}
		signals := make([]string, len(l.Signals))
		for i, sig := range l.Signals {
			signals[i] = string(sig)
		}
		asn := ""
		if l.ASN > 0 {
			asn = fmt.Sprintf("AS%d", l.ASN)
		}
		batch.Queue(insertValidationLog,
			l.ID, l.TenantID.String(), l.EmailHash, l.EmailSealed, l.Domain, checks, signals, l.Score,
			string(l.Recommendation), l.IP, asn, l.Country, l.FingerprintHash.String(), device, l.LatencyMs, l.CreatedAt,
		)
	}

	results := s.db.SendBatch(ctx, batch)
	for range logs {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("insert validation log: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close validation log batch: %w", err)
	}
	return nil
}
