package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/msandnes/invoiceagent/internal/model"
)

// PostgresStore persists session state in two tables: one row per session for
// the draft invoice, one row per voucher. Voucher payloads are stored as JSONB
// so the wire shape and the stored shape never diverge.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// Connect opens a pgx pool for the given DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	return pgxpool.NewWithConfig(ctx, cfg)
}

// NewPostgresStore constructs a store over an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the session tables if needed. Keeping the migration in
// code lets docker-compose bootstrap a fresh database.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS sessions (
	instance_id TEXT PRIMARY KEY,
	corrected_invoice JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS vouchers (
	instance_id TEXT NOT NULL,
	voucher_id TEXT NOT NULL,
	payload JSONB NOT NULL,
	pdf_key TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (instance_id, voucher_id)
);
CREATE INDEX IF NOT EXISTS idx_vouchers_instance ON vouchers(instance_id);`
	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (p *PostgresStore) Load(ctx context.Context, instanceID string) (*SessionRecord, error) {
	var invoiceJSON []byte
	err := p.pool.QueryRow(ctx,
		`SELECT corrected_invoice FROM sessions WHERE instance_id=$1`, instanceID,
	).Scan(&invoiceJSON)
	sessionMissing := errors.Is(err, pgx.ErrNoRows)
	if err != nil && !sessionMissing {
		return nil, fmt.Errorf("select session: %w", err)
	}

	rec := NewSessionRecord(instanceID)
	if len(invoiceJSON) > 0 {
		var inv model.Invoice
		if err := json.Unmarshal(invoiceJSON, &inv); err != nil {
			return nil, fmt.Errorf("decode invoice: %w", err)
		}
		rec.CorrectedInvoice = &inv
	}

	rows, err := p.pool.Query(ctx,
		`SELECT payload, COALESCE(pdf_key,'') FROM vouchers WHERE instance_id=$1`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("select vouchers: %w", err)
	}
	defer rows.Close()
	found := false
	for rows.Next() {
		var payload []byte
		var pdfKey string
		if err := rows.Scan(&payload, &pdfKey); err != nil {
			return nil, fmt.Errorf("scan voucher: %w", err)
		}
		var v model.Voucher
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, fmt.Errorf("decode voucher: %w", err)
		}
		v.PDFKey = pdfKey
		rec.Vouchers[v.VoucherID] = v
		found = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vouchers: %w", err)
	}
	if sessionMissing && !found {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (p *PostgresStore) SaveInvoice(ctx context.Context, instanceID string, inv model.Invoice) error {
	payload, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("encode invoice: %w", err)
	}
	now := time.Now().UTC()
	_, err = p.pool.Exec(ctx, `
		INSERT INTO sessions (instance_id, corrected_invoice, created_at, updated_at)
		VALUES ($1,$2,$3,$3)
		ON CONFLICT (instance_id)
		DO UPDATE SET corrected_invoice=EXCLUDED.corrected_invoice, updated_at=EXCLUDED.updated_at
	`, instanceID, payload, now)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (p *PostgresStore) PutVoucher(ctx context.Context, instanceID string, v model.Voucher) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode voucher: %w", err)
	}
	now := time.Now().UTC()
	_, err = p.pool.Exec(ctx, `
		INSERT INTO vouchers (instance_id, voucher_id, payload, created_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (instance_id, voucher_id)
		DO UPDATE SET payload=EXCLUDED.payload
	`, instanceID, v.VoucherID, payload, now)
	if err != nil {
		return fmt.Errorf("upsert voucher: %w", err)
	}
	return nil
}

func (p *PostgresStore) DeleteVoucher(ctx context.Context, instanceID, voucherID string) error {
	_, err := p.pool.Exec(ctx,
		`DELETE FROM vouchers WHERE instance_id=$1 AND voucher_id=$2`, instanceID, voucherID)
	if err != nil {
		return fmt.Errorf("delete voucher: %w", err)
	}
	return nil
}

func (p *PostgresStore) SetVoucherPDFKey(ctx context.Context, instanceID, voucherID, pdfKey string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE vouchers SET pdf_key=$1 WHERE instance_id=$2 AND voucher_id=$3`,
		pdfKey, instanceID, voucherID)
	if err != nil {
		return fmt.Errorf("update voucher pdf key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
