package audit

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Entry is one gateway submission worth keeping a tamper-evident trail of.
type Entry struct {
	ID        string    `json:"id"`
	Channel   string    `json:"channel"`
	Actor     string    `json:"actor"`
	Procedure string    `json:"procedure"`
	AssetID   string    `json:"asset_id"`
	Args      []string  `json:"args,omitempty"`
	Result    string    `json:"result,omitempty"`
	At        time.Time `json:"at"`
}

// Recorder appends entries. *Ledger and Nop implement it.
type Recorder interface {
	Append(ctx context.Context, e Entry) error
}

// Verifier checks a channel's chain.
type Verifier interface {
	Verify(ctx context.Context, channel string, limit int) (int64, error)
}

// Nop discards entries; used when no database is configured.
type Nop struct{}

func (Nop) Append(context.Context, Entry) error { return nil }

func (Nop) Verify(context.Context, string, int) (int64, error) { return 0, nil }

// Ledger stores entries in audit_ledger with a hash chain per channel.
type Ledger struct {
	DB *sqlx.DB
}

// Append writes e chained to the channel's last hash.
// this_hash = SHA256(prev_hash_bytes || canonical json(e))
func (l *Ledger) Append(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	b = canonicalJSON(b)
	tx, err := l.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// serialize appends per channel so the chain never forks
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, e.Channel); err != nil {
		return fmt.Errorf("audit lock: %w", err)
	}
	var prev string
	err = tx.GetContext(ctx, &prev, `SELECT this_hash FROM audit_ledger WHERE channel=$1 ORDER BY seq DESC LIMIT 1`, e.Channel)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("audit prev hash: %w", err)
	}
	hs := chain(prev, b)
	if _, err := tx.ExecContext(ctx, `INSERT INTO audit_ledger(id, channel, actor, event_type, payload, prev_hash, this_hash) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		e.ID, e.Channel, e.Actor, e.Procedure, b, prev, hs); err != nil {
		return fmt.Errorf("audit insert: %w", err)
	}
	return tx.Commit()
}

// verifyPage is the number of rows Verify reads per query.
var verifyPage = 1000

// Verify walks the chain for channel from its first entry and returns the
// first broken seq, or 0 when the chain is intact. limit > 0 stops after that
// many entries; otherwise the whole chain is checked.
func (l *Ledger) Verify(ctx context.Context, channel string, limit int) (int64, error) {
	type row struct {
		Seq     int64  `db:"seq"`
		Prev    string `db:"prev_hash"`
		This    string `db:"this_hash"`
		Payload []byte `db:"payload"`
	}
	var (
		last    string
		after   int64
		checked int
	)
	for {
		page := verifyPage
		if limit > 0 && limit-checked < page {
			page = limit - checked
		}
		if page <= 0 {
			return 0, nil
		}
		rows := []row{}
		if err := l.DB.SelectContext(ctx, &rows, `SELECT seq, prev_hash, this_hash, payload FROM audit_ledger WHERE channel=$1 AND seq > $2 ORDER BY seq ASC LIMIT $3`, channel, after, page); err != nil {
			return 0, err
		}
		for _, r := range rows {
			if r.Prev != last || chain(last, canonicalJSON(r.Payload)) != r.This {
				return r.Seq, fmt.Errorf("hash mismatch at seq %d", r.Seq)
			}
			last, after = r.This, r.Seq
		}
		checked += len(rows)
		if len(rows) < page {
			return 0, nil
		}
	}
}

func chain(prev string, payload []byte) string {
	h := sha256.New()
	if prev != "" {
		pb, _ := hex.DecodeString(prev)
		h.Write(pb)
	}
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
