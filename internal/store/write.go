package store

import (
	"context"
	"fmt"

	"github.com/roach88/deferplan/internal/ir"
)

// SavePlan stores a plan record and returns its content digest.
// Uses ON CONFLICT(digest) DO NOTHING for idempotency: saving a recording
// that is already stored leaves the original row, and its seq, in place.
func (s *Store) SavePlan(ctx context.Context, rec ir.PlanRecord) (string, error) {
	digest, err := ir.PlanDigest(rec)
	if err != nil {
		return "", fmt.Errorf("save plan %s: %w", rec.Name, err)
	}
	recordJSON, err := marshalRecord(rec)
	if err != nil {
		return "", fmt.Errorf("save plan %s: %w", rec.Name, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO plans
		(digest, plan_id, name, owner, record, ir_version)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(digest) DO NOTHING
	`,
		digest,
		int64(rec.ID),
		rec.Name,
		string(rec.Owner),
		recordJSON,
		ir.IRVersion,
	)
	if err != nil {
		return "", fmt.Errorf("save plan %s: %w", rec.Name, err)
	}
	return digest, nil
}

// WriteDispatch appends a dispatch record.
// Uses ON CONFLICT(seq) DO NOTHING: a sequence number is written once.
func (s *Store) WriteDispatch(ctx context.Context, rec ir.DispatchRecord) error {
	msgJSON, err := marshalMessage(rec.Message)
	if err != nil {
		return fmt.Errorf("write dispatch %d: %w", rec.Seq, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dispatches
		(seq, peer, kind, digest, message)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`,
		rec.Seq,
		string(rec.Peer),
		int(rec.Kind),
		rec.Digest,
		msgJSON,
	)
	if err != nil {
		return fmt.Errorf("write dispatch %d: %w", rec.Seq, err)
	}
	return nil
}
