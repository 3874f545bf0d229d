package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/deferplan/internal/ir"
)

// LoadPlan returns the most recently saved plan with the given name.
// Returns sql.ErrNoRows if not found.
func (s *Store) LoadPlan(ctx context.Context, name string) (ir.StoredPlan, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, digest, record
		FROM plans
		WHERE name = ?
		ORDER BY seq DESC
		LIMIT 1
	`, name)
	return scanPlan(row)
}

// LoadPlanByDigest returns the plan with the given content digest.
// Returns sql.ErrNoRows if not found.
func (s *Store) LoadPlanByDigest(ctx context.Context, digest string) (ir.StoredPlan, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, digest, record
		FROM plans
		WHERE digest = ?
	`, digest)
	return scanPlan(row)
}

// ListPlans returns every stored plan ordered by seq ASC.
// Returns an empty slice (not nil) when the store holds no plans.
func (s *Store) ListPlans(ctx context.Context) ([]ir.StoredPlan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, digest, record
		FROM plans
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	plans := []ir.StoredPlan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plans: %w", err)
	}
	return plans, nil
}

// ReadDispatches returns the dispatch records of one peer ordered by seq
// ASC. An empty peer returns the records of every peer.
func (s *Store) ReadDispatches(ctx context.Context, peer ir.PeerID) ([]ir.DispatchRecord, error) {
	query := `
		SELECT seq, peer, kind, digest, message
		FROM dispatches
		WHERE peer = ?
		ORDER BY seq ASC
	`
	args := []any{string(peer)}
	if peer == "" {
		query = `
		SELECT seq, peer, kind, digest, message
		FROM dispatches
		ORDER BY seq ASC
	`
		args = nil
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query dispatches: %w", err)
	}
	defer rows.Close()

	records := []ir.DispatchRecord{}
	for rows.Next() {
		rec, err := scanDispatch(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dispatches: %w", err)
	}
	return records, nil
}

// LastDispatchSeq returns the highest stored sequence number, or 0.
// A network clock resumed with peer.NewClockAt(LastDispatchSeq) continues
// the journal without gaps or reuse.
func (s *Store) LastDispatchSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM dispatches`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("query last dispatch seq: %w", err)
	}
	return seq.Int64, nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPlan(row scanner) (ir.StoredPlan, error) {
	var (
		p          ir.StoredPlan
		recordJSON string
	)
	if err := row.Scan(&p.Seq, &p.Digest, &recordJSON); err != nil {
		if err == sql.ErrNoRows {
			return ir.StoredPlan{}, err
		}
		return ir.StoredPlan{}, fmt.Errorf("scan plan: %w", err)
	}
	rec, err := unmarshalRecord(recordJSON)
	if err != nil {
		return ir.StoredPlan{}, fmt.Errorf("plan seq %d: %w", p.Seq, err)
	}
	p.Record = rec
	return p, nil
}

func scanDispatch(row scanner) (ir.DispatchRecord, error) {
	var (
		rec     ir.DispatchRecord
		peer    string
		kind    int
		msgJSON string
	)
	if err := row.Scan(&rec.Seq, &peer, &kind, &rec.Digest, &msgJSON); err != nil {
		return ir.DispatchRecord{}, fmt.Errorf("scan dispatch: %w", err)
	}
	m, err := unmarshalMessage(msgJSON)
	if err != nil {
		return ir.DispatchRecord{}, fmt.Errorf("dispatch seq %d: %w", rec.Seq, err)
	}
	rec.Peer = ir.PeerID(peer)
	rec.Kind = ir.MsgKind(kind)
	rec.Message = m
	return rec, nil
}
