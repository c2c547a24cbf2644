package clickhouse

import (
	"context"
	"fmt"
	"time"

	"token-radar/internal/domain"
	"token-radar/internal/observability"
	"token-radar/internal/storage"
)

// CycleStore implements storage.CycleStore using ClickHouse.
type CycleStore struct {
	conn *Conn
}

// NewCycleStore creates a new CycleStore.
func NewCycleStore(conn *Conn) *CycleStore {
	return &CycleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CycleStore = (*CycleStore)(nil)

// Record appends a finished cycle. Fails with storage.ErrDuplicateKey if the ID exists.
// MergeTree does not enforce uniqueness, so the check runs before the insert.
func (s *CycleStore) Record(ctx context.Context, run *domain.CycleRun) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("%w: cycle run without id", storage.ErrInvalidInput)
	}

	exists, err := s.exists(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	start := time.Now()
	err = s.insert(ctx, run)
	observability.RecordDBQuery("clickhouse", "record_cycle", time.Since(start).Seconds(), err)
	return err
}

func (s *CycleStore) insert(ctx context.Context, run *domain.CycleRun) error {
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO cycle_runs (
			id, class, budget, started_at, finished_at,
			pages, seen, created, updated, failed,
			stop_reason, success, error_kind, error
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	var success uint8
	if run.Success {
		success = 1
	}
	err = batch.Append(
		run.ID, string(run.Class), uint32(run.Budget), run.StartedAt.UTC(), run.FinishedAt.UTC(),
		uint32(run.Pages), uint32(run.Seen), uint32(run.Created), uint32(run.Updated), uint32(run.Failed),
		string(run.StopReason), success, string(run.ErrorKind), run.Error,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// Recent returns up to limit cycles, most recently started first.
func (s *CycleStore) Recent(ctx context.Context, limit int) ([]*domain.CycleRun, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := `
		SELECT id, class, budget, started_at, finished_at,
			pages, seen, created, updated, failed,
			stop_reason, success, error_kind, error
		FROM cycle_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`

	start := time.Now()
	rows, err := s.conn.Query(ctx, query, uint64(limit))
	observability.RecordDBQuery("clickhouse", "recent_cycles", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("query recent cycles: %w", err)
	}
	defer rows.Close()

	var runs []*domain.CycleRun
	for rows.Next() {
		var (
			r                                             domain.CycleRun
			class, stop, kind                             string
			budget, pages, seen, created, updated, failed uint32
			success                                       uint8
		)
		err := rows.Scan(
			&r.ID, &class, &budget, &r.StartedAt, &r.FinishedAt,
			&pages, &seen, &created, &updated, &failed,
			&stop, &success, &kind, &r.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("scan cycle row: %w", err)
		}

		r.Class = domain.TokenClass(class)
		r.Budget = int(budget)
		r.Pages = int(pages)
		r.Seen = int(seen)
		r.Created = int(created)
		r.Updated = int(updated)
		r.Failed = int(failed)
		r.StopReason = domain.StopReason(stop)
		r.Success = success == 1
		r.ErrorKind = domain.ErrorKind(kind)
		r.StartedAt = r.StartedAt.UTC()
		r.FinishedAt = r.FinishedAt.UTC()
		runs = append(runs, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycle rows: %w", err)
	}

	return runs, nil
}

// exists checks if a cycle with the given ID was recorded.
func (s *CycleStore) exists(ctx context.Context, id string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM cycle_runs WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
