// Package checkpoint persists full snapshots of live accumulators plus the
// set of chunks already folded in, so long verification runs can resume
// without reprocessing. Snapshots are versioned and integrity-checked; pickled
// ad-hoc state is deliberately avoided.
package checkpoint

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/lox/gridverify/internal/verify"
)

// SchemaVersion is bumped whenever the snapshot layout changes; loading an
// unknown version requires an explicit migration, never silent acceptance.
const SchemaVersion = 1

// ErrCheckpointCorrupt indicates an unreadable or invalid snapshot. Resume
// fails; a from-scratch run remains possible but only as an explicit caller
// choice, never automatic.
var ErrCheckpointCorrupt = errors.New("checkpoint: snapshot failed integrity validation")

// Snapshot is the persisted layout: every live accumulator and the identifiers
// of all chunks whose data they already contain, no more and no less.
type Snapshot struct {
	SchemaVersion     int                   `json:"schema_version"`
	Sequence          int64                 `json:"sequence_number"`
	CreatedAt         time.Time             `json:"created_at"`
	CompletedChunkIDs []string              `json:"completed_chunk_ids"`
	Accumulators      []*verify.Accumulator `json:"accumulators"`
}

// Restore rebuilds the live accumulator set and completed-chunk set.
func (sn *Snapshot) Restore() (verify.Set, map[string]struct{}) {
	set := make(verify.Set, len(sn.Accumulators))
	for _, acc := range sn.Accumulators {
		set[acc.ID] = acc
	}
	completed := make(map[string]struct{}, len(sn.CompletedChunkIDs))
	for _, id := range sn.CompletedChunkIDs {
		completed[id] = struct{}{}
	}
	return set, completed
}

// Store owns the checkpoint database exclusively: snapshots are read on
// resume and replaced wholesale on save, never partially mutated.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS checkpoints (
    sequence INTEGER PRIMARY KEY,
    schema_version INTEGER NOT NULL,
    created_at DATETIME NOT NULL,
    payload BLOB NOT NULL,
    checksum TEXT NOT NULL
);
`)
	if err != nil {
		return fmt.Errorf("create checkpoints table: %w", err)
	}
	return nil
}

// Save atomically replaces the stored snapshot with the given accumulator set
// and completed-chunk set, tagged with the next sequence number. The caller
// must guarantee no Update is in flight against the accumulators being
// snapshotted (quiesce workers first).
func (s *Store) Save(ctx context.Context, set verify.Set, completed map[string]struct{}) (int64, error) {
	var prev sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(sequence) FROM checkpoints`).Scan(&prev); err != nil {
		return 0, fmt.Errorf("read sequence: %w", err)
	}
	seq := prev.Int64 + 1

	sn := Snapshot{
		SchemaVersion: SchemaVersion,
		Sequence:      seq,
		CreatedAt:     time.Now().UTC(),
	}
	for id := range completed {
		sn.CompletedChunkIDs = append(sn.CompletedChunkIDs, id)
	}
	sort.Strings(sn.CompletedChunkIDs)
	for _, acc := range set {
		sn.Accumulators = append(sn.Accumulators, acc)
	}
	sort.Slice(sn.Accumulators, func(i, j int) bool {
		return snapshotKey(sn.Accumulators[i].ID) < snapshotKey(sn.Accumulators[j].ID)
	})

	payload, err := json.Marshal(sn)
	if err != nil {
		return 0, fmt.Errorf("marshal snapshot: %w", err)
	}
	sum := sha256.Sum256(payload)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM checkpoints`); err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("clear previous snapshot: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO checkpoints (sequence, schema_version, created_at, payload, checksum) VALUES (?, ?, ?, ?, ?)`,
		seq, SchemaVersion, sn.CreatedAt, payload, hex.EncodeToString(sum[:]),
	); err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit snapshot: %w", err)
	}
	return seq, nil
}

// Load returns the most recent snapshot, or (nil, nil) when no checkpoint
// exists. A snapshot that fails checksum or schema validation yields
// ErrCheckpointCorrupt rather than silently resuming from empty state.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT schema_version, payload, checksum
		FROM checkpoints
		ORDER BY sequence DESC
		LIMIT 1
	`)

	var version int
	var payload []byte
	var checksum string
	err := row.Scan(&version, &payload, &checksum)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	sum := sha256.Sum256(payload)
	if hex.EncodeToString(sum[:]) != checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCheckpointCorrupt)
	}
	if version != SchemaVersion {
		// Future schema versions need an explicit migration; there is only v1
		// so anything else is unreadable.
		return nil, fmt.Errorf("%w: unsupported schema version %d", ErrCheckpointCorrupt, version)
	}

	var sn Snapshot
	if err := json.Unmarshal(payload, &sn); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCheckpointCorrupt, err)
	}
	return &sn, nil
}

func snapshotKey(id verify.Identity) string {
	return fmt.Sprintf("%d|%s|%s", id.Kind, id.Variable, id.EntityKey())
}
