package syncqueue

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/zerkella/blobmux/pkg/backend"
	"github.com/zerkella/blobmux/pkg/muxid"
	"github.com/zerkella/blobmux/pkg/util"
)

func nanosToTime(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

// SQLStore is a database/sql-backed Store, grounded on the original sync
// queue's blobstore_sync_queue table (spec.md §6) and its
// GetRangeOfEntries/GetRangeOfEntriesLike queries. Any driver registered
// with database/sql works; cmd/blobmuxd wires it up with lib/pq against
// Postgres.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps an already-opened *sql.DB. The caller owns the
// connection pool's lifetime.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// InsertBatch implements Store. The whole batch runs inside one
// transaction so a partial failure never leaves some entries durable and
// others not, per spec.md §4.5.
func (s *SQLStore) InsertBatch(ctx context.Context, entries []Entry) ([]Entry, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, util.StatusWrap(err, "syncqueue: begin insert transaction")
	}
	defer tx.Rollback()

	const insert = `
		INSERT INTO blobstore_sync_queue
			(blobstore_key, blobstore_id, multiplex_id, add_timestamp, operation_key)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return nil, util.StatusWrap(err, "syncqueue: prepare insert")
	}
	defer stmt.Close()

	inserted := make([]Entry, len(entries))
	for i, e := range entries {
		var id int64
		row := stmt.QueryRowContext(ctx,
			e.BlobstoreKey, int32(e.BackendID), int32(e.MultiplexID), e.AddTimestampNanos(), e.OperationKey.Bytes())
		if err := row.Scan(&id); err != nil {
			return nil, util.StatusWrapf(err, "syncqueue: insert entry for key %q", e.BlobstoreKey)
		}
		e.ID = &id
		inserted[i] = e
	}

	if err := tx.Commit(); err != nil {
		return nil, util.StatusWrap(err, "syncqueue: commit insert transaction")
	}
	return inserted, nil
}

// Iter implements Store with the two-step closed-set query the original
// GetRangeOfEntries/GetRangeOfEntriesLike perform: first select up to
// q.Limit distinct operation keys, then select every row whose operation
// key is in that set.
func (s *SQLStore) Iter(ctx context.Context, q IterQuery) ([]Entry, error) {
	var keyClause string
	args := []interface{}{int32(q.MultiplexID), q.OlderThan.UnixNano()}
	if q.KeyLike != nil {
		keyClause = "AND blobstore_key LIKE $3"
		args = append(args, *q.KeyLike, q.Limit)
	} else {
		args = append(args, q.Limit)
	}
	limitPos := len(args)

	selectKeys := fmt.Sprintf(`
		SELECT operation_key
		FROM blobstore_sync_queue
		WHERE multiplex_id = $1 AND add_timestamp <= $2 %s
		GROUP BY operation_key
		ORDER BY MIN(add_timestamp) ASC
		LIMIT $%d`, keyClause, limitPos)

	rows, err := s.db.QueryContext(ctx, selectKeys, args...)
	if err != nil {
		return nil, util.StatusWrap(err, "syncqueue: select distinct operation keys")
	}
	var opKeys [][]byte
	for rows.Next() {
		var k []byte
		if err := rows.Scan(&k); err != nil {
			rows.Close()
			return nil, util.StatusWrap(err, "syncqueue: scan operation key")
		}
		opKeys = append(opKeys, k)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(opKeys) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(opKeys))
	closureArgs := make([]interface{}, 0, len(opKeys)+1)
	closureArgs = append(closureArgs, int32(q.MultiplexID))
	for i, k := range opKeys {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		closureArgs = append(closureArgs, k)
	}
	selectClosure := fmt.Sprintf(`
		SELECT blobstore_key, blobstore_id, multiplex_id, add_timestamp, operation_key, id
		FROM blobstore_sync_queue
		WHERE multiplex_id = $1 AND operation_key IN (%s)
		ORDER BY add_timestamp ASC`, strings.Join(placeholders, ", "))

	return s.scanEntries(ctx, selectClosure, closureArgs...)
}

// Delete implements Store.
func (s *SQLStore) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf("DELETE FROM blobstore_sync_queue WHERE id IN (%s)", strings.Join(placeholders, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return util.StatusWrap(err, "syncqueue: delete entries")
	}
	return nil
}

// GetByKey implements Store.
func (s *SQLStore) GetByKey(ctx context.Context, key string) ([]Entry, error) {
	const query = `
		SELECT blobstore_key, blobstore_id, multiplex_id, add_timestamp, operation_key, id
		FROM blobstore_sync_queue
		WHERE blobstore_key = $1
		ORDER BY add_timestamp ASC`
	return s.scanEntries(ctx, query, key)
}

func (s *SQLStore) scanEntries(ctx context.Context, query string, args ...interface{}) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, util.StatusWrap(err, "syncqueue: query entries")
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		var (
			e            Entry
			backendID    int32
			multiplexID  int32
			timestampNs  int64
			operationKey []byte
			id           int64
		)
		if err := rows.Scan(&e.BlobstoreKey, &backendID, &multiplexID, &timestampNs, &operationKey, &id); err != nil {
			return nil, util.StatusWrap(err, "syncqueue: scan entry")
		}
		e.BackendID = backend.ID(backendID)
		e.MultiplexID = muxid.MultiplexID(multiplexID)
		e.Timestamp = nanosToTime(timestampNs)
		var key [16]byte
		copy(key[:], operationKey)
		e.OperationKey = muxid.OperationKey(key)
		e.ID = &id
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

var _ Store = (*SQLStore)(nil)
