// Copyright (c) 2026 Torii. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package data

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/torii/internal/gate"
	"github.com/taibuivan/torii/internal/platform/database/schema"
	"github.com/taibuivan/torii/internal/platform/dberr"
	"github.com/taibuivan/torii/pkg/convert"
	"github.com/taibuivan/torii/pkg/uuidv7"
)

// sortKeyPattern restricts sort keys to safe identifier characters.
var sortKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// RecordStore implements [Repository] against the PostgreSQL records table.
//
// Records are schemaless JSONB documents addressed by model name. The gate
// guarantees that every filter and document arriving here has already passed
// authorization, denied-key scanning, schema matching, and default merging;
// this type only translates the normalized descriptor into SQL. Sort keys
// are whitelisted to identifier characters before they reach ORDER BY.
type RecordStore struct {
	pool *pgxpool.Pool
}

// NewRecordStore creates a [RecordStore] over the given pool.
func NewRecordStore(pool *pgxpool.Pool) *RecordStore {
	return &RecordStore{pool: pool}
}

/*
Create inserts the descriptor's document as a new record.

Parameters:
  - context: context.Context
  - descriptor: *gate.Descriptor (Document must be set)

Returns:
  - *Record: The stored record with its generated UUIDv7
  - error: Wrapped database errors
*/
func (store *RecordStore) Create(context context.Context, descriptor *gate.Descriptor) (*Record, error) {
	encoded, err := json.Marshal(descriptor.Document)
	if err != nil {
		return nil, fmt.Errorf("storage: document marshal failed: %w", err)
	}

	record := &Record{
		ID:    uuidv7.New(),
		Model: descriptor.Model,
		Doc:   descriptor.Document,
	}

	rec := schema.DataRecord
	insert := fmt.Sprintf(`INSERT INTO %s (%s, %s, %s) VALUES ($1, $2, $3)`,
		rec.Table, rec.ID, rec.Model, rec.Doc)

	_, err = store.pool.Exec(context, insert,
		record.ID, record.Model, encoded,
	)
	if err != nil {
		return nil, dberr.Wrap(err, "create record")
	}
	return record, nil
}

/*
Read selects records matching the descriptor's filter.

Description: The filter is applied via JSONB containment; limit, skip, and
sort come from the descriptor options ("sort" accepts "key" or "-key" for
descending order).

Parameters:
  - context: context.Context
  - descriptor: *gate.Descriptor

Returns:
  - []*Record: Matching records in sort order
  - error: Wrapped database errors
*/
func (store *RecordStore) Read(context context.Context, descriptor *gate.Descriptor) ([]*Record, error) {
	filter, err := marshalFilter(descriptor.Filter)
	if err != nil {
		return nil, err
	}

	rec := schema.DataRecord
	query := fmt.Sprintf(`SELECT %s, %s FROM %s WHERE %s = $1 AND %s @> $2`,
		rec.ID, rec.Doc, rec.Table, rec.Model, rec.Doc)
	query += orderClause(descriptor.Options)
	query += limitClause(descriptor.Options)

	rows, err := store.pool.Query(context, query, descriptor.Model, filter)
	if err != nil {
		return nil, dberr.Wrap(err, "read records")
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record := &Record{Model: descriptor.Model}
		var raw []byte
		if err := rows.Scan(&record.ID, &raw); err != nil {
			return nil, dberr.Wrap(err, "scan record")
		}
		if err := json.Unmarshal(raw, &record.Doc); err != nil {
			return nil, fmt.Errorf("storage: corrupt record %s: %w", record.ID, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, "read records")
	}
	return records, nil
}

/*
Update shallow-merges the descriptor's update payload into every matching
record via the JSONB concatenation operator.

Returns:
  - int64: Number of updated records
  - error: Wrapped database errors
*/
func (store *RecordStore) Update(context context.Context, descriptor *gate.Descriptor) (int64, error) {
	filter, err := marshalFilter(descriptor.Filter)
	if err != nil {
		return 0, err
	}
	update, err := json.Marshal(descriptor.Update)
	if err != nil {
		return 0, fmt.Errorf("storage: update marshal failed: %w", err)
	}

	rec := schema.DataRecord
	merge := fmt.Sprintf(`UPDATE %s SET %s = %s || $3 WHERE %s = $1 AND %s @> $2`,
		rec.Table, rec.Doc, rec.Doc, rec.Model, rec.Doc)

	tag, err := store.pool.Exec(context, merge,
		descriptor.Model, filter, update,
	)
	if err != nil {
		return 0, dberr.Wrap(err, "update records")
	}
	return tag.RowsAffected(), nil
}

/*
Delete removes every record matching the descriptor's filter.

Returns:
  - int64: Number of deleted records
  - error: Wrapped database errors
*/
func (store *RecordStore) Delete(context context.Context, descriptor *gate.Descriptor) (int64, error) {
	filter, err := marshalFilter(descriptor.Filter)
	if err != nil {
		return 0, err
	}

	rec := schema.DataRecord
	remove := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND %s @> $2`,
		rec.Table, rec.Model, rec.Doc)

	tag, err := store.pool.Exec(context, remove,
		descriptor.Model, filter,
	)
	if err != nil {
		return 0, dberr.Wrap(err, "delete records")
	}
	return tag.RowsAffected(), nil
}

// marshalFilter encodes the filter for JSONB containment; a nil filter
// matches everything.
func marshalFilter(filter map[string]any) ([]byte, error) {
	if filter == nil {
		filter = map[string]any{}
	}
	encoded, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("storage: filter marshal failed: %w", err)
	}
	return encoded, nil
}

// orderClause renders the ORDER BY clause from the "sort" option.
func orderClause(options map[string]any) string {
	sort, _ := options["sort"].(string)
	if sort == "" {
		return ` ORDER BY id`
	}

	direction := " ASC"
	key := sort
	if strings.HasPrefix(sort, "-") {
		direction = " DESC"
		key = sort[1:]
	}
	if !sortKeyPattern.MatchString(key) {
		return ` ORDER BY id`
	}
	return fmt.Sprintf(` ORDER BY doc->>'%s'%s`, key, direction)
}

// limitClause renders LIMIT/OFFSET from the "limit" and "skip" options.
func limitClause(options map[string]any) string {
	clause := ""
	if limit := optionInt(options, "limit"); limit > 0 {
		clause += fmt.Sprintf(` LIMIT %d`, limit)
	}
	if skip := optionInt(options, "skip"); skip > 0 {
		clause += fmt.Sprintf(` OFFSET %d`, skip)
	}
	return clause
}

// optionInt reads a numeric option that may arrive as float64 (decoded
// JSON), int, or numeric string.
func optionInt(options map[string]any, key string) int {
	switch value := options[key].(type) {
	case float64:
		return int(value)
	case int:
		return value
	case string:
		return convert.ToInt(value)
	default:
		return 0
	}
}
