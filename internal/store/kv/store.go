// Package kv implements the KVStore collaborator on Postgres via gorm, the
// durable system of record for every table the pipeline touches: chunks,
// posts, diffs, standing queries, sent notifications, users, student
// queries, tabs, and messages.
package kv

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/dfroberg/coursepilot/internal/types/interfaces"
)

// Store is a gorm-backed interfaces.KVStore.
type Store struct {
	db *gorm.DB
}

// New wraps an open gorm connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Get fetches a single row by its compound key. ok is false when no row
// exists, matching DynamoDB's GetItem "no item" contract.
func (s *Store) Get(ctx context.Context, table, partitionKey, sortKey string, out interface{}) (bool, error) {
	var row record
	err := s.db.WithContext(ctx).
		Where("table_name = ? AND partition_key = ? AND sort_key = ?", table, partitionKey, sortKey).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := hydrate(row.Item, out); err != nil {
		return false, err
	}
	return true, nil
}

// BatchGet fetches up to len(keys) rows in one round trip, keyed by
// BatchGetKey(partitionKey, sortKey) in the returned map (mirroring
// DynamoDB's BatchGetItem, used by C3 to dedup-check <=100 chunk keys at a
// time). A partition can hold many rows — a question blob and its answer
// children share ParentBlobID, and a multi-chunk blob emits one row per
// chunk index — so the map must be keyed by the full compound key, not the
// partition alone.
func (s *Store) BatchGet(ctx context.Context, table string, keys [][2]string) (map[string]map[string]interface{}, error) {
	out := map[string]map[string]interface{}{}
	if len(keys) == 0 {
		return out, nil
	}

	group := s.db.Session(&gorm.Session{NewDB: true})
	for _, k := range keys {
		group = group.Or("partition_key = ? AND sort_key = ?", k[0], k[1])
	}

	var rows []record
	if err := s.db.WithContext(ctx).Where("table_name = ?", table).Where(group).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[BatchGetKey(row.PartitionKey, row.SortKey)] = map[string]interface{}(row.Item)
	}
	return out, nil
}

// BatchGetKey builds the compound lookup key BatchGet's result map uses,
// shared with callers so they can look up the rows they asked for.
func BatchGetKey(partitionKey, sortKey string) string {
	return partitionKey + "\x00" + sortKey
}

// Put upserts a single item under the given compound key.
func (s *Store) Put(ctx context.Context, table, partitionKey, sortKey string, item interface{}) error {
	data, err := toItem(item)
	if err != nil {
		return err
	}
	row := record{TableName: table, PartitionKey: partitionKey, SortKey: sortKey, Item: data}
	return s.db.WithContext(ctx).Save(&row).Error
}

// ConditionalUpdate applies updates to an existing row only if condition
// passes against the currently-stored item, implementing the
// compare-and-swap semantics C4's diff log and C10's sent-notification
// bookkeeping rely on.
func (s *Store) ConditionalUpdate(
	ctx context.Context, table, partitionKey, sortKey string, updates map[string]interface{},
	condition func(existing map[string]interface{}) bool,
) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row record
		err := tx.Where("table_name = ? AND partition_key = ? AND sort_key = ?", table, partitionKey, sortKey).
			First(&row).Error
		existing := map[string]interface{}{}
		if err == nil {
			existing = map[string]interface{}(row.Item)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if condition != nil && !condition(existing) {
			return nil
		}
		merged := JSONItem{}
		for k, v := range existing {
			merged[k] = v
		}
		for k, v := range updates {
			merged[k] = v
		}
		row = record{TableName: table, PartitionKey: partitionKey, SortKey: sortKey, Item: merged}
		return tx.Save(&row).Error
	})
}

// BatchPut upserts many items in one transaction.
func (s *Store) BatchPut(ctx context.Context, table string, items []interfaces.KVItem) error {
	if len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range items {
			data, err := toItem(item.Value)
			if err != nil {
				return err
			}
			row := record{TableName: table, PartitionKey: item.PartitionKey, SortKey: item.SortKey, Item: data}
			if err := tx.Save(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// BatchDelete removes many rows by key in one transaction.
func (s *Store) BatchDelete(ctx context.Context, table string, keys [][2]string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, k := range keys {
			if err := tx.Where("table_name = ? AND partition_key = ? AND sort_key = ?", table, k[0], k[1]).
				Delete(&record{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Query lists rows under a partition, optionally narrowed by sort-key
// predicate, returning a continuation Page when limit truncates the result.
func (s *Store) Query(
	ctx context.Context, table, partitionKey string, sortPredicate *interfaces.SortKeyPredicate,
	page interfaces.Page, limit int,
) ([]map[string]interface{}, interfaces.Page, error) {
	q := s.db.WithContext(ctx).Where("table_name = ? AND partition_key = ?", table, partitionKey)
	q = applySortPredicate(q, sortPredicate)
	if page.Token != "" {
		q = q.Where("sort_key > ?", page.Token)
	}
	q = q.Order("sort_key ASC")
	if limit > 0 {
		q = q.Limit(limit + 1)
	}

	var rows []record
	if err := q.Find(&rows).Error; err != nil {
		return nil, interfaces.Page{}, err
	}
	return paginate(rows, limit)
}

// QueryIndex is identical to Query here: the single kv_records table is
// indexed on (table_name, partition_key), so there is no separate
// secondary-index storage to address. index is accepted for interface
// parity with the DynamoDB-shaped contract and otherwise ignored.
func (s *Store) QueryIndex(
	ctx context.Context, table, index, partitionKey string, sortPredicate *interfaces.SortKeyPredicate,
	page interfaces.Page, limit int,
) ([]map[string]interface{}, interfaces.Page, error) {
	return s.Query(ctx, table, partitionKey, sortPredicate, page, limit)
}

// Scan walks every row of table in (partition_key, sort_key) order,
// regardless of partition, for full-table sweeps like the summarizer's
// "find every stale post" query.
func (s *Store) Scan(ctx context.Context, table string, page interfaces.Page, limit int) ([]map[string]interface{}, interfaces.Page, error) {
	q := s.db.WithContext(ctx).Where("table_name = ?", table)
	if page.Token != "" {
		parts := strings.SplitN(page.Token, "\x00", 2)
		if len(parts) == 2 {
			q = q.Where("(partition_key, sort_key) > (?, ?)", parts[0], parts[1])
		}
	}
	q = q.Order("partition_key ASC, sort_key ASC")
	if limit > 0 {
		q = q.Limit(limit + 1)
	}

	var rows []record
	if err := q.Find(&rows).Error; err != nil {
		return nil, interfaces.Page{}, err
	}

	next := interfaces.Page{}
	if limit > 0 && len(rows) > limit {
		last := rows[limit-1]
		next = interfaces.Page{Token: last.PartitionKey + "\x00" + last.SortKey}
		rows = rows[:limit]
	}
	out := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		out = append(out, map[string]interface{}(row.Item))
	}
	return out, next, nil
}

func applySortPredicate(q *gorm.DB, p *interfaces.SortKeyPredicate) *gorm.DB {
	if p == nil {
		return q
	}
	if p.BeginsWith != "" {
		q = q.Where("sort_key LIKE ?", strings.ReplaceAll(p.BeginsWith, "%", "\\%")+"%")
	}
	if p.GreaterThan != "" {
		q = q.Where("sort_key > ?", p.GreaterThan)
	}
	return q
}

func paginate(rows []record, limit int) ([]map[string]interface{}, interfaces.Page, error) {
	next := interfaces.Page{}
	if limit > 0 && len(rows) > limit {
		next = interfaces.Page{Token: rows[limit-1].SortKey}
		rows = rows[:limit]
	}
	out := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		out = append(out, map[string]interface{}(row.Item))
	}
	return out, next, nil
}
