package kv

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONItem is a JSON-encoded KV item, stored in a jsonb column and decoded
// on read. It implements sql.Scanner/driver.Valuer so gorm can round-trip it
// without a dependency on gorm.io/datatypes.
type JSONItem map[string]interface{}

// Value implements driver.Valuer.
func (j JSONItem) Value() (driver.Value, error) {
	if j == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]interface{}(j))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (j *JSONItem) Scan(src interface{}) error {
	if src == nil {
		*j = JSONItem{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("kv: unsupported scan source %T", src)
	}
	out := JSONItem{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return err
		}
	}
	*j = out
	return nil
}

// record is the single generic row shape backing every logical table
// (chunks, posts, diffs, standing_queries, sent_notifications, users,
// student_queries, tabs, messages): one physical table keyed by
// (table_name, partition_key, sort_key) holding the item as jsonb, mirroring
// DynamoDB's single-table-design idiom in a relational store.
type record struct {
	TableName    string `gorm:"column:table_name;primaryKey"`
	PartitionKey string `gorm:"column:partition_key;primaryKey"`
	SortKey      string `gorm:"column:sort_key;primaryKey"`
	Item         JSONItem `gorm:"column:item;type:jsonb"`
}

// TableName pins gorm to the single physical table regardless of the Go
// type name.
func (record) TableName() string { return "kv_records" }
