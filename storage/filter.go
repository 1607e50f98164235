// Package storage provides feedspine.Storage implementations: an
// in-memory MemStore for tests and small feeds, and SQL-backed stores for
// SQLite and MySQL sharing one query/upsert core.
package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ryansmccoy/feedspine"
)

// fieldValue extracts the comparison value for filter.Field off of
// record, resolving top-level Record attributes by name and "content.*"
// paths via gjson against the record's marshaled content.
func fieldValue(record *feedspine.Record, field string, contentJSON string) (interface{}, bool) {
	if rest, ok := strings.CutPrefix(field, "content."); ok {
		result := gjson.Get(contentJSON, rest)
		if !result.Exists() {
			return nil, false
		}
		return result.Value(), true
	}

	switch field {
	case "id":
		return record.ID, true
	case "natural_key":
		return record.NaturalKey, true
	case "layer":
		return int(record.Layer), true
	case "version":
		return record.Version, true
	case "seen_count":
		return record.SeenCount, true
	case "published_at":
		return record.PublishedAt, true
	case "captured_at":
		return record.CapturedAt, true
	case "updated_at":
		return record.UpdatedAt, true
	case "first_seen_at":
		return record.FirstSeenAt, true
	case "last_seen_at":
		return record.LastSeenAt, true
	case "source":
		return record.Metadata.Source, true
	default:
		return nil, false
	}
}

// matchesFilter evaluates one Filter against record (contentJSON is
// record.Content pre-marshaled by the caller so repeated filters on the
// same record don't re-marshal).
func matchesFilter(record *feedspine.Record, f feedspine.Filter, contentJSON string) bool {
	val, ok := fieldValue(record, f.Field, contentJSON)
	if f.Op == feedspine.OpNull {
		return !ok || val == nil
	}
	if f.Op == feedspine.OpNotNull {
		return ok && val != nil
	}
	if !ok {
		return false
	}

	switch f.Op {
	case feedspine.OpEq:
		return compareEqual(val, f.Value)
	case feedspine.OpIn:
		items, ok := f.Value.([]interface{})
		if !ok {
			return false
		}
		for _, item := range items {
			if compareEqual(val, item) {
				return true
			}
		}
		return false
	case feedspine.OpLike:
		pattern, ok1 := f.Value.(string)
		s, ok2 := val.(string)
		if !ok1 || !ok2 {
			return false
		}
		return strings.Contains(strings.ToLower(s), strings.ToLower(strings.Trim(pattern, "%")))
	case feedspine.OpGt, feedspine.OpLt, feedspine.OpGte, feedspine.OpLte:
		return compareOrdered(val, f.Value, f.Op)
	default:
		return false
	}
}

func compareEqual(a, b interface{}) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func compareOrdered(a, b interface{}, op feedspine.FilterOp) bool {
	at, aIsTime := a.(time.Time)
	bt, bIsTime := b.(time.Time)
	if aIsTime && bIsTime {
		switch op {
		case feedspine.OpGt:
			return at.After(bt)
		case feedspine.OpLt:
			return at.Before(bt)
		case feedspine.OpGte:
			return !at.Before(bt)
		case feedspine.OpLte:
			return !at.After(bt)
		}
	}

	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return false
	}
	switch op {
	case feedspine.OpGt:
		return af > bf
	case feedspine.OpLt:
		return af < bf
	case feedspine.OpGte:
		return af >= bf
	case feedspine.OpLte:
		return af <= bf
	default:
		return false
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
