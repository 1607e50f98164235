package content

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/sjson"

	"github.com/ryansmccoy/feedspine"
)

// FieldMergeEnricher promotes a Record by writing a fixed set of
// dotted-path content fields, computed from the record itself, using
// sjson against the record's marshaled content — the write-side
// counterpart of storage/filter.go's gjson-based dotted-path reads.
// When it merges at least one field it also promotes the record in
// place: Layer is set to TargetLayer and Version is incremented.
type FieldMergeEnricher struct {
	EnricherName string
	TargetLayer  feedspine.Layer
	Fields       func(record *feedspine.Record) (map[string]interface{}, error)
}

var _ feedspine.Enricher = FieldMergeEnricher{}

func (f FieldMergeEnricher) Name() string { return f.EnricherName }

// CanEnrich skips records already at or past TargetLayer.
func (f FieldMergeEnricher) CanEnrich(record *feedspine.Record) bool {
	return record.Layer < f.TargetLayer
}

// Enrich computes Fields(record) and writes each dotted path into the
// record's content via sjson, reporting every path touched.
func (f FieldMergeEnricher) Enrich(ctx context.Context, record *feedspine.Record) (feedspine.EnrichmentResult, error) {
	start := time.Now()
	result := feedspine.EnrichmentResult{SourceLayer: record.Layer, TargetLayer: f.TargetLayer}

	fields, err := f.Fields(record)
	if err != nil {
		result.Status = feedspine.EnrichmentFailed
		result.Duration = time.Since(start)
		return result, fmt.Errorf("feedspine/content: %s: compute fields: %w", f.EnricherName, err)
	}
	if len(fields) == 0 {
		result.Status = feedspine.EnrichmentSkipped
		result.Duration = time.Since(start)
		return result, nil
	}

	raw, err := json.Marshal(record.Content)
	if err != nil {
		result.Status = feedspine.EnrichmentFailed
		result.Duration = time.Since(start)
		return result, fmt.Errorf("feedspine/content: %s: marshal content: %w", f.EnricherName, err)
	}

	added := 0
	for path, value := range fields {
		existed := false
		if record.Content != nil {
			if _, ok := record.Content[path]; ok {
				existed = true
			}
		}
		next, err := sjson.SetBytes(raw, path, value)
		if err != nil {
			result.Status = feedspine.EnrichmentPartial
			result.Duration = time.Since(start)
			return result, fmt.Errorf("feedspine/content: %s: set %q: %w", f.EnricherName, path, err)
		}
		raw = next
		if existed {
			result.FieldsUpdated = append(result.FieldsUpdated, path)
		} else {
			result.FieldsAdded = append(result.FieldsAdded, path)
			added++
		}
	}

	var merged map[string]interface{}
	if err := json.Unmarshal(raw, &merged); err != nil {
		result.Status = feedspine.EnrichmentFailed
		result.Duration = time.Since(start)
		return result, fmt.Errorf("feedspine/content: %s: unmarshal merged content: %w", f.EnricherName, err)
	}
	record.Content = merged
	record.Layer = f.TargetLayer
	record.Version++
	result.Status = feedspine.EnrichmentSuccess
	result.Duration = time.Since(start)
	return result, nil
}
