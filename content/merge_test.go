package content

import (
	"context"
	"testing"

	"github.com/ryansmccoy/feedspine"
)

func TestFieldMergeEnricherAddsNewFieldsAndPromotesLayer(t *testing.T) {
	enricher := FieldMergeEnricher{
		EnricherName: "word-count",
		TargetLayer:  feedspine.LayerSilver,
		Fields: func(record *feedspine.Record) (map[string]interface{}, error) {
			return map[string]interface{}{"stats.word_count": 42}, nil
		},
	}

	record := &feedspine.Record{
		Layer:   feedspine.LayerBronze,
		Content: map[string]interface{}{"title": "hello"},
	}

	result, err := enricher.Enrich(context.Background(), record)
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if result.Status != feedspine.EnrichmentSuccess {
		t.Fatalf("result.Status = %v, want EnrichmentSuccess", result.Status)
	}
	if len(result.FieldsAdded) != 1 || result.FieldsAdded[0] != "stats.word_count" {
		t.Fatalf("result.FieldsAdded = %v, want [stats.word_count]", result.FieldsAdded)
	}
	if record.Layer != feedspine.LayerSilver {
		t.Fatalf("record.Layer = %v, want LayerSilver", record.Layer)
	}
	stats, ok := record.Content["stats"].(map[string]interface{})
	if !ok {
		t.Fatalf("record.Content[\"stats\"] = %#v, want a nested map", record.Content["stats"])
	}
	if stats["word_count"] != float64(42) {
		t.Fatalf("stats[\"word_count\"] = %v, want 42", stats["word_count"])
	}
	if record.Content["title"] != "hello" {
		t.Fatalf("existing field \"title\" was clobbered: %v", record.Content["title"])
	}
}

func TestFieldMergeEnricherReportsUpdatedForExistingTopLevelField(t *testing.T) {
	enricher := FieldMergeEnricher{
		EnricherName: "title-fix",
		TargetLayer:  feedspine.LayerSilver,
		Fields: func(record *feedspine.Record) (map[string]interface{}, error) {
			return map[string]interface{}{"title": "cleaned title"}, nil
		},
	}
	record := &feedspine.Record{
		Layer:   feedspine.LayerBronze,
		Content: map[string]interface{}{"title": "raw title"},
	}

	result, err := enricher.Enrich(context.Background(), record)
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if len(result.FieldsUpdated) != 1 || result.FieldsUpdated[0] != "title" {
		t.Fatalf("result.FieldsUpdated = %v, want [title]", result.FieldsUpdated)
	}
	if record.Content["title"] != "cleaned title" {
		t.Fatalf("record.Content[\"title\"] = %v, want \"cleaned title\"", record.Content["title"])
	}
}

func TestFieldMergeEnricherSkipsWhenNoFieldsComputed(t *testing.T) {
	enricher := FieldMergeEnricher{
		EnricherName: "noop",
		TargetLayer:  feedspine.LayerSilver,
		Fields: func(record *feedspine.Record) (map[string]interface{}, error) {
			return nil, nil
		},
	}
	record := &feedspine.Record{Layer: feedspine.LayerBronze, Content: map[string]interface{}{"title": "hello"}}

	result, err := enricher.Enrich(context.Background(), record)
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if result.Status != feedspine.EnrichmentSkipped {
		t.Fatalf("result.Status = %v, want EnrichmentSkipped", result.Status)
	}
	if record.Layer != feedspine.LayerBronze {
		t.Fatalf("record.Layer = %v, want unchanged LayerBronze when nothing was merged", record.Layer)
	}
}

func TestFieldMergeEnricherCanEnrichRespectsTargetLayer(t *testing.T) {
	enricher := FieldMergeEnricher{EnricherName: "x", TargetLayer: feedspine.LayerSilver}
	if !enricher.CanEnrich(&feedspine.Record{Layer: feedspine.LayerBronze}) {
		t.Fatal("CanEnrich(bronze) should be true when target is silver")
	}
	if enricher.CanEnrich(&feedspine.Record{Layer: feedspine.LayerGold}) {
		t.Fatal("CanEnrich(gold) should be false when target is silver")
	}
}
