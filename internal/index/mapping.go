package index

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/single"
	"github.com/blevesearch/bleve/v2/mapping"
)

// LowercaseKeywordAnalyzer indexes a whole value as one lowercased term.
const LowercaseKeywordAnalyzer = "keyword_lowercase"

// NewIndexMapping creates the Bleve index mapping for a schema.
// The document mapping is static: fields outside the schema are ignored.
func NewIndexMapping(schema Schema) (mapping.IndexMapping, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(LowercaseKeywordAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     single.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register %s analyzer: %w", LowercaseKeywordAnalyzer, err)
	}

	docMapping := bleve.NewDocumentStaticMapping()
	for name, kind := range schema.Fields {
		docMapping.AddFieldMappingsAt(name, fieldMapping(kind))
		if kind == KindInt64 {
			docMapping.AddFieldMappingsAt(ExactField(name), fieldMapping(KindKeyword))
		}
	}

	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name

	return indexMapping, nil
}

func fieldMapping(kind FieldKind) *mapping.FieldMapping {
	switch kind {
	case KindInt64:
		field := bleve.NewNumericFieldMapping()
		field.Store = true
		field.IncludeInAll = false
		return field
	case KindText:
		field := bleve.NewTextFieldMapping()
		field.Analyzer = standard.Name
		field.Store = true
		field.IncludeInAll = false
		return field
	case KindLowerKeyword:
		field := bleve.NewTextFieldMapping()
		field.Analyzer = LowercaseKeywordAnalyzer
		field.Store = true
		field.IncludeInAll = false
		return field
	default:
		// Identifiers must only ever match whole values.
		field := bleve.NewTextFieldMapping()
		field.Analyzer = keyword.Name
		field.Store = true
		field.IncludeInAll = false
		return field
	}
}
