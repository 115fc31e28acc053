package document

import (
	"fmt"
	"strconv"
)

// Metadata is the provenance attached to every page and chunk.
type Metadata struct {
	Page   int    `json:"page"`   // 0-indexed page within the source document
	Source string `json:"source"` // Document reference, usually a file path
	Title  string `json:"title"`
	Author string `json:"author"`
}

// Page is one unit of extracted text, as produced by a document source.
type Page struct {
	Text     string
	Metadata Metadata
}

// Chunk is a bounded slice of normalized page text. Chunks are never
// mutated after the chunker emits them.
type Chunk struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// MetadataFromMap builds Metadata from loosely typed values, defaulting
// page to 0 and every string field to "".
func MetadataFromMap(m map[string]any) Metadata {
	return Metadata{
		Page:   intValue(m["page"]),
		Source: stringValue(m["source"]),
		Title:  stringValue(m["title"]),
		Author: stringValue(m["author"]),
	}
}

// Map flattens the metadata into the string-keyed form vector stores use
// as payload.
func (m Metadata) Map() map[string]any {
	return map[string]any{
		"page":   m.Page,
		"source": m.Source,
		"title":  m.Title,
		"author": m.Author,
	}
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func intValue(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int32:
		return int(t)
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n
		}
	}
	return 0
}
