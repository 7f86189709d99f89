package catalog

import (
	"fmt"

	"github.com/goccy/go-json"
)

// detailSpec mirrors the crawler's detail_spec JSONB column.
type detailSpec struct {
	Spec        map[string]any `json:"spec"`
	SpecSummary []any          `json:"spec_summary"`
}

// decodeDetailSpec extracts the spec map and summary lines. Malformed JSON
// yields nothing; the raw text still backs the compact rendering.
func decodeDetailSpec(raw string) (map[string]any, []string) {
	if raw == "" {
		return nil, nil
	}
	var ds detailSpec
	if err := json.Unmarshal([]byte(raw), &ds); err != nil {
		return nil, nil
	}
	summary := make([]string, 0, len(ds.SpecSummary))
	for _, s := range ds.SpecSummary {
		if s == nil {
			continue
		}
		summary = append(summary, fmt.Sprint(s))
	}
	return ds.Spec, summary
}
