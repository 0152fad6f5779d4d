package types

import (
	"github.com/goccy/go-json"
)

const (
	ClientIDHdrName  = "x-client-id"
	ClientKeyHdrName = "x-client-key"

	// AnalysisStatus values as tagged by the analysis endpoint per identity.
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// ThreadData is the classification payload kept per thread identity.
// Labels and Entities are the fields the pipeline understands; anything else
// the analysis service returns is carried in Extra and passed through
// unmodified on re-serialization.
type ThreadData struct {
	Labels   []string         `json:"labels"`
	Entities []map[string]any `json:"entities"`
	Extra    map[string]any   `json:"-"`
}

func (d ThreadData) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(d.Extra)+2)
	for k, v := range d.Extra {
		m[k] = v
	}
	if d.Labels == nil {
		m["labels"] = []string{}
	} else {
		m["labels"] = d.Labels
	}
	if d.Entities == nil {
		m["entities"] = []map[string]any{}
	} else {
		m["entities"] = d.Entities
	}
	return json.Marshal(m)
}

func (d *ThreadData) UnmarshalJSON(b []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	if raw, ok := m["labels"]; ok {
		if err := json.Unmarshal(raw, &d.Labels); err != nil {
			return err
		}
		delete(m, "labels")
	}
	if raw, ok := m["entities"]; ok {
		if err := json.Unmarshal(raw, &d.Entities); err != nil {
			return err
		}
		delete(m, "entities")
	}
	if len(m) > 0 {
		d.Extra = make(map[string]any, len(m))
		for k, raw := range m {
			var v any
			if err := json.Unmarshal(raw, &v); err != nil {
				return err
			}
			d.Extra[k] = v
		}
	}
	return nil
}

// AnalysisResult is the per-identity outcome of a batch analysis call.
// Data is present only when Status is StatusSuccess.
type AnalysisResult struct {
	ID     string      `json:"id"`
	Status string      `json:"status"`
	Data   *ThreadData `json:"data,omitempty"`
}

// Correction is one user-originated field edit awaiting delivery.
// The wire names match the corrections endpoint contract.
type Correction struct {
	SubjectID   string `json:"subjectId"`
	SubjectType string `json:"subjectType"`
	FieldName   string `json:"fieldName"`
	NewValue    string `json:"newValue"`
}
