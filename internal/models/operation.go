package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type OperationKind string

const (
	OperationAnalysis OperationKind = "analysis"
	OperationRender   OperationKind = "render"
	OperationRecreate OperationKind = "recreate"
)

// AnalysisResult bundles the three outputs of a single analysis submission.
// Representation is the classifier's document, carried verbatim so the
// renderer receives exactly what the classifier produced.
type AnalysisResult struct {
	Representation json.RawMessage `json:"representation"`
	Matches        []string        `json:"matches"`
	Prediction     string          `json:"prediction"`
}

// OperationRecord is one entry in the session timeline. Exactly one of
// Analysis or Image is set, determined by Kind. Records are created through
// the New*Record constructors and never mutated after being appended.
type OperationRecord struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Kind      OperationKind   `json:"kind"`
	Analysis  *AnalysisResult `json:"analysis,omitempty"`
	Image     string          `json:"image,omitempty"`
}

func newRecordID() string {
	return fmt.Sprintf("op_%d", time.Now().UnixNano())
}

func NewAnalysisRecord(representation json.RawMessage, matches []string, prediction string) OperationRecord {
	return OperationRecord{
		ID:        newRecordID(),
		Timestamp: time.Now(),
		Kind:      OperationAnalysis,
		Analysis: &AnalysisResult{
			Representation: representation,
			Matches:        matches,
			Prediction:     prediction,
		},
	}
}

func NewRenderRecord(image string) OperationRecord {
	return OperationRecord{
		ID:        newRecordID(),
		Timestamp: time.Now(),
		Kind:      OperationRender,
		Image:     image,
	}
}

func NewRecreateRecord(image string) OperationRecord {
	return OperationRecord{
		ID:        newRecordID(),
		Timestamp: time.Now(),
		Kind:      OperationRecreate,
		Image:     image,
	}
}
