package models

import (
	"encoding/json"
	"fmt"
)

// Point is a dot position in the kolam grid.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type KolamPath struct {
	Type string `json:"type"` // "line" or "curve"
	P1   Point  `json:"p1"`
	P2   Point  `json:"p2"`
	Ctrl *Point `json:"ctrl,omitempty"` // control point, curves only
}

// KolamDoc is the structured representation the classifier emits and the
// renderer consumes: a dot grid plus the strokes drawn over it.
type KolamDoc struct {
	Dots  []Point     `json:"dots"`
	Paths []KolamPath `json:"paths"`
}

// ParseKolamDoc validates a hand-authored representation document before it
// is submitted for rendering. Validation is fail-closed: any structural
// problem is an error and no request should be issued. On success the
// original bytes are returned so the renderer receives them verbatim.
func ParseKolamDoc(raw []byte) (json.RawMessage, error) {
	var doc KolamDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid kolam document: %w", err)
	}

	if doc.Dots == nil {
		return nil, fmt.Errorf("invalid kolam document: missing \"dots\"")
	}
	if doc.Paths == nil {
		return nil, fmt.Errorf("invalid kolam document: missing \"paths\"")
	}

	for i, path := range doc.Paths {
		switch path.Type {
		case "line":
			if path.Ctrl != nil {
				return nil, fmt.Errorf("invalid kolam document: path %d is a line but carries a control point", i)
			}
		case "curve":
			if path.Ctrl == nil {
				return nil, fmt.Errorf("invalid kolam document: path %d is a curve without a control point", i)
			}
		default:
			return nil, fmt.Errorf("invalid kolam document: path %d has unknown type %q", i, path.Type)
		}
	}

	return json.RawMessage(raw), nil
}
