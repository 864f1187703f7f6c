// Package casefile reads case snapshots from disk and replays them against a
// running service.
//
// A case file is YAML or JSON:
//
//	case_id: case-42
//	events:
//	  - id: e1
//	    timestamp: "2024-05-01T21:30:00Z"
//	    symptom_categories: [orientation]
//	    title: Confused at dusk
//	scales:
//	  - id: s1
//	    date: "2024-05-02"
//	    scale_type: MMSE
//	    total_score: 22
package casefile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/okian/caretrack/internal/domain/analysis"
	"github.com/okian/caretrack/internal/domain/model"
)

// ErrInvalidFile is returned for files that cannot be decoded.
var ErrInvalidFile = errors.New("invalid case file")

// File is one case snapshot.
type File struct {
	CaseID string              `json:"case_id"`
	Events []model.CaseEvent   `json:"events"`
	Scales []model.ScaleRecord `json:"scales"`
}

// Load reads a case file from path.
func Load(path string) (File, error) {
	f, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("open case file: %w", err)
	}
	defer f.Close()

	out, err := Decode(f)
	if err != nil {
		return File{}, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// Decode reads a case file. YAML is decoded generically and re-encoded as
// JSON so records keep their JSON field names and payloads stay raw.
func Decode(r io.Reader) (File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return File{}, fmt.Errorf("read case file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return File{}, fmt.Errorf("%w: empty", ErrInvalidFile)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return File{}, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	if _, ok := doc.(map[string]any); !ok {
		return File{}, fmt.Errorf("%w: top level must be a mapping", ErrInvalidFile)
	}
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return File{}, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}

	var out File
	if err := json.Unmarshal(asJSON, &out); err != nil {
		return File{}, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	out.CaseID = strings.TrimSpace(out.CaseID)
	return out, nil
}

// Analyze runs every analysis of a over f as of now.
func Analyze(a *analysis.Analyzer, f File, now time.Time) analysis.Report {
	if a == nil {
		a = analysis.New()
	}
	return a.Analyze(f.CaseID, f.Events, f.Scales, now)
}
