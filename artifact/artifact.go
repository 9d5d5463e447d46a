// Package artifact persists trained pipelines as immutable, versioned
// artifacts and caches loaded ones for scoring.
//
// A FileStore rooted at dir lays artifacts out as
//
//	models/<name>/<version>.gob   gob encoded Artifact
//	models/<name>/LATEST          version of the newest artifact
//	metrics/<name>/<version>.json evaluation record
//	explain/<name>/<version>.png  feature importance chart, when available
//
// where <name> is the sanitised model name.
package artifact

import (
	"regexp"
	"time"

	"github.com/ezoic/medscore/sklearn/pipeline"
	"github.com/ezoic/medscore/training"
)

// Artifact is a trained pipeline with its evaluation. It is never modified
// after Save.
type Artifact struct {
	Name       string
	Version    string
	Task       training.Task
	Family     string
	Pipeline   *pipeline.Pipeline
	Evaluation *training.Evaluation
	CreatedAt  time.Time
}

// Threshold returns the tuned decision threshold recorded at training time.
func (a *Artifact) Threshold() float64 {
	if a.Evaluation == nil {
		return 0.5
	}
	return a.Evaluation.Threshold()
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// SafeName maps a model name onto the characters allowed in artifact paths.
func SafeName(name string) string {
	safe := unsafeChars.ReplaceAllString(name, "_")
	if safe == "" {
		return "_"
	}
	return safe
}
