// Package dataset loads tabular clinical data into frames: CSV files from a
// directory source, JSON record arrays for scoring payloads, and a seeded
// synthetic cohort for demos and tests.
package dataset

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/ezoic/medscore/core/frame"
	"github.com/ezoic/medscore/pkg/errors"
	"github.com/ezoic/medscore/pkg/log"
)

// Source loads a dataset by id.
type Source interface {
	Load(ctx context.Context, id string) (*frame.Frame, error)
}

// DirSource reads <Dir>/<id>.csv.
type DirSource struct {
	Dir  string
	opts []CSVOption
}

// NewDirSource creates a source over dir. Options apply to every file read.
func NewDirSource(dir string, opts ...CSVOption) *DirSource {
	return &DirSource{Dir: dir, opts: opts}
}

// Path returns the file read for id.
func (s *DirSource) Path(id string) string {
	return filepath.Join(s.Dir, id+".csv")
}

// Load reads the CSV file of id. Ids containing path separators are rejected.
func (s *DirSource) Load(ctx context.Context, id string) (*frame.Frame, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return nil, errors.NewConfigurationError("DirSource.Load", "dataset", "invalid dataset id "+id)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.Path(id)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewConfigurationError("DirSource.Load", "dataset", "dataset "+id+" not found at "+path)
		}
		return nil, errors.Wrapf(err, "open dataset %s", id)
	}
	defer f.Close()

	fr, err := ReadCSV(f, s.opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "read dataset %s", id)
	}
	log.GetLoggerWithName("dataset").Debug("dataset loaded",
		"dataset.id", id,
		log.SamplesKey, fr.NRows(),
		log.ColumnsKey, fr.NCols(),
	)
	return fr, nil
}
