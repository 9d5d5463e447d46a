package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ezoic/medscore/core/model"
	"github.com/ezoic/medscore/pkg/errors"
	"github.com/ezoic/medscore/pkg/log"
	"github.com/ezoic/medscore/training"
)

const (
	modelsDir  = "models"
	metricsDir = "metrics"
	explainDir = "explain"
	latestFile = "LATEST"
	modelExt   = ".gob"
)

// Store saves, resolves and loads artifacts.
type Store interface {
	Save(ctx context.Context, a *Artifact) (string, error)
	Resolve(name string) (string, error)
	Load(ctx context.Context, path string) (*Artifact, error)
}

// FileStore is a Store on the local filesystem.
type FileStore struct {
	Root string

	logger log.Logger
}

// NewFileStore creates a store rooted at root.
func NewFileStore(root string) *FileStore {
	return &FileStore{Root: root, logger: log.GetLoggerWithName("artifact")}
}

func (s *FileStore) dir(kind, name string) string {
	return filepath.Join(s.Root, kind, SafeName(name))
}

// Save writes a under a fresh version and then points LATEST at it. The
// Version and CreatedAt fields are assigned here; Name must be set.
func (s *FileStore) Save(ctx context.Context, a *Artifact) (string, error) {
	if a == nil || a.Pipeline == nil {
		return "", errors.NewValidationError("artifact", "artifact has no pipeline", a)
	}
	if strings.TrimSpace(a.Name) == "" {
		return "", errors.NewValidationError("artifact", "artifact has no name", a.Name)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	a.Version = uuid.NewString()
	a.CreatedAt = time.Now().UTC()

	dir := s.dir(modelsDir, a.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create model directory")
	}
	var buf bytes.Buffer
	if err := model.SaveModelToWriter(a, &buf); err != nil {
		return "", errors.Wrapf(err, "encode artifact %s", a.Name)
	}
	path := filepath.Join(dir, a.Version+modelExt)
	if err := writeAtomic(path, buf.Bytes()); err != nil {
		return "", errors.Wrapf(err, "write artifact %s", a.Name)
	}

	if a.Evaluation != nil {
		if err := s.writeMetrics(a); err != nil {
			return "", err
		}
		if len(a.Evaluation.Importances) > 0 {
			png := filepath.Join(s.dir(explainDir, a.Name), a.Version+".png")
			if err := SaveImportanceChart(png, a.Name, a.Evaluation.Importances); err != nil {
				// the chart is auxiliary; the model is already saved
				s.logger.Warn("feature importance chart not written",
					log.ModelNameKey, a.Name,
					log.ErrAttrKey, err.Error(),
				)
			}
		}
	}

	if err := writeAtomic(filepath.Join(dir, latestFile), []byte(a.Version+"\n")); err != nil {
		return "", errors.Wrapf(err, "update latest pointer of %s", a.Name)
	}
	s.logger.Info("artifact saved",
		log.ModelNameKey, a.Name,
		log.ArtifactVersionKey, a.Version,
		log.ArtifactPathKey, path,
	)
	return path, nil
}

func (s *FileStore) writeMetrics(a *Artifact) error {
	dir := s.dir(metricsDir, a.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create metrics directory")
	}
	data, err := json.MarshalIndent(a.Evaluation, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode evaluation")
	}
	return writeAtomic(filepath.Join(dir, a.Version+".json"), data)
}

// Publish saves a training result as the newest artifact of name.
func (s *FileStore) Publish(ctx context.Context, name string, res *training.Result) (string, error) {
	a := &Artifact{Name: name, Pipeline: res.Pipeline, Evaluation: res.Evaluation}
	if res.Evaluation != nil {
		a.Task = res.Evaluation.Task
		a.Family = res.Evaluation.Family
	}
	return s.Save(ctx, a)
}

// Resolve finds the newest artifact of name. It tries the exact name, the
// sanitised name and then the one model directory containing the sanitised
// name. A miss, or a partial name matching several models, is an
// ArtifactNotFoundError listing every location tried.
func (s *FileStore) Resolve(name string) (string, error) {
	var searched []string
	try := func(dir string) (string, bool) {
		latest := filepath.Join(dir, latestFile)
		searched = append(searched, latest)
		data, err := os.ReadFile(latest)
		if err != nil {
			return "", false
		}
		path := filepath.Join(dir, strings.TrimSpace(string(data))+modelExt)
		if _, err := os.Stat(path); err != nil {
			return "", false
		}
		return path, true
	}

	if name != "" && !strings.ContainsAny(name, `/\`) && name != "." && name != ".." {
		if path, ok := try(filepath.Join(s.Root, modelsDir, name)); ok {
			return path, nil
		}
	}
	safe := SafeName(name)
	if safe != name {
		if path, ok := try(filepath.Join(s.Root, modelsDir, safe)); ok {
			return path, nil
		}
	}
	pattern := filepath.Join(s.Root, modelsDir, "*"+safe+"*")
	searched = append(searched, pattern)
	matches, _ := filepath.Glob(pattern)
	sort.Strings(matches)
	var found []string
	for _, dir := range matches {
		if path, ok := try(dir); ok {
			found = append(found, path)
		}
	}
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
	default:
		s.logger.Warn("ambiguous artifact name",
			log.ModelNameKey, name,
			"artifact.matches", len(found),
		)
	}
	return "", errors.NewArtifactNotFoundError(name, searched...)
}

// Load decodes the artifact at path.
func (s *FileStore) Load(ctx context.Context, path string) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewArtifactNotFoundError(path, path)
		}
		return nil, errors.Wrapf(err, "open artifact %s", path)
	}
	defer f.Close()

	a := &Artifact{}
	if err := model.LoadModelFromReader(a, f); err != nil {
		return nil, errors.Wrapf(err, "decode artifact %s", path)
	}
	if a.Pipeline == nil || !a.Pipeline.IsFitted() {
		return nil, errors.NewValueError("FileStore.Load", "artifact "+path+" holds no fitted pipeline")
	}
	return a, nil
}

// writeAtomic writes data to a temporary file in the target directory and
// renames it into place.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
