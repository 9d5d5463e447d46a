package main

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ezoic/medscore/anomaly"
	"github.com/ezoic/medscore/pkg/errors"
	"github.com/ezoic/medscore/pkg/log"
	"github.com/ezoic/medscore/preprocessing"
	"github.com/ezoic/medscore/training"
)

// Config is the optional YAML configuration file. Flags override it.
type Config struct {
	Data struct {
		Dir string `yaml:"dir"`
	} `yaml:"data"`
	Artifacts struct {
		Root string `yaml:"root"`
	} `yaml:"artifacts"`
	Training TrainingConfig `yaml:"training"`
	Serving  ServingConfig  `yaml:"serving"`
	Log      struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// TrainingConfig configures every training run.
type TrainingConfig struct {
	Seed             int64   `yaml:"seed"`
	TestSize         float64 `yaml:"test_size"`
	SearchIterations int     `yaml:"search_iterations"`
	CVFolds          int     `yaml:"cv_folds"`
	LabelPolicy      string  `yaml:"label_policy"`
	ProxyColumn      string  `yaml:"proxy_column"`
	ConflictPolicy   string  `yaml:"conflict_policy"`
	OutlierClipping  bool    `yaml:"outlier_clipping"`
}

// ServingConfig configures scoring and anomaly detection.
type ServingConfig struct {
	IDColumn        string `yaml:"id_column"`
	IsolationForest struct {
		Trees         int     `yaml:"trees"`
		Contamination float64 `yaml:"contamination"`
	} `yaml:"isolation_forest"`
}

func defaultConfig() *Config {
	c := &Config{}
	c.Data.Dir = "data"
	c.Artifacts.Root = "artifacts"
	c.Training = TrainingConfig{
		Seed:             42,
		TestSize:         0.2,
		SearchIterations: 3,
		CVFolds:          3,
		LabelPolicy:      "proxy",
		ProxyColumn:      "glucose",
		ConflictPolicy:   "drop_all",
	}
	c.Serving.IDColumn = "patient_id"
	c.Serving.IsolationForest.Trees = 200
	c.Serving.IsolationForest.Contamination = 0.02
	c.Log.Level = "info"
	return c
}

// loadConfig reads path over the defaults. An empty path or a missing file
// yields the defaults.
func loadConfig(path string) (*Config, error) {
	c := defaultConfig()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.NewConfigurationError("loadConfig", path, err.Error())
	}
	return c, c.validate()
}

func (c *Config) validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.NewConfigurationError("config", "log.level", err.Error())
	}
	if _, err := training.ParseLabelPolicy(c.Training.LabelPolicy); err != nil {
		return err
	}
	if _, err := preprocessing.ParseConflictPolicy(c.Training.ConflictPolicy); err != nil {
		return err
	}
	if c.Training.TestSize <= 0 || c.Training.TestSize >= 1 {
		return errors.NewConfigurationError("config", "training.test_size", "must be in (0, 1)")
	}
	return nil
}

// trainerOptions translates the training section. validate has already
// checked the policies.
func (c *Config) trainerOptions() []training.TrainerOption {
	policy, _ := training.ParseLabelPolicy(c.Training.LabelPolicy)
	conflict, _ := preprocessing.ParseConflictPolicy(c.Training.ConflictPolicy)
	return []training.TrainerOption{
		training.WithSeed(c.Training.Seed),
		training.WithTestSize(c.Training.TestSize),
		training.WithSearchIterations(c.Training.SearchIterations),
		training.WithCVFolds(c.Training.CVFolds),
		training.WithLabelPolicy(policy),
		training.WithProxyColumn(c.Training.ProxyColumn),
		training.WithPreprocessorOptions(
			preprocessing.WithLeakageOptions(preprocessing.WithConflictPolicy(conflict)),
			preprocessing.WithOutlierClipping(c.Training.OutlierClipping),
		),
	}
}

func (c *Config) fuserOptions(isolation bool) []anomaly.Option {
	opts := []anomaly.Option{
		anomaly.WithIDColumn(c.Serving.IDColumn),
		anomaly.WithSeed(c.Training.Seed),
	}
	if isolation {
		opts = append(opts, anomaly.WithIsolationForest(
			c.Serving.IsolationForest.Trees, c.Serving.IsolationForest.Contamination))
	}
	return opts
}
