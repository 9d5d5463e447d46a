package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ezoic/medscore/core/frame"
	"github.com/ezoic/medscore/dataset"
	"github.com/ezoic/medscore/pkg/errors"
	"github.com/ezoic/medscore/pkg/log"
)

// app is the state shared by the subcommands once flags are parsed.
type app struct {
	configPath string
	logLevel   string
	dataDir    string
	artifacts  string

	cfg *Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "medscore",
		Short:        "Train and score clinical risk models on tabular patient data",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML configuration file")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.StringVar(&a.dataDir, "data-dir", "", "dataset directory")
	pf.StringVar(&a.artifacts, "artifacts", "", "artifact root directory")

	root.AddCommand(
		newGenerateCmd(a),
		newTrainCmd(a),
		newScoreCmd(a),
		newAnomaliesCmd(a),
		newCatalogCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("data-dir") {
		cfg.Data.Dir = a.dataDir
	}
	if flags.Changed("artifacts") {
		cfg.Artifacts.Root = a.artifacts
	}
	if _, err := log.ParseLevel(cfg.Log.Level); err != nil {
		return errors.NewConfigurationError("medscore", "log-level", err.Error())
	}
	log.SetupLoggerWithWriter(cmd.ErrOrStderr(), cfg.Log.Level)
	a.cfg = cfg
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readRecords reads a .json file of records or a CSV file.
func readRecords(path string) (*frame.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewConfigurationError("readRecords", "records", "no such file: "+path)
		}
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return dataset.ReadJSONRecords(f)
	}
	return dataset.ReadCSV(f)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
