package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ezoic/medscore/dataset"
	"github.com/ezoic/medscore/pkg/errors"
	"github.com/ezoic/medscore/pkg/log"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		rows       int
		prevalence float64
		seed       uint64
		out        string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic patient cohort as CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := dataset.Synthetic(rows, prevalence, seed)
			if err != nil {
				return err
			}
			if out == "" {
				return dataset.WriteCSV(cmd.OutOrStdout(), f)
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return errors.Wrap(err, "create output directory")
			}
			file, err := os.Create(out)
			if err != nil {
				return errors.Wrapf(err, "create %s", out)
			}
			if err := dataset.WriteCSV(file, f); err != nil {
				file.Close()
				return err
			}
			log.GetLoggerWithName("medscore").Info("cohort written",
				log.SamplesKey, rows,
				"path", out,
			)
			return file.Close()
		},
	}
	cmd.Flags().IntVar(&rows, "rows", 1000, "number of patients")
	cmd.Flags().Float64Var(&prevalence, "prevalence", 0.1, "fraction of positive readmission labels")
	cmd.Flags().Uint64Var(&seed, "seed", 42, "random seed")
	cmd.Flags().StringVar(&out, "out", "", "output CSV file (default stdout)")
	return cmd
}
