package main

import (
	"github.com/spf13/cobra"

	"github.com/ezoic/medscore/catalog"
)

type catalogListing struct {
	Models  []catalog.Entry  `json:"models"`
	Presets []catalog.Preset `json:"presets"`
}

func newCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the catalogued models and preset strategies",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeJSON(cmd.OutOrStdout(), catalogListing{
				Models:  catalog.Entries(),
				Presets: catalog.Presets(),
			})
		},
	}
}
