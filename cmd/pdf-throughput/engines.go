// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pdf-throughput/internal/convert"
)

var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "List the available conversion engines",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		registry := convert.NewRegistry(cfg.Engines, convert.Options{Secrets: loadedSecrets})

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		for _, name := range registry.Names() {
			e, _ := registry.Lookup(name)
			desc := e.Description
			if name == convert.EngineOCR && !convert.OCREnabled {
				desc += " [not built: -tags tesseract]"
			}
			if name == convert.DefaultEngine {
				desc += " [default]"
			}
			fmt.Fprintf(w, "%s\t%s\n", name, desc)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(enginesCmd)
}
