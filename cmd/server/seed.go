package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"label-ecg/internal/account"
	"label-ecg/internal/analysis"
	"label-ecg/internal/config"
	"label-ecg/internal/dataset"
)

type seedCatalog struct {
	Users    []account.User    `yaml:"users"`
	Datasets []dataset.Dataset `yaml:"datasets"`
}

func seedCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Print the start-up users and datasets as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v)
			if err != nil {
				return err
			}
			return writeSeed(cmd.Context(), cmd.OutOrStdout(), cfg.Data.SamplesPerLead)
		},
	}
}

// writeSeed dumps the seed catalog. Waveform samples and passwords are
// omitted by the model's yaml tags.
func writeSeed(ctx context.Context, w io.Writer, samplesPerLead int) error {
	gen := dataset.NewGenerator(rand.NewPCG(1, 1), samplesPerLead)
	datasets, err := dataset.Seed(ctx, gen, analysis.NewCannedClient())
	if err != nil {
		return fmt.Errorf("seed datasets: %w", err)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(seedCatalog{Users: account.SeedUsers(), Datasets: datasets}); err != nil {
		return fmt.Errorf("encode seed catalog: %w", err)
	}
	return enc.Close()
}
