package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yelloji/relgen/pkg/release"
)

func newGenerateCmd() *cobra.Command {
	var (
		configPath  string
		fixturePath string
		version     string
		workers     int
		seed        uint64
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run a release from a ReleaseConfig against a store fixture",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := release.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if seed != 0 {
				logger.Debug("overriding seed", "from", cfg.Seed, "to", seed)
				cfg.Seed = seed
			}

			store, err := loadFixture(fixturePath)
			if err != nil {
				return err
			}

			o := release.NewOrchestrator(store, flagProjectRoot,
				release.WithLogger(logger),
				release.WithWorkers(workers),
			)

			logger.Info("starting release", "name", cfg.ReleaseName, "seed", cfg.Seed, "version", version)
			start := time.Now()

			id, err := o.Generate(cmd.Context(), cfg, version)
			if err != nil {
				return fmt.Errorf("release %s failed: %w", id, err)
			}

			rel, err := store.GetRelease(cmd.Context(), id)
			if err != nil {
				return err
			}

			logger.Info("release completed",
				"id", rel.ID,
				"elapsed", time.Since(start).Round(time.Millisecond),
				"format", rel.ExportFormat,
				"images", rel.FinalImageCount,
				"train", rel.TrainImageCount,
				"val", rel.ValImageCount,
				"test", rel.TestImageCount,
				"classes", rel.ClassCount,
			)
			fmt.Fprintln(cmd.OutOrStdout(), rel.ModelPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "release config YAML (required)")
	cmd.Flags().StringVarP(&fixturePath, "fixture", "f", "", "store fixture YAML (required)")
	cmd.Flags().StringVar(&version, "release-version", "v1", "transformation release version to consume")
	cmd.Flags().IntVar(&workers, "workers", 4, "parallel engine workers")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "override the seed from the config (0 = use config seed)")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("fixture")

	return cmd
}
