package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/yelloji/relgen/pkg/preview"
)

func newPreviewCmd() *cobra.Command {
	var (
		fixturePath string
		outDir      string
		max         int
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render annotation-overlay SVGs for a store fixture",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadFixture(fixturePath)
			if err != nil {
				return err
			}

			ctx := context.Background()
			images, err := store.ListImages(ctx, nil, nil)
			if err != nil {
				return err
			}

			items := make([]preview.Item, 0, len(images))
			for _, img := range images {
				anns, err := store.AnnotationsByImage(ctx, img.ID)
				if err != nil {
					return err
				}
				items = append(items, preview.Item{
					Name:        img.Filename,
					Split:       img.Split,
					Width:       img.Width,
					Height:      img.Height,
					Annotations: anns,
				})
			}

			if err := preview.WriteOverlays(outDir, items, max); err != nil {
				return err
			}
			logger.Info("previews written", "dir", outDir, "count", len(items))
			return nil
		},
	}

	cmd.Flags().StringVarP(&fixturePath, "fixture", "f", "", "store fixture YAML (required)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "previews", "output directory")
	cmd.Flags().IntVar(&max, "max", 0, "maximum previews to render (0 = all)")
	_ = cmd.MarkFlagRequired("fixture")

	return cmd
}
