package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yelloji/relgen/pkg/transform"
)

func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List the transformation catalog with parameter schemas",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, kind := range transform.Kinds() {
				spec, err := transform.Get(kind)
				if err != nil {
					return err
				}

				class := "photometric"
				if spec.Geometric {
					class = "geometric"
				}
				fmt.Fprintf(out, "%s (%s)\n", kind, class)

				keys := make([]string, 0, len(spec.Params))
				for k := range spec.Params {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					ps := spec.Params[k]
					if len(ps.Choices) > 0 {
						fmt.Fprintf(out, "  %-14s one of %s (default %s)\n", k, strings.Join(ps.Choices, "|"), ps.DefaultChoice)
						continue
					}
					fmt.Fprintf(out, "  %-14s [%g, %g] (default %g)\n", k, ps.Min, ps.Max, ps.Default)
				}
			}
			return nil
		},
	}
}
