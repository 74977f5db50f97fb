package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuogn/logistics-front-sub000/pkg/polyline"
)

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <polyline>",
		Short: "Decode an encoded polyline and print its points and length",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			points, stats := polyline.DecodeWithStats(args[0])
			out := cmd.OutOrStdout()
			for _, p := range points {
				fmt.Fprintln(out, p)
			}
			fmt.Fprintf(out, "points: %d, length: %.0f m\n", len(points), polyline.Length(points))
			if stats.Dropped > 0 {
				fmt.Fprintf(out, "dropped: %d out-of-range points\n", stats.Dropped)
			}
			if stats.Truncated {
				return fmt.Errorf("polyline is truncated after %d points", len(points))
			}
			return nil
		},
	}
}
