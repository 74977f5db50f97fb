package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cuogn/logistics-front-sub000/internal/reference"
)

func newProvincesCmd(verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "provinces",
		Short: "List provinces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd.Context(), cmd, *verbose)
			if err != nil {
				return err
			}
			defer a.Close()

			return printUnits(cmd.OutOrStdout(), a.Quotes.ListProvinces(cmd.Context()))
		},
	}
}

func newWardsCmd(verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "wards <province-code>",
		Short: "List the wards of a province",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), cmd, *verbose)
			if err != nil {
				return err
			}
			defer a.Close()

			return printUnits(cmd.OutOrStdout(), a.Quotes.ListWards(cmd.Context(), args[0]))
		},
	}
}

func printUnits(w io.Writer, units []reference.AdministrativeUnit) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tNAME\tTYPE")
	for _, u := range units {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", u.Code, u.NameWithType, u.Type)
	}
	return tw.Flush()
}
