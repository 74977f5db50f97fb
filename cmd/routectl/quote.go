package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cuogn/logistics-front-sub000/internal/quote"
	"github.com/cuogn/logistics-front-sub000/pkg/geo"
)

// locationFlags collects one end of a delivery from flags.
type locationFlags struct {
	point    string
	address  string
	ward     string
	province string
}

func (f *locationFlags) register(cmd *cobra.Command, prefix, label string) {
	cmd.Flags().StringVar(&f.point, prefix, "", label+" coordinates as \"lat,lng\"")
	cmd.Flags().StringVar(&f.address, prefix+"-address", "", label+" street address")
	cmd.Flags().StringVar(&f.ward, prefix+"-ward", "", label+" ward code")
	cmd.Flags().StringVar(&f.province, prefix+"-province", "", label+" province code")
}

func (f *locationFlags) location() (*quote.Location, error) {
	loc := &quote.Location{
		Address:      f.address,
		WardCode:     f.ward,
		ProvinceCode: f.province,
	}
	if f.point != "" {
		p, err := parsePoint(f.point)
		if err != nil {
			return nil, err
		}
		loc.Point = &p
	}
	return loc, nil
}

func newQuoteCmd(verbose *bool) *cobra.Command {
	var (
		from, to locationFlags
		rate     float64
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Resolve a route and price it",
		Example: `  routectl quote --from 21.0285,105.8542 --to 21.0385,105.8642
  routectl quote --from-address "12 Tràng Tiền" --from-province 01 --to-province 31 --rate 6000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			origin, err := from.location()
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			destination, err := to.location()
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			req := quote.Request{Origin: origin, Destination: destination}
			if cmd.Flags().Changed("rate") {
				req.RatePerKm = &rate
			}

			a, err := buildApp(cmd.Context(), cmd, *verbose)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Quotes.ResolveRoute(cmd.Context(), req)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					quote.Result
					Polyline string `json:"polyline"`
				}{result, result.Route.EncodedPolyline()})
			}
			printQuote(cmd.OutOrStdout(), result)
			return nil
		},
	}

	from.register(cmd, "from", "origin")
	to.register(cmd, "to", "destination")
	cmd.Flags().Float64Var(&rate, "rate", 0, "fee per kilometre in VND (default: configured rate)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func printQuote(w io.Writer, r quote.Result) {
	fmt.Fprintf(w, "origin:      %s (%s) %s\n", r.Origin.Point, r.Origin.Method, r.Origin.Label)
	fmt.Fprintf(w, "destination: %s (%s) %s\n", r.Destination.Point, r.Destination.Method, r.Destination.Label)
	fmt.Fprintf(w, "distance:    %.0f m\n", r.Route.DistanceMeters)
	fmt.Fprintf(w, "duration:    %.0f s\n", r.Route.DurationSeconds)
	fmt.Fprintf(w, "source:      %s\n", r.Route.Source)
	fmt.Fprintf(w, "price:       %.0f %s (%.0f/km)\n", r.Quote.Amount, r.Quote.Currency, r.Quote.RatePerKm)
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "warning:     %s\n", warn)
	}
}

// parsePoint reads "lat,lng".
func parsePoint(s string) (geo.Point, error) {
	lat, lng, ok := strings.Cut(s, ",")
	if !ok {
		return geo.Point{}, errors.New("expected \"lat,lng\"")
	}
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("latitude: %w", err)
	}
	ln, err := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("longitude: %w", err)
	}
	p := geo.Point{Lat: la, Lng: ln}
	return p, p.Validate()
}
