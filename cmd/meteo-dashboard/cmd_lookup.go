package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/i474232898/meteo-station-dashboard/internal/stations"
)

var searchCmd = &cobra.Command{
	Use:   "search <municipality>",
	Short: "Search French municipalities by name",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var (
	nearestLat float64
	nearestLon float64
	nearestK   int
)

var nearestCmd = &cobra.Command{
	Use:   "nearest",
	Short: "List the observation stations closest to a point",
	RunE:  runNearest,
}

var stationsCmd = &cobra.Command{
	Use:   "stations",
	Short: "Print the upstream hourly station list",
	Long:  `Fetch the list of stations publishing hourly observations from Météo-France and print it as received.`,
	RunE:  runStations,
}

func init() {
	nearestCmd.Flags().Float64Var(&nearestLat, "lat", 0, "latitude in decimal degrees")
	nearestCmd.Flags().Float64Var(&nearestLon, "lon", 0, "longitude in decimal degrees")
	nearestCmd.Flags().IntVarP(&nearestK, "count", "k", stations.DefaultK, "number of stations")
	_ = nearestCmd.MarkFlagRequired("lat")
	_ = nearestCmd.MarkFlagRequired("lon")

	rootCmd.AddCommand(searchCmd, nearestCmd, stationsCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	matches := app.geocoder().Search(cmd.Context(), strings.Join(args, " "))
	if len(matches) == 0 {
		fmt.Println("no municipality found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LABEL\tCONTEXT\tLATITUDE\tLONGITUDE")
	for _, m := range matches {
		fmt.Fprintf(w, "%s\t%s\t%.6f\t%.6f\n", m.Label, m.Context, m.Coordinates.Latitude, m.Coordinates.Longitude)
	}
	return w.Flush()
}

func runNearest(cmd *cobra.Command, args []string) error {
	if nearestLat < -90 || nearestLat > 90 || nearestLon < -180 || nearestLon > 180 {
		return fmt.Errorf("coordinates out of range: %v, %v", nearestLat, nearestLon)
	}

	idx, err := app.stations()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDISTANCE_KM\tALTITUDE\tOPENED")
	for _, s := range idx.Nearest(nearestLat, nearestLon, nearestK) {
		fmt.Fprintf(w, "%s\t%s\t%.1f\t%.0f\t%s\n", s.ID, s.Name, s.DistanceKm, s.Altitude, s.OpeningDate.Format("2006-01-02"))
	}
	return w.Flush()
}

func runStations(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), app.cfg.HTTPTimeout)
	defer cancel()

	list, err := app.meteoFrance().ListStations(ctx)
	if err != nil {
		return fmt.Errorf("failed to list stations: %w", err)
	}
	fmt.Print(list)
	return nil
}
