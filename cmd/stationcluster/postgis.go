package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/1F47E/station-cluster/pkg/cluster"
	"github.com/1F47E/station-cluster/pkg/models"
	"github.com/1F47E/station-cluster/pkg/postgis"
	"github.com/1F47E/station-cluster/pkg/snapshot"
)

var postgisCmd = &cobra.Command{
	Use:   "postgis",
	Short: "Move station lists between snapshots and PostGIS",
}

var postgisImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Load the snapshot into a fresh PostGIS table",
	RunE:  runPostGISImport,
}

var postgisExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the PostGIS stations to the snapshot",
	RunE:  runPostGISExport,
}

var postgisStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show table size and row count",
	RunE:  runPostGISStats,
}

var postgisQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "List the stored stations inside a viewport",
	Long: `Run a bounding box query against the GIST index and print the raw
stations inside the viewport, edges included. No clustering is applied.`,
	RunE: runPostGISQuery,
}

var (
	queryViewport string
	queryOutput   string
)

func init() {
	postgisQueryCmd.Flags().StringVar(&queryViewport, "viewport", "", "Viewport as minLat,minLon,maxLat,maxLon")
	postgisQueryCmd.Flags().StringVarP(&queryOutput, "output", "o", "text", "Output format: text, json, geojson")
	postgisQueryCmd.MarkFlagRequired("viewport")

	postgisCmd.AddCommand(postgisImportCmd, postgisExportCmd, postgisStatsCmd, postgisQueryCmd)
}

func runPostGISImport(cmd *cobra.Command, args []string) error {
	points, err := snapshot.Load(snapshotFile)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}

	store, err := postgis.NewStore(cfg.PostGIS, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.InitSchema(); err != nil {
		return err
	}

	start := time.Now()
	if err := store.BulkInsertPoints(points); err != nil {
		return err
	}
	insertTime := time.Since(start)

	if err := store.CreateSpatialIndex(); err != nil {
		return err
	}

	fmt.Printf("%s Imported %s stations in %v (%.0f stations/sec)\n",
		successStyle.Render("✓"),
		statStyle.Render(fmt.Sprintf("%d", len(points))),
		insertTime,
		float64(len(points))/insertTime.Seconds())
	return nil
}

func runPostGISExport(cmd *cobra.Command, args []string) error {
	store, err := postgis.NewStore(cfg.PostGIS, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	points, err := store.LoadPoints()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(snapshotFile), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	if err := snapshot.Save(snapshotFile, points); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	fmt.Printf("%s Exported %s stations to %s\n",
		successStyle.Render("✓"),
		statStyle.Render(fmt.Sprintf("%d", len(points))),
		snapshotFile)
	return nil
}

func runPostGISStats(cmd *cobra.Command, args []string) error {
	store, err := postgis.NewStore(cfg.PostGIS, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats()
	if err != nil {
		return err
	}

	fmt.Println(subtitleStyle.Render("PostGIS stations"))
	fmt.Printf("Rows:        %s\n", statStyle.Render(fmt.Sprintf("%v", stats["row_count"])))
	fmt.Printf("Table size:  %v\n", stats["table_size"])
	fmt.Printf("Index size:  %v\n", stats["index_size"])
	return nil
}

func runPostGISQuery(cmd *cobra.Command, args []string) error {
	box, err := parseViewport(queryViewport)
	if err != nil {
		return err
	}

	store, err := postgis.NewStore(cfg.PostGIS, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	start := time.Now()
	points, err := store.QueryBox(box)
	if err != nil {
		return err
	}
	logger.Info("queried viewport", "stations", len(points), "elapsed", time.Since(start))

	return writeStations(os.Stdout, queryOutput, points)
}

// writeStations prints raw stations as single-station markers
func writeStations(w io.Writer, format string, points []models.Point) error {
	items := make([]models.ClusterItem, len(points))
	for i, p := range points {
		items[i] = models.ClusterItem{Lat: p.Lat, Lon: p.Lon, Count: 1, StationIndex: p.Index}
	}

	if !strings.EqualFold(format, "text") {
		return writeMarkers(w, format, items, cluster.BuildResult{Inserted: len(items)}, 0)
	}

	fmt.Fprintf(w, "Stations in viewport: %s\n", statStyle.Render(fmt.Sprintf("%d", len(items))))
	if len(items) == 0 {
		return nil
	}
	fmt.Fprintln(w, subtitleStyle.Render(fmt.Sprintf("%-10s %-10s %s", "LAT", "LON", "STATION")))
	for _, item := range items {
		fmt.Fprintf(w, "%-10.5f %-10.5f %d\n", item.Lat, item.Lon, item.StationIndex)
	}
	return nil
}
