package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/1F47E/station-cluster/pkg/cluster"
	"github.com/1F47E/station-cluster/pkg/geojson"
	"github.com/1F47E/station-cluster/pkg/markers"
	"github.com/1F47E/station-cluster/pkg/models"
)

var (
	zoom         float64
	outputFormat string
	viewportFlag string
	limit        int
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract the markers to draw at a zoom level",
	Long: `Build the quadtree from the station list and print the clusters and
individual stations visible at the given zoom, optionally culled to a
viewport given as minLat,minLon,maxLat,maxLon.`,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().Float64VarP(&zoom, "zoom", "z", 10, "Map zoom level")
	extractCmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json, geojson")
	extractCmd.Flags().StringVar(&viewportFlag, "viewport", "", "Viewport as minLat,minLon,maxLat,maxLon")
	extractCmd.Flags().IntVarP(&limit, "limit", "l", 20, "Markers listed in text output (0 for all)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	var viewport *models.BoundingBox
	if viewportFlag != "" {
		box, err := parseViewport(viewportFlag)
		if err != nil {
			return err
		}
		viewport = &box
	}

	points, err := loadStations()
	if err != nil {
		return err
	}

	builder := cluster.NewBuilder(cfg.ClusterOptions(logger, nil))
	result := builder.Build(points)
	logger.Info("built index", "inserted", result.Inserted, "dropped", result.Dropped, "depth", result.Stats.MaxDepth)

	start := time.Now()
	items := builder.ExtractAt(zoom)
	if viewport != nil {
		items, err = markers.NewIndex(items).QueryBox(*viewport)
		if err != nil {
			return fmt.Errorf("failed to filter viewport: %w", err)
		}
	}
	elapsed := time.Since(start)

	return writeMarkers(os.Stdout, outputFormat, items, result, elapsed)
}

func writeMarkers(w io.Writer, format string, items []models.ClusterItem, result cluster.BuildResult, elapsed time.Duration) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(items); err != nil {
			return fmt.Errorf("failed to encode markers: %w", err)
		}
		return nil
	case "geojson":
		data, err := geojson.Marshal(items)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "text":
		writeMarkerReport(w, items, result, elapsed)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

func writeMarkerReport(w io.Writer, items []models.ClusterItem, result cluster.BuildResult, elapsed time.Duration) {
	clusters, singles, covered := 0, 0, 0
	for _, item := range items {
		if item.IsCluster {
			clusters++
		} else {
			singles++
		}
		covered += item.Count
	}

	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Zoom %g", zoom)))
	fmt.Fprintf(w, "Stations indexed:   %s (%d dropped)\n", statStyle.Render(strconv.Itoa(result.Inserted)), result.Dropped)
	fmt.Fprintf(w, "Markers:            %s\n", statStyle.Render(strconv.Itoa(len(items))))
	fmt.Fprintf(w, "  clusters:         %d\n", clusters)
	fmt.Fprintf(w, "  stations:         %d\n", singles)
	fmt.Fprintf(w, "Stations covered:   %d\n", covered)
	fmt.Fprintf(w, "Extraction time:    %v\n", elapsed)

	if len(items) == 0 {
		fmt.Fprintln(w, dimStyle.Render("nothing to draw"))
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, subtitleStyle.Render(fmt.Sprintf("%-10s %-10s %-8s %s", "LAT", "LON", "COUNT", "STATION")))
	for i, item := range items {
		if limit > 0 && i >= limit {
			fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("... %d more", len(items)-limit)))
			break
		}
		station := strconv.Itoa(int(item.StationIndex))
		count := strconv.Itoa(item.Count)
		if item.IsCluster {
			station = "-"
			count = infoStyle.Render(count)
		}
		fmt.Fprintf(w, "%-10.5f %-10.5f %-8s %s\n", item.Lat, item.Lon, count, station)
	}
}

// parseViewport reads "minLat,minLon,maxLat,maxLon"
func parseViewport(s string) (models.BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return models.BoundingBox{}, fmt.Errorf("viewport needs 4 comma separated values, got %d", len(parts))
	}

	values := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return models.BoundingBox{}, fmt.Errorf("invalid viewport value %q: %w", part, err)
		}
		values[i] = v
	}

	box := models.BoundingBox{MinLat: values[0], MinLon: values[1], MaxLat: values[2], MaxLon: values[3]}
	if !box.Valid() {
		return models.BoundingBox{}, fmt.Errorf("viewport min must not exceed max: %s", s)
	}
	return box, nil
}
