package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/1F47E/station-cluster/pkg/cluster"
)

var (
	sweepMin  float64
	sweepMax  float64
	sweepStep float64
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Report marker counts across zoom levels",
	Long: `Build the quadtree once and extract at every zoom between --min and --max,
checking at each step that every indexed station is covered exactly once.`,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 0, "First zoom level")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 18, "Last zoom level")
	sweepCmd.Flags().Float64Var(&sweepStep, "step", 1, "Zoom increment")
}

// sweepRow is the outcome of one zoom level
type sweepRow struct {
	Zoom        float64
	MinDistance float64
	Markers     int
	Clusters    int
	Largest     int
	Covered     int
}

func runSweep(cmd *cobra.Command, args []string) error {
	if sweepStep <= 0 {
		return fmt.Errorf("step must be positive, got %g", sweepStep)
	}
	if sweepMax < sweepMin {
		return fmt.Errorf("max zoom %g is below min zoom %g", sweepMax, sweepMin)
	}

	points, err := loadStations()
	if err != nil {
		return err
	}

	builder := cluster.NewBuilder(cfg.ClusterOptions(logger, nil))
	result := builder.Build(points)

	rows := sweep(builder, sweepMin, sweepMax, sweepStep)
	writeSweep(os.Stdout, rows, result.Inserted)

	for _, row := range rows {
		if row.Covered != result.Inserted {
			return fmt.Errorf("zoom %g covers %d stations, expected %d", row.Zoom, row.Covered, result.Inserted)
		}
	}
	return nil
}

func sweep(b *cluster.Builder, minZoom, maxZoom, step float64) []sweepRow {
	var rows []sweepRow
	for i := 0; ; i++ {
		z := minZoom + float64(i)*step
		if z > maxZoom {
			break
		}

		row := sweepRow{Zoom: z, MinDistance: b.MinDistance(z)}
		for _, item := range b.ExtractAt(z) {
			row.Markers++
			row.Covered += item.Count
			if item.IsCluster {
				row.Clusters++
			}
			if item.Count > row.Largest {
				row.Largest = item.Count
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func writeSweep(w io.Writer, rows []sweepRow, inserted int) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Zoom sweep over %d stations", inserted)))
	fmt.Fprintln(w, subtitleStyle.Render(fmt.Sprintf("%-6s %-10s %-8s %-9s %-8s %s", "ZOOM", "MIN DIST", "MARKERS", "CLUSTERS", "LARGEST", "COVERED")))
	for _, row := range rows {
		covered := successStyle.Render(fmt.Sprintf("%d", row.Covered))
		if row.Covered != inserted {
			covered = errorStyle.Render(fmt.Sprintf("%d", row.Covered))
		}
		fmt.Fprintf(w, "%-6g %-10g %-8d %-9d %-8d %s\n",
			row.Zoom, row.MinDistance, row.Markers, row.Clusters, row.Largest, covered)
	}
}
