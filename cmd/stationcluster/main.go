package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/1F47E/station-cluster/pkg/config"
	"github.com/1F47E/station-cluster/pkg/logging"
	"github.com/1F47E/station-cluster/pkg/models"
	"github.com/1F47E/station-cluster/pkg/postgis"
	"github.com/1F47E/station-cluster/pkg/snapshot"
)

var (
	configFile   string
	snapshotFile string
	logLevel     string
	logFormat    string
	fromPostGIS  bool

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "stationcluster",
	Short: "Adaptive quadtree clustering for monitoring stations",
	Long: `Build a quadtree over monitoring-station coordinates and extract the
markers to draw at a given map zoom: individual stations when zoomed in,
aggregated clusters when zoomed out.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.Logging.Level = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			loaded.Logging.Format = logFormat
		}
		if err := loaded.Validate(); err != nil {
			return err
		}

		cfg = loaded
		logger = logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yaml", "Config file path")
	rootCmd.PersistentFlags().StringVarP(&snapshotFile, "file", "f", "data/stations"+snapshot.Extension, "Station snapshot path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text, json")
	rootCmd.PersistentFlags().BoolVar(&fromPostGIS, "postgis", false, "Read stations from PostGIS instead of the snapshot")

	rootCmd.AddCommand(generateCmd, extractCmd, sweepCmd, benchCmd, postgisCmd, demoCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadStations reads the station list from the snapshot or PostGIS
func loadStations() ([]models.Point, error) {
	if !fromPostGIS {
		logger.Info("loading snapshot", "file", snapshotFile)
		points, err := snapshot.Load(snapshotFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load snapshot: %w", err)
		}
		return points, nil
	}

	store, err := postgis.NewStore(cfg.PostGIS, logger)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	logger.Info("loading stations from postgis", "host", cfg.PostGIS.Host, "database", cfg.PostGIS.Database)
	points, err := store.LoadPoints()
	if err != nil {
		return nil, fmt.Errorf("failed to load stations: %w", err)
	}
	return points, nil
}
