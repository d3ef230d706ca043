package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/1F47E/station-cluster/pkg/cluster"
	"github.com/1F47E/station-cluster/pkg/metrics"
	"github.com/1F47E/station-cluster/pkg/models"
)

var (
	numQueries   int
	benchWorkers int
	rebuildEvery time.Duration
	metricsAddr  string
	holdFor      time.Duration
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark concurrent cluster extraction",
	Long: `Run extractions at random zoom levels from many goroutines, optionally
rebuilding the tree in the background, and report latency statistics.
With --metrics-addr the prometheus collectors are served on /metrics.`,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().IntVarP(&numQueries, "queries", "q", 1000, "Number of extractions to run")
	benchCmd.Flags().IntVarP(&benchWorkers, "workers", "w", runtime.NumCPU(), "Number of concurrent workers")
	benchCmd.Flags().DurationVar(&rebuildEvery, "rebuild-every", 0, "Rebuild the tree at this interval while querying (0 disables)")
	benchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address, e.g. :9100")
	benchCmd.Flags().DurationVar(&holdFor, "hold", 0, "Keep serving metrics this long after the run")
}

// BenchmarkResult summarises one benchmark run
type BenchmarkResult struct {
	TotalQueries  int
	TotalDuration time.Duration
	AvgDuration   time.Duration
	QueriesPerSec float64
	MinDuration   time.Duration
	MaxDuration   time.Duration
	P99Duration   time.Duration
	TotalMarkers  int64
	AvgMarkers    float64
	Rebuilds      int64
}

func runBench(cmd *cobra.Command, args []string) error {
	if numQueries <= 0 {
		return fmt.Errorf("queries must be positive, got %d", numQueries)
	}
	if benchWorkers <= 0 {
		benchWorkers = 1
	}

	addr := metricsAddr
	if addr == "" {
		addr = cfg.Metrics.Addr
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	collector := metrics.NewCollector(reg)

	var server *http.Server
	if addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg))
		server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		logger.Info("serving metrics", "addr", addr)
	}

	points, err := loadStations()
	if err != nil {
		return err
	}

	builder := cluster.NewBuilder(cfg.ClusterOptions(logger, collector))
	result := builder.Build(points)
	logger.Info("running extractions", "queries", numQueries, "workers", benchWorkers, "stations", result.Inserted)

	bench := benchmarkExtract(builder, points, numQueries, benchWorkers, rebuildEvery)
	writeBenchmark(os.Stdout, bench)

	if server != nil {
		if holdFor > 0 {
			logger.Info("holding metrics server", "for", holdFor)
			time.Sleep(holdFor)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop metrics server: %w", err)
		}
	}
	return nil
}

// benchmarkExtract runs queries extractions at random zooms across workers.
// With a positive rebuild interval the tree is rebuilt from points in the
// background until the queries finish.
func benchmarkExtract(b *cluster.Builder, points []models.Point, queries, workers int, rebuild time.Duration) BenchmarkResult {
	zooms := make([]float64, queries)
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := range zooms {
		zooms[i] = r.Float64() * 18
	}

	durations := make([]time.Duration, queries)
	var totalMarkers atomic.Int64
	var rebuilds atomic.Int64

	done := make(chan struct{})
	var rebuildWG sync.WaitGroup
	if rebuild > 0 {
		rebuildWG.Add(1)
		go func() {
			defer rebuildWG.Done()
			ticker := time.NewTicker(rebuild)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					b.Build(points)
					rebuilds.Add(1)
				}
			}
		}()
	}

	start := time.Now()

	var wg sync.WaitGroup
	perWorker := queries / workers
	for w := 0; w < workers; w++ {
		startIdx := w * perWorker
		endIdx := startIdx + perWorker
		if w == workers-1 {
			endIdx = queries
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			local := 0
			for i := start; i < end; i++ {
				qStart := time.Now()
				items := b.ExtractAt(zooms[i])
				durations[i] = time.Since(qStart)
				local += len(items)
			}
			totalMarkers.Add(int64(local))
		}(startIdx, endIdx)
	}

	wg.Wait()
	elapsed := time.Since(start)
	close(done)
	rebuildWG.Wait()

	return summarise(durations, elapsed, totalMarkers.Load(), rebuilds.Load())
}

func summarise(durations []time.Duration, elapsed time.Duration, markers, rebuilds int64) BenchmarkResult {
	result := BenchmarkResult{
		TotalQueries:  len(durations),
		TotalDuration: elapsed,
		TotalMarkers:  markers,
		Rebuilds:      rebuilds,
	}
	if len(durations) == 0 {
		return result
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}

	result.AvgDuration = sum / time.Duration(len(sorted))
	result.MinDuration = sorted[0]
	result.MaxDuration = sorted[len(sorted)-1]
	result.P99Duration = sorted[(len(sorted)*99)/100]
	result.AvgMarkers = float64(markers) / float64(len(sorted))
	if elapsed > 0 {
		result.QueriesPerSec = float64(len(sorted)) / elapsed.Seconds()
	}
	return result
}

func writeBenchmark(w io.Writer, r BenchmarkResult) {
	content := fmt.Sprintf(
		"✓ Total extractions: %s\n"+
			"✓ Total time: %s\n"+
			"✓ Extractions per second: %s\n"+
			"✓ Average latency: %s\n"+
			"✓ Min / max latency: %s / %s\n"+
			"✓ P99 latency: %s\n"+
			"✓ Average markers per extraction: %s\n"+
			"✓ Rebuilds during run: %s",
		statStyle.Render(fmt.Sprintf("%d", r.TotalQueries)),
		statStyle.Render(r.TotalDuration.String()),
		statStyle.Render(fmt.Sprintf("%.0f", r.QueriesPerSec)),
		statStyle.Render(r.AvgDuration.String()),
		statStyle.Render(r.MinDuration.String()),
		statStyle.Render(r.MaxDuration.String()),
		statStyle.Render(r.P99Duration.String()),
		statStyle.Render(fmt.Sprintf("%.1f", r.AvgMarkers)),
		statStyle.Render(fmt.Sprintf("%d", r.Rebuilds)),
	)
	fmt.Fprintln(w, boxStyle.Render(successStyle.Render("Benchmark Complete!\n\n")+content))
}
