package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Fantom-foundation/rangeview/datasource/memsource"
	"github.com/Fantom-foundation/rangeview/datasource/sqlsource"
	"github.com/Fantom-foundation/rangeview/inter/events"
	"github.com/Fantom-foundation/rangeview/inter/source"
	"github.com/Fantom-foundation/rangeview/rangeloader"
	"github.com/Fantom-foundation/rangeview/utils/cachescale"
	"github.com/Fantom-foundation/rangeview/vscroll"
)

const itemHeight = 20

type demoParams struct {
	Total     int
	ChunkSize int
	Initial   int
	MaxMemory uint64
	Steps     int
	StepRows  int
	Rows      int
	Latency   time.Duration
	SQLite    string
	Table     string
}

func demoParamsFromViper() demoParams {
	return demoParams{
		Total:     viper.GetInt("total"),
		ChunkSize: viper.GetInt("chunk-size"),
		Initial:   viper.GetInt("initial"),
		MaxMemory: viper.GetUint64("max-memory"),
		Steps:     viper.GetInt("steps"),
		StepRows:  viper.GetInt("step-rows"),
		Rows:      viper.GetInt("rows"),
		Latency:   viper.GetDuration("latency"),
		SQLite:    viper.GetString("sqlite"),
		Table:     viper.GetString("table"),
	}
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Scrolls through a dataset, printing the rendered rows and loader stats",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDemo(cmd.Context(), cmd.OutOrStdout(), demoParamsFromViper())
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)

	demoCmd.Flags().Int("total", 100000, "Number of generated items")
	demoCmd.Flags().Int("chunk-size", 1000, "Fetch granularity, in items")
	demoCmd.Flags().Int("initial", 100, "Number of items loaded upfront")
	demoCmd.Flags().Uint64("max-memory", 1024*1024, "Memory budget, in estimated bytes")
	demoCmd.Flags().Int("steps", 10, "Number of scroll steps")
	demoCmd.Flags().Int("step-rows", 2500, "Rows scrolled per step")
	demoCmd.Flags().Int("rows", 10, "Visible rows")
	demoCmd.Flags().Duration("latency", 5*time.Millisecond, "Simulated fetch latency of generated items")
	demoCmd.Flags().String("sqlite", "", "SQLite database to read records from, generated items are used if empty")
	demoCmd.Flags().String("table", sqlsource.DefaultTable, "SQLite table holding JSON records")

	for _, name := range []string{"total", "chunk-size", "initial", "max-memory", "steps", "step-rows", "rows", "latency", "sqlite", "table"} {
		_ = viper.BindPFlag(name, demoCmd.Flags().Lookup(name))
	}
}

// textContainer renders rows as text lines.
type textContainer struct {
	mu        sync.Mutex
	scrollTop int
	height    int
	lines     []string
	pending   int
}

func (c *textContainer) ScrollTop() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scrollTop
}

func (c *textContainer) Height() int { return c.height }

func (c *textContainer) SetContentHeight(int) {}

func (c *textContainer) Render(rows []vscroll.Row) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = c.lines[:0]
	c.pending = 0
	for _, row := range rows {
		if row.Placeholder {
			c.pending++
		}
		c.lines = append(c.lines, fmt.Sprintf("%8d  %v", row.Index, row.View))
	}
}

func (c *textContainer) scrollTo(px int) {
	c.mu.Lock()
	c.scrollTop = px
	c.mu.Unlock()
}

func (c *textContainer) settled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending == 0
}

func (c *textContainer) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func openSource(ctx context.Context, p demoParams) (source.Source, func(), error) {
	if p.SQLite == "" {
		return memsource.New("demo", memsource.Sequence(p.Total), memsource.WithLatency(p.Latency)), func() {}, nil
	}
	src, err := sqlsource.Open(p.SQLite, p.Table)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := src.Close(); err != nil {
			log.Warn("Failed to close database", "err", err)
		}
	}
	if err := src.Init(ctx); err != nil {
		closeFn()
		return nil, nil, err
	}
	meta, err := src.Metadata(ctx)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	if meta.TotalCount == 0 {
		log.Info("Populating table", "path", p.SQLite, "table", p.Table, "items", p.Total)
		records := make([]source.Item, p.Total)
		for i := range records {
			records[i] = map[string]interface{}{"n": i, "label": fmt.Sprintf("record #%d", i)}
		}
		if err := src.Append(ctx, records...); err != nil {
			closeFn()
			return nil, nil, err
		}
	}
	return src, closeFn, nil
}

func runDemo(ctx context.Context, out io.Writer, p demoParams) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if p.Steps < 0 || p.Rows <= 0 {
		return errors.New("steps must be non-negative and rows positive")
	}
	src, closeSrc, err := openSource(ctx, p)
	if err != nil {
		return err
	}
	defer closeSrc()

	cfg := rangeloader.DefaultConfig(cachescale.Identity)
	cfg.Load.ChunkSize = p.ChunkSize
	cfg.Load.InitialLoadSize = p.Initial
	cfg.MaxMemoryUsage = p.MaxMemory
	if err := cfg.Validate(); err != nil {
		return err
	}
	l := rangeloader.New(cfg)
	defer l.Close()

	evicted := make(chan events.Evict, 64)
	evictSub := l.SubscribeEvict(evicted)
	defer evictSub.Unsubscribe()
	var evictions int
	var evictionsMu sync.Mutex
	go func() {
		for {
			select {
			case <-evicted:
				evictionsMu.Lock()
				evictions++
				evictionsMu.Unlock()
			case <-evictSub.Err():
				return
			}
		}
	}()

	started := time.Now()
	h, err := l.Load(ctx, src)
	if err != nil {
		return err
	}
	defer h.Dispose()
	fmt.Fprintf(out, "source %s: %d items, initial load in %v\n", src.ID(), h.Metadata().TotalCount, time.Since(started).Round(time.Microsecond))

	c := &textContainer{height: p.Rows * itemHeight}
	sc, err := h.SetupVirtualScroll(c, vscroll.Options{
		ItemHeight: itemHeight,
		Buffer:     1,
	})
	if err != nil {
		return err
	}

	for step := 1; step <= p.Steps; step++ {
		c.scrollTo(step * p.StepRows * itemHeight)
		sc.OnScroll()

		deadline := time.Now().Add(5 * time.Second)
		for !c.settled() && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		lines := c.snapshot()
		stats := h.GetStats()
		fmt.Fprintf(out, "step %d: visible %s, loaded %d/%d (%.1f%%), memory %s\n",
			step, sc.Visible(), stats.LoadedItems, stats.TotalItems, stats.LoadProgress*100, common.StorageSize(stats.MemoryUsage))
		if len(lines) != 0 {
			fmt.Fprintln(out, strings.Join(lines, "\n"))
		}
	}

	perf := l.Performance()
	evictionsMu.Lock()
	fmt.Fprintf(out, "chunks fetched %d, avg %v, %.0f items/s, evicted %d\n",
		perf.Samples, perf.AvgDuration.Round(time.Microsecond), perf.Throughput, evictions)
	evictionsMu.Unlock()
	return nil
}
