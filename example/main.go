package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/fanfetch"
)

func main() {
	// start mock server (see mock_server.go)
	go StartMockItemServer(":9999")
	time.Sleep(100 * time.Millisecond)

	// grid API: 2 shards × 10 pages = 20 descriptors from one declaration
	descriptors, err := fanfetch.NewDescriptorGrid("Items",
		fanfetch.WithURLTemplate("http://localhost:9999/items?shard={{.shard}}&page={{.page}}"),
		fanfetch.WithDimensions(map[string][]string{
			"shard": {"eu", "us"},
		}),
		fanfetch.WithRangeDimension("page", 1, 10),
		fanfetch.WithGridTimeout(2*time.Second),
	)
	if err != nil {
		slog.Error("failed to create descriptor grid", "error", err)
		os.Exit(1)
	}

	// a request that never answers in time
	slow := fanfetch.MustDescriptor("Unroutable", "http://10.255.255.1/items",
		fanfetch.WithTimeout(500*time.Millisecond),
	)
	descriptors = append(descriptors, slow)

	d, err := fanfetch.New(
		fanfetch.WithCapacity(6),
		fanfetch.WithOutcomeCallback(func(o fanfetch.Outcome) {
			fmt.Printf("  collected #%02d %s\n", o.Index(), o.Source().Name())
		}),
	)
	if err != nil {
		slog.Error("failed to create dispatcher", "error", err)
		os.Exit(1)
	}
	defer d.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report := d.Dispatch(ctx, descriptors)

	fmt.Println()
	fmt.Printf("Report %s (%d outcomes in %s)\n", report.RunID(), report.Len(), report.Duration().Round(time.Millisecond))
	for _, o := range report.Outcomes() {
		line := fanfetch.Fold(o,
			func(s fanfetch.Success) string {
				return fmt.Sprintf("ok      %-22s %5d bytes  %s", s.Source.Name(), len(s.Payload), s.Latency.Round(time.Millisecond))
			},
			func(f fanfetch.Failure) string {
				return fmt.Sprintf("%-7s %-22s %v", "FAILED", f.Source.Name(), f.Err)
			},
		)
		fmt.Printf("  [%02d] %s\n", o.Index(), line)
	}
	fmt.Printf("\n%d ok, %d failed\n", len(report.Successes()), len(report.Failures()))
}
