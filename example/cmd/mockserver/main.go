// Standalone mock item server for trying the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/fanfetch fetch -c example/config.yaml
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync/atomic"
	"time"
)

func main() {
	fmt.Println("Mock item server starting on :9999")
	fmt.Println("GET /items?shard=<name>&page=<n>, about 10% of requests fail with 503")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	var served atomic.Int64

	http.HandleFunc("/items", func(w http.ResponseWriter, r *http.Request) {
		shard := r.URL.Query().Get("shard")
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))

		time.Sleep(time.Duration(20+rand.Intn(281)) * time.Millisecond)
		n := served.Add(1)

		if rand.Intn(10) == 0 {
			slog.Info("injected failure", "shard", shard, "page", page, "request", n)
			http.Error(w, "shard temporarily unavailable", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"shard": shard,
			"page":  page,
			"items": []string{
				shard + "-" + strconv.Itoa(page*2),
				shard + "-" + strconv.Itoa(page*2+1),
			},
		})
	})

	if err := http.ListenAndServe(":9999", nil); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
