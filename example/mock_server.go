package main

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

// StartMockItemServer runs a mock paginated item API.
//
// GET /items?shard=<name>&page=<n> sleeps 20-300ms and returns a JSON page
// of items. Roughly one request in ten fails with 503 so the report shows
// failures next to successes.
// Call this in a goroutine before dispatching.
func StartMockItemServer(addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/items", func(w http.ResponseWriter, r *http.Request) {
		shard := r.URL.Query().Get("shard")
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))

		time.Sleep(time.Duration(20+rand.Intn(281)) * time.Millisecond)

		if rand.Intn(10) == 0 {
			http.Error(w, "shard temporarily unavailable", http.StatusServiceUnavailable)
			return
		}

		items := make([]string, 5)
		for i := range items {
			items[i] = shard + "-" + strconv.Itoa(page*len(items)+i)
		}

		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"shard": shard,
			"page":  page,
			"items": items,
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock server error", "error", err)
	}
}
