// Command search-provider is a local stand-in for the generic search surface
// used by the legacy verification path. It answers GET /search?q= with a
// JSON array of {title, snippet, url}, or with pipe-separated lines when
// SEARCH_FORMAT=lines.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
)

type result struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	lines := os.Getenv("SEARCH_FORMAT") == "lines"
	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8092"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /search", func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			http.Error(w, "missing q", http.StatusBadRequest)
			return
		}
		results := fabricate(q)
		if lines {
			w.Header().Set("Content-Type", "text/plain")
			for _, res := range results {
				fmt.Fprintf(w, "%s | %s | %s\n", res.Title, res.Snippet, res.URL)
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(results)
		logger.Info("search", "q", q, "results", len(results))
	})

	logger.Info("search provider mock listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func fabricate(q string) []result {
	slug := url.PathEscape(strings.ToLower(strings.Fields(q)[0]))
	out := []result{
		{Title: q + " - official site", Snippet: "Registered company with audited accounts.", URL: "https://" + slug + ".example"},
		{Title: q + " reviews", Snippet: "Customers report a legitimate, trusted service.", URL: "https://reviews.example/" + slug},
	}
	if strings.Contains(strings.ToLower(q), "scam") || strings.Contains(strings.ToLower(q), "fraud") {
		out = append(out, result{Title: "Forum thread", Snippet: "No complaints found.", URL: "https://forum.example/" + slug})
	}
	return out
}
