// Command scoring-provider is a local stand-in for the external scoring
// provider. It scores from the request's signals so the primary path can be
// exercised end to end. SCORING_FAIL_RATE (0..1) makes a share of requests
// return 503 to drive the fallback path.
package main

import (
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

type scoreRequest struct {
	CompanyName      string   `json:"companyName"`
	Description      string   `json:"description"`
	Industry         string   `json:"industry,omitempty"`
	RegistrationYear *int     `json:"registrationYear,omitempty"`
	Signals          []string `json:"signals"`
	Snippets         []string `json:"snippets"`
	Context          string   `json:"context"`
}

type scoreResponse struct {
	Score            int      `json:"score"`
	Status           string   `json:"status"`
	Confidence       float64  `json:"confidence"`
	Reasons          []string `json:"reasons"`
	RiskFactors      []string `json:"riskFactors"`
	FraudKeywords    []string `json:"fraudKeywords"`
	ProcessingTimeMs int64    `json:"processingTimeMs"`
}

var signalWeights = map[string]int{
	"has_website":         10,
	"no_website":          -10,
	"established_company": 15,
	"young_company":       -5,
	"short_description":   -10,
	"tiny_supply":         -5,
	"disallowed_terms":    -60,
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	token := os.Getenv("SCORING_TOKEN")
	failRate, _ := strconv.ParseFloat(os.Getenv("SCORING_FAIL_RATE"), 64)
	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8091"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/score", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		if failRate > 0 && rand.Float64() < failRate {
			http.Error(w, `{"error":"unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		var req scoreRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"bad_request"}`, http.StatusBadRequest)
			return
		}

		res := scoreResponse{Score: 55, Confidence: 0.6, Reasons: []string{}, RiskFactors: []string{}, FraudKeywords: []string{}}
		for _, sig := range req.Signals {
			weight, ok := signalWeights[sig]
			if !ok {
				continue
			}
			res.Score += weight
			if weight > 0 {
				res.Reasons = append(res.Reasons, sig)
			} else {
				res.RiskFactors = append(res.RiskFactors, sig)
			}
		}
		if strings.Contains(strings.ToLower(req.Description), "guaranteed returns") {
			res.FraudKeywords = append(res.FraudKeywords, "guaranteed returns")
		}
		res.Score = max(0, min(100, res.Score))
		switch {
		case res.Score >= 70:
			res.Status = "legitimate"
		case res.Score >= 40:
			res.Status = "uncertain"
		default:
			res.Status = "fraudulent"
		}
		res.ProcessingTimeMs = time.Since(start).Milliseconds()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(res)
		logger.Info("scored", "company", req.CompanyName, "score", res.Score)
	})

	logger.Info("scoring provider mock listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
