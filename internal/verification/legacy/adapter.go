package legacy

import (
	"bytes"
	"encoding/json"
	"strings"

	"trustex/internal/verification/models"
)

// Adapter turns raw search output into structured results. It never fails:
// unreadable input yields an empty slice.
type Adapter struct{}

// Parse accepts a JSON array of results, an object carrying the array under
// "results" or "items", or plain text with one result per line in the form
// "title | snippet | url" (snippet and url optional).
func (Adapter) Parse(raw []byte) []models.SearchResult {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	switch trimmed[0] {
	case '[':
		return parseArray(trimmed)
	case '{':
		return parseEnvelope(trimmed)
	default:
		return parseLines(string(trimmed))
	}
}

type rawResult struct {
	Title       string `json:"title"`
	Name        string `json:"name"`
	Snippet     string `json:"snippet"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Link        string `json:"link"`
}

func (r rawResult) normalize() (models.SearchResult, bool) {
	out := models.SearchResult{
		Title:   strings.TrimSpace(firstNonEmpty(r.Title, r.Name)),
		Snippet: strings.TrimSpace(firstNonEmpty(r.Snippet, r.Description)),
		URL:     strings.TrimSpace(firstNonEmpty(r.URL, r.Link)),
	}
	return out, out.Title != "" || out.Snippet != ""
}

func parseArray(raw []byte) []models.SearchResult {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	var out []models.SearchResult
	for _, item := range items {
		var r rawResult
		if err := json.Unmarshal(item, &r); err != nil {
			// Bare strings are accepted as snippets.
			var s string
			if json.Unmarshal(item, &s) == nil && strings.TrimSpace(s) != "" {
				out = append(out, models.SearchResult{Snippet: strings.TrimSpace(s)})
			}
			continue
		}
		if res, ok := r.normalize(); ok {
			out = append(out, res)
		}
	}
	return out
}

func parseEnvelope(raw []byte) []models.SearchResult {
	var env struct {
		Results json.RawMessage `json:"results"`
		Items   json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil
	}
	switch {
	case len(env.Results) > 0:
		return parseArray(env.Results)
	case len(env.Items) > 0:
		return parseArray(env.Items)
	}
	return nil
}

func parseLines(text string) []models.SearchResult {
	var out []models.SearchResult
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 3)
		res := models.SearchResult{Title: strings.TrimSpace(parts[0])}
		if len(parts) > 1 {
			res.Snippet = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			res.URL = strings.TrimSpace(parts[2])
		}
		out = append(out, res)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
