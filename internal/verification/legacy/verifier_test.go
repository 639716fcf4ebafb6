package legacy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustex/internal/verification/models"
	"trustex/internal/verification/providers"
	"trustex/internal/verification/tables"
	id "trustex/pkg/domain"
)

type fakeSearcher struct {
	mu        sync.Mutex
	responses map[string]string
	failing   map[string]bool
	queries   []string
}

func (f *fakeSearcher) Search(_ context.Context, query string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.failing[query] {
		return nil, providers.NewProviderError(providers.ErrorTimeout, "search", "slow", nil)
	}
	return []byte(f.responses[query]), nil
}

func testTables() *tables.Tables {
	return &tables.Tables{
		Version:               "t1",
		Thresholds:            tables.Thresholds{VerifiedMin: 70, SuspiciousMin: 40},
		LegacyBaseline:        50,
		LegacyEmptyConfidence: 0.1,
		Queries: []tables.Query{
			{Name: "registry", Template: "{name} registration"},
			{Name: "fraud", Template: "{name} fraud"},
		},
		Keywords: []tables.Keyword{
			{Term: "registered", Weight: 15},
			{Term: "annual report", Weight: 10},
			{Term: "complaint", Weight: -20},
		},
		Disallowed: []string{"ponzi"},
	}
}

func testSubject() models.Subject {
	return models.Subject{CompanyID: id.NewCompanyID(), Name: "Acme", Symbol: "ACME"}
}

func TestVerifier_OneCallPerTemplate(t *testing.T) {
	search := &fakeSearcher{responses: map[string]string{
		"Acme registration": `[{"title":"Acme","snippet":"registered company, annual report filed"}]`,
		"Acme fraud":        `[]`,
	}}
	v := NewVerifier(search, testTables(), nil)

	profile, err := v.Verify(context.Background(), testSubject())
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme registration", "Acme fraud"}, search.queries)
	assert.Equal(t, models.SourceLegacy, profile.Source)
	assert.Equal(t, 75, *profile.OverallScore)
	assert.Equal(t, models.ProfileVerified, profile.Status)
	assert.Equal(t, "t1", profile.TableVersion)
	assert.ElementsMatch(t, []string{"registered", "annual report"}, profile.Reasons)
	require.Len(t, profile.Checks, 2)
}

func TestVerifier_SkipsFailedQueries(t *testing.T) {
	search := &fakeSearcher{
		responses: map[string]string{"Acme fraud": "Acme | customer complaint | https://x.test"},
		failing:   map[string]bool{"Acme registration": true},
	}
	profile, err := NewVerifier(search, testTables(), nil).Verify(context.Background(), testSubject())
	require.NoError(t, err)
	assert.Equal(t, 30, *profile.OverallScore)
	assert.Equal(t, models.ProfileFailed, profile.Status)
	assert.Equal(t, []string{"complaint"}, profile.RiskFactors)
	assert.False(t, profile.Checks[0].Passed)
	assert.Equal(t, "search failed", profile.Checks[0].Detail)
}

func TestVerifier_AllQueriesFailing(t *testing.T) {
	search := &fakeSearcher{failing: map[string]bool{"Acme registration": true, "Acme fraud": true}}
	_, err := NewVerifier(search, testTables(), nil).Verify(context.Background(), testSubject())
	require.Error(t, err)
	var pe *providers.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, providers.ErrorTimeout, pe.Category)
}

func TestVerifier_MalformedResultsStillDeriveProfile(t *testing.T) {
	search := &fakeSearcher{responses: map[string]string{
		"Acme registration": `{"results":[`,
		"Acme fraud":        `not json but also { broken`,
	}}
	profile, err := NewVerifier(search, testTables(), nil).Verify(context.Background(), testSubject())
	require.NoError(t, err)
	assert.Equal(t, 50, *profile.OverallScore)
	assert.Equal(t, models.ProfileSuspicious, profile.Status)
}

func TestDerive_DisallowedKeywordForcesFailed(t *testing.T) {
	subject := testSubject()
	outcomes := []QueryOutcome{{
		Query:   tables.Query{Name: "registry"},
		Results: []models.SearchResult{{Snippet: "registered, annual report, registered"}, {Snippet: "classic Ponzi"}},
	}}
	profile := Derive(subject, outcomes, testTables())
	assert.Equal(t, 75, *profile.OverallScore)
	assert.Equal(t, models.ProfileFailed, profile.Status)
	assert.Equal(t, []string{"ponzi"}, profile.FraudKeywords)
}

func TestDerive_EmptyEvidence(t *testing.T) {
	profile := Derive(testSubject(), nil, testTables())
	assert.Equal(t, 0.1, profile.Confidence)
	assert.Equal(t, 50, *profile.OverallScore)
}

func TestSearchClient(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer search-token", r.Header.Get("Authorization"))
		switch r.URL.Query().Get("q") {
		case "down":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			_, _ = w.Write([]byte(`[{"title":"` + r.URL.Query().Get("q") + `"}]`))
		}
	}))
	defer srv.Close()

	client := NewSearchClient(SearchConfig{URL: srv.URL, Token: "search-token", Timeout: time.Second, MaxResponseBytes: 1024})

	raw, err := client.Search(context.Background(), "acme reviews")
	require.NoError(t, err)
	assert.Equal(t, []models.SearchResult{{Title: "acme reviews"}}, Adapter{}.Parse(raw))

	_, err = client.Search(context.Background(), "down")
	require.Error(t, err)
	assert.Equal(t, providers.ErrorProviderOutage, providers.GetCategory(err))
	assert.Equal(t, 2, calls, "failed search calls are not retried")

	_, err = NewSearchClient(SearchConfig{}).Search(context.Background(), "x")
	assert.ErrorIs(t, err, providers.ErrNotConfigured)
}
