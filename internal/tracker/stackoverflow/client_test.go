package stackoverflow

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/bissquit/linkwatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:     baseURL,
		Key:         "app-key",
		AccessToken: "user-token",
		Timeout:     2 * time.Second,
		RateLimit:   100,
	}
}

func questionLink(questionID int64) *domain.Link {
	return &domain.Link{
		ID:            "link-1",
		Type:          domain.LinkTypeStackOverflow,
		OriginalURL:   "https://stackoverflow.com/questions/79012345",
		StackOverflow: &domain.StackOverflowDetails{QuestionID: questionID},
	}
}

func TestNewClient_RequiresBaseURLAndTimeout(t *testing.T) {
	_, err := NewClient(Config{Timeout: time.Second})
	require.Error(t, err)

	_, err = NewClient(Config{BaseURL: "https://api.stackexchange.com/2.3"})
	require.Error(t, err)
}

func TestFetch_Question(t *testing.T) {
	activity := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var gotPath string
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = map[string]string{
			"site":         r.URL.Query().Get("site"),
			"key":          r.URL.Query().Get("key"),
			"access_token": r.URL.Query().Get("access_token"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"items": [{
				"title": "How to parse JSON in Go?",
				"last_activity_date": ` + strconv.FormatInt(activity.Unix(), 10) + `,
				"owner": {"display_name": "gopher"}
			}]
		}`))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	detail, err := client.Fetch(context.Background(), questionLink(79012345))
	require.NoError(t, err)

	assert.Equal(t, "/questions/79012345", gotPath)
	assert.Equal(t, map[string]string{
		"site":         "stackoverflow",
		"key":          "app-key",
		"access_token": "user-token",
	}, gotQuery)
	assert.Equal(t, activity, detail.CreatedAt)
	assert.Equal(t, `StackOverflow question "How to parse JSON in Go?" by gopher`, detail.Description)
}

func TestFetch_AnonymousOmitsCredentials(t *testing.T) {
	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`{
			"items": [{
				"title": "q",
				"last_activity_date": 1748779200,
				"owner": {"display_name": "u"}
			}]
		}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Key = ""
	cfg.AccessToken = ""

	client, err := NewClient(cfg)
	require.NoError(t, err)

	_, err = client.Fetch(context.Background(), questionLink(1))
	require.NoError(t, err)

	assert.NotContains(t, gotQuery, "key")
	assert.NotContains(t, gotQuery, "access_token")
}

func TestFetch_EmptyItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"items": []}`))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	_, err = client.Fetch(context.Background(), questionLink(404404))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestFetch_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	_, err = client.Fetch(context.Background(), questionLink(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestFetch_MissingDetails(t *testing.T) {
	client, err := NewClient(testConfig("http://localhost:1"))
	require.NoError(t, err)

	_, err = client.Fetch(context.Background(), &domain.Link{ID: "bare", Type: domain.LinkTypeStackOverflow})
	require.Error(t, err)
}
