// Package stackoverflow provides the StackOverflow update provider.
package stackoverflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/bissquit/linkwatch/internal/domain"
	"golang.org/x/time/rate"
)

// Config holds StackExchange API client configuration.
type Config struct {
	BaseURL     string
	Key         string
	AccessToken string
	Timeout     time.Duration
	RateLimit   float64
}

// Client fetches updates for StackOverflow questions via the
// StackExchange API.
type Client struct {
	config  Config
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a new StackOverflow client.
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.New("stackoverflow client: base url is required")
	}
	if config.Timeout <= 0 {
		return nil, errors.New("stackoverflow client: timeout is required")
	}

	slog.Info("stackoverflow client configured",
		"base_url", config.BaseURL,
		"authenticated", config.Key != "",
		"rate_limit", config.RateLimit,
	)

	return &Client{
		config:  config,
		http:    &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}, nil
}

// Type returns the link type this provider serves.
func (c *Client) Type() domain.LinkType {
	return domain.LinkTypeStackOverflow
}

type questionsResponse struct {
	Items []struct {
		Title            string `json:"title"`
		LastActivityDate int64  `json:"last_activity_date"`
		Owner            struct {
			DisplayName string `json:"display_name"`
		} `json:"owner"`
	} `json:"items"`
}

// Fetch retrieves the latest activity for a StackOverflow question.
func (c *Client) Fetch(ctx context.Context, link *domain.Link) (*domain.UpdateDetail, error) {
	if link.StackOverflow == nil {
		return nil, fmt.Errorf("link %s has no stackoverflow details", link.ID)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("site", "stackoverflow")
	if c.config.Key != "" {
		params.Set("key", c.config.Key)
	}
	if c.config.AccessToken != "" {
		params.Set("access_token", c.config.AccessToken)
	}

	reqURL := fmt.Sprintf("%s/questions/%d?%s", c.config.BaseURL, link.StackOverflow.QuestionID, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stackoverflow request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stackoverflow request: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var questions questionsResponse
	if err := json.Unmarshal(body, &questions); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(questions.Items) == 0 {
		return nil, fmt.Errorf("question %d not found", link.StackOverflow.QuestionID)
	}

	q := questions.Items[0]
	return &domain.UpdateDetail{
		CreatedAt:   time.Unix(q.LastActivityDate, 0).UTC(),
		Description: fmt.Sprintf("StackOverflow question %q by %s", q.Title, q.Owner.DisplayName),
	}, nil
}
