// Package github provides the GitHub update provider.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bissquit/linkwatch/internal/domain"
	"golang.org/x/time/rate"
)

// Config holds GitHub client configuration.
type Config struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	RateLimit float64
}

// fetchFunc retrieves the update for one GitHub event type.
type fetchFunc func(ctx context.Context, d *domain.GithubDetails) (*domain.UpdateDetail, error)

// Client fetches updates for GitHub links via the REST API. It dispatches
// on the link's event type to one of three sub-fetchers (issue, pull
// request, repository); coverage of every event type is verified at
// construction.
type Client struct {
	config   Config
	http     *http.Client
	limiter  *rate.Limiter
	fetchers map[domain.GithubEventType]fetchFunc
}

// NewClient creates a new GitHub client.
// Returns an error if any GitHub event type is left without a fetcher.
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.New("github client: base url is required")
	}
	if config.Timeout <= 0 {
		return nil, errors.New("github client: timeout is required")
	}

	c := &Client{
		config:  config,
		http:    &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}

	c.fetchers = map[domain.GithubEventType]fetchFunc{
		domain.GithubEventIssue:       c.fetchIssue,
		domain.GithubEventPullRequest: c.fetchPullRequest,
		domain.GithubEventRepository:  c.fetchRepository,
	}

	for _, et := range domain.GithubEventTypes() {
		if _, ok := c.fetchers[et]; !ok {
			return nil, fmt.Errorf("github client: no fetcher for event type %s", et)
		}
	}

	slog.Info("github client configured",
		"base_url", config.BaseURL,
		"authenticated", config.Token != "",
		"rate_limit", config.RateLimit,
	)

	return c, nil
}

// Type returns the link type this provider serves.
func (c *Client) Type() domain.LinkType {
	return domain.LinkTypeGitHub
}

// Fetch retrieves the latest update for a GitHub link.
func (c *Client) Fetch(ctx context.Context, link *domain.Link) (*domain.UpdateDetail, error) {
	if link.Github == nil {
		return nil, fmt.Errorf("link %s has no github details", link.ID)
	}

	fetch, ok := c.fetchers[link.Github.EventType]
	if !ok {
		return nil, fmt.Errorf("unsupported github event type: %s", link.Github.EventType)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	return fetch(ctx, link.Github)
}

type issueResponse struct {
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
	User      struct {
		Login string `json:"login"`
	} `json:"user"`
}

type repoResponse struct {
	FullName string    `json:"full_name"`
	PushedAt time.Time `json:"pushed_at"`
}

func (c *Client) fetchIssue(ctx context.Context, d *domain.GithubDetails) (*domain.UpdateDetail, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/issues/%d", c.config.BaseURL, d.Owner, d.Repo, d.ItemNumber)

	var issue issueResponse
	if err := c.get(ctx, url, &issue); err != nil {
		return nil, err
	}

	return &domain.UpdateDetail{
		CreatedAt:   issue.UpdatedAt,
		Description: fmt.Sprintf("GitHub issue %q by %s", issue.Title, issue.User.Login),
	}, nil
}

func (c *Client) fetchPullRequest(ctx context.Context, d *domain.GithubDetails) (*domain.UpdateDetail, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.config.BaseURL, d.Owner, d.Repo, d.ItemNumber)

	var pr issueResponse
	if err := c.get(ctx, url, &pr); err != nil {
		return nil, err
	}

	return &domain.UpdateDetail{
		CreatedAt:   pr.UpdatedAt,
		Description: fmt.Sprintf("GitHub pull request %q by %s", pr.Title, pr.User.Login),
	}, nil
}

func (c *Client) fetchRepository(ctx context.Context, d *domain.GithubDetails) (*domain.UpdateDetail, error) {
	url := fmt.Sprintf("%s/repos/%s/%s", c.config.BaseURL, d.Owner, d.Repo)

	var repo repoResponse
	if err := c.get(ctx, url, &repo); err != nil {
		return nil, err
	}

	return &domain.UpdateDetail{
		CreatedAt:   repo.PushedAt,
		Description: fmt.Sprintf("GitHub repository %s received new commits", repo.FullName),
	}, nil
}

func (c *Client) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("github request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github request %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
