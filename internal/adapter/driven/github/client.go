// Package github implements the IssueSource port using the go-github library.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/isitmaintained/internal/domain/model"
	"github.com/ericfisherdev/isitmaintained/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.IssueSource = (*Client)(nil)

// defaultPageLimit bounds the number of issue pages fetched per repository.
const defaultPageLimit = 10

// Client implements the driven.IssueSource port using the go-github library.
type Client struct {
	gh        *gh.Client
	pageLimit int
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client, PAT auth when token is non-empty)
//
// pageLimit caps the pages of 100 issues read per repository; values below 1
// fall back to the default.
func NewClient(token string, pageLimit int) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	return &Client{
		gh:        client,
		pageLimit: normalizePageLimit(pageLimit),
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string, pageLimit int) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{
		gh:        client,
		pageLimit: normalizePageLimit(pageLimit),
	}, nil
}

// FetchIssues retrieves open and closed issues of owner/name, newest first.
// Pull requests returned by the issues endpoint are skipped. Pagination stops
// after the configured page limit.
func (c *Client) FetchIssues(ctx context.Context, owner, name string) ([]model.Issue, error) {
	fullName := owner + "/" + name

	opts := &gh.IssueListByRepoOptions{
		State:     "all",
		Sort:      "created",
		Direction: "desc",
		ListOptions: gh.ListOptions{
			PerPage: 100,
		},
	}

	allIssues := []model.Issue{}

	for pages := 1; ; pages++ {
		issues, resp, err := c.gh.Issues.ListByRepo(ctx, owner, name, opts)
		if err != nil {
			return nil, fmt.Errorf("listing issues for %s (page %d): %w", fullName, opts.ListOptions.Page, err)
		}

		logRateLimit(resp, fullName+"/issues", opts.ListOptions.Page, len(issues))

		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			allIssues = append(allIssues, mapIssue(issue))
		}

		if resp.NextPage == 0 {
			break
		}
		if pages >= c.pageLimit {
			slog.Debug("issue page limit reached", "repo", fullName, "pages", pages)
			break
		}
		opts.ListOptions.Page = resp.NextPage
	}

	return allIssues, nil
}

// mapIssue converts a go-github Issue to a domain model Issue.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
// An issue without closed_at maps to a zero ClosedAt.
func mapIssue(issue *gh.Issue) model.Issue {
	return model.Issue{
		Number:    issue.GetNumber(),
		Open:      issue.GetState() != "closed",
		CreatedAt: issue.GetCreatedAt().Time,
		ClosedAt:  issue.GetClosedAt().Time,
	}
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

func normalizePageLimit(pageLimit int) int {
	if pageLimit < 1 {
		return defaultPageLimit
	}
	return pageLimit
}
