package driven

import (
	"context"

	"github.com/ericfisherdev/isitmaintained/internal/domain/model"
)

// IssueSource defines the driven port for reading a repository's issue history.
type IssueSource interface {
	// FetchIssues returns open and closed issues of owner/name. Pull requests
	// are excluded.
	FetchIssues(ctx context.Context, owner, name string) ([]model.Issue, error)
}
