package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/blame/pkg/config"
	"github.com/Sumatoshi-tech/blame/pkg/identity"
	"github.com/Sumatoshi-tech/blame/pkg/ownership"
	"github.com/Sumatoshi-tech/blame/pkg/report"
)

// Tool name constants.
const (
	ToolNameWhoOwns  = "who_owns"
	ToolNameTopOwner = "top_owner"
)

// Sentinel errors for tool input validation.
var (
	// ErrEmptyRepoPath indicates the repo_path parameter is empty.
	ErrEmptyRepoPath = errors.New("repo_path parameter is required and must not be empty")
	// ErrRepoPathNotAbsolute indicates the repo_path is not an absolute path.
	ErrRepoPathNotAbsolute = errors.New("repo_path must be an absolute path")
	// ErrRepoNotFound indicates the repository path does not exist.
	ErrRepoNotFound = errors.New("repository path does not exist")
	// ErrNegativeLimit indicates a negative contributor limit.
	ErrNegativeLimit = errors.New("limit must not be negative")
	// ErrNoContributors indicates the matched files have no attributed lines.
	ErrNoContributors = errors.New("no lines attributed to any contributor")
)

// defaultPatterns ranks the whole working tree.
var defaultPatterns = []string{"."}

// WhoOwnsInput is the input schema for the who_owns tool.
type WhoOwnsInput struct {
	RepoPath string   `json:"repo_path"          jsonschema:"absolute path inside a Git working tree"`
	Patterns []string `json:"patterns,omitempty" jsonschema:"files, directories or ** globs relative to repo_path (default: whole tree)"`
	GitHub   bool     `json:"github,omitempty"   jsonschema:"resolve contributors to GitHub usernames"`
	GroupBy  string   `json:"group_by,omitempty" jsonschema:"group contributors by email (default) or name"`
	Limit    int      `json:"limit,omitempty"    jsonschema:"maximum number of contributors to return (default: all)"`
}

// TopOwnerInput is the input schema for the top_owner tool.
type TopOwnerInput struct {
	RepoPath string   `json:"repo_path"          jsonschema:"absolute path inside a Git working tree"`
	Patterns []string `json:"patterns,omitempty" jsonschema:"files, directories or ** globs relative to repo_path (default: whole tree)"`
	GitHub   bool     `json:"github,omitempty"   jsonschema:"return the GitHub username instead of the display name"`
}

// TopOwner is the result of the top_owner tool.
type TopOwner struct {
	Name     string  `json:"name"`
	Username string  `json:"username,omitempty"`
	Lines    int     `json:"lines"`
	Share    float64 `json:"share"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

type ownershipTools struct {
	base *config.Config
	deps ownership.Deps
}

func newOwnershipTools(deps ServerDeps) *ownershipTools {
	base := deps.Config
	if base == nil {
		base = config.Default()
	}

	return &ownershipTools{
		base: base,
		deps: ownership.Deps{
			Logger:  deps.Logger,
			Tracer:  deps.Tracer,
			Metrics: deps.BlameMetrics,
			Runner:  deps.Runner,
		},
	}
}

func (o *ownershipTools) handleWhoOwns(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input WhoOwnsInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateRepoPath(input.RepoPath)
	if err != nil {
		return errorResult(err)
	}

	if input.Limit < 0 {
		return errorResult(fmt.Errorf("%w: %d", ErrNegativeLimit, input.Limit))
	}

	cfg, err := o.config(input.GroupBy)
	if err != nil {
		return errorResult(err)
	}

	rep, err := ownership.Run(ctx, cfg, query(input.RepoPath, input.Patterns, input.GitHub), o.deps)
	if err != nil {
		return errorResult(err)
	}

	doc := rep.Document
	if input.Limit > 0 && len(doc.Contributors) > input.Limit {
		doc.Contributors = doc.Contributors[:input.Limit]
	}

	return jsonResult(doc)
}

func (o *ownershipTools) handleTopOwner(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input TopOwnerInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateRepoPath(input.RepoPath)
	if err != nil {
		return errorResult(err)
	}

	rep, err := ownership.Run(ctx, o.base, query(input.RepoPath, input.Patterns, input.GitHub), o.deps)
	if err != nil {
		return errorResult(err)
	}

	top, ok := rep.Document.Top()
	if !ok {
		return errorResult(ErrNoContributors)
	}

	if input.GitHub && top.Username == "" {
		return errorResult(fmt.Errorf("%w for %s", identity.ErrNoIdentityResolved, top.Name))
	}

	return jsonResult(topOwner(top))
}

// config derives the configuration of one call.
func (o *ownershipTools) config(groupBy string) (*config.Config, error) {
	cfg := *o.base

	if groupBy != "" {
		policy, err := identity.ParsePolicy(groupBy)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", err, groupBy)
		}

		cfg.Identity.GroupBy = string(policy)
	}

	return &cfg, nil
}

func query(repoPath string, patterns []string, github bool) ownership.Query {
	if len(patterns) == 0 {
		patterns = defaultPatterns
	}

	return ownership.Query{Dir: repoPath, Patterns: patterns, ResolveUsernames: github}
}

func topOwner(c report.Contributor) TopOwner {
	return TopOwner{Name: c.Name, Username: c.Username, Lines: c.Lines, Share: c.Share}
}

func validateRepoPath(path string) error {
	if path == "" {
		return ErrEmptyRepoPath
	}

	if !filepath.IsAbs(path) {
		return fmt.Errorf("%w: %s", ErrRepoPathNotAbsolute, path)
	}

	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrRepoNotFound, path)
	}

	return nil
}
