package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/kart-io/logger"

	"github.com/smaxiso/portfolio-rag/internal/portfolio/content"
	"github.com/smaxiso/portfolio-rag/internal/portfolio/model"
)

const (
	// DefaultRawBaseURL serves raw repository files.
	DefaultRawBaseURL = "https://raw.githubusercontent.com"
	// DefaultAPIBaseURL is the GitHub REST API.
	DefaultAPIBaseURL = "https://api.github.com"
	// DefaultTreeLimit caps the number of paths kept per repository.
	DefaultTreeLimit = 200
)

// ErrNotFound means the requested repository resource does not exist.
var ErrNotFound = errors.New("not found")

var repoPattern = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)`)

// ParseRepository extracts owner and name from a GitHub URL.
func ParseRepository(raw string) (owner, name string, ok bool) {
	m := repoPattern.FindStringSubmatch(strings.TrimRight(strings.TrimSpace(raw), "/"))
	if m == nil {
		return "", "", false
	}
	return m[1], strings.TrimSuffix(m[2], ".git"), true
}

// GitHubConfig configures the forge client.
type GitHubConfig struct {
	RawBaseURL string
	APIBaseURL string
	Token      string
	// Branches are tried in order when fetching README.md.
	Branches  []string
	TreeLimit int
	Timeout   time.Duration
}

// GitHubClient reads README files and trees. All calls are read-only.
type GitHubClient struct {
	raw       *resty.Client
	api       *resty.Client
	branches  []string
	treeLimit int
}

// NewGitHubClient creates a client, filling defaults for empty fields.
func NewGitHubClient(cfg GitHubConfig) *GitHubClient {
	if cfg.RawBaseURL == "" {
		cfg.RawBaseURL = DefaultRawBaseURL
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}
	if len(cfg.Branches) == 0 {
		cfg.Branches = []string{"main", "master"}
	}
	if cfg.TreeLimit <= 0 {
		cfg.TreeLimit = DefaultTreeLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	raw := resty.New().SetBaseURL(cfg.RawBaseURL).SetTimeout(cfg.Timeout)
	api := resty.New().
		SetBaseURL(cfg.APIBaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/vnd.github+json")
	if cfg.Token != "" {
		api.SetAuthToken(cfg.Token)
	}

	return &GitHubClient{
		raw:       raw,
		api:       api,
		branches:  cfg.Branches,
		treeLimit: cfg.TreeLimit,
	}
}

// FetchReadme returns README.md from the first branch that has one.
func (g *GitHubClient) FetchReadme(ctx context.Context, owner, repo string) (string, error) {
	var lastErr error = ErrNotFound
	for _, branch := range g.branches {
		resp, err := g.raw.R().
			SetContext(ctx).
			SetPathParams(map[string]string{"owner": owner, "repo": repo, "branch": branch}).
			Get("/{owner}/{repo}/{branch}/README.md")
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode() == http.StatusOK {
			return resp.String(), nil
		}
	}
	return "", lastErr
}

type repoInfo struct {
	DefaultBranch string `json:"default_branch"`
}

type treeResponse struct {
	Tree []struct {
		Path string `json:"path"`
		Type string `json:"type"`
	} `json:"tree"`
}

// FetchTree returns the blob paths of the default branch, truncated to the tree limit.
func (g *GitHubClient) FetchTree(ctx context.Context, owner, repo string) ([]string, error) {
	params := map[string]string{"owner": owner, "repo": repo}

	var info repoInfo
	if err := g.getJSON(ctx, "/repos/{owner}/{repo}", params, nil, &info); err != nil {
		return nil, fmt.Errorf("repository metadata: %w", err)
	}
	branch := info.DefaultBranch
	if branch == "" {
		branch = "main"
	}

	params["branch"] = branch
	var tree treeResponse
	query := map[string]string{"recursive": "1"}
	if err := g.getJSON(ctx, "/repos/{owner}/{repo}/git/trees/{branch}", params, query, &tree); err != nil {
		return nil, fmt.Errorf("repository tree: %w", err)
	}

	paths := make([]string, 0, min(len(tree.Tree), g.treeLimit))
	for _, item := range tree.Tree {
		if item.Type != "blob" {
			continue
		}
		paths = append(paths, item.Path)
		if len(paths) == g.treeLimit {
			break
		}
	}
	return paths, nil
}

func (g *GitHubClient) getJSON(ctx context.Context, path string, params, query map[string]string, out any) error {
	req := g.api.R().SetContext(ctx).SetPathParams(params)
	if query != nil {
		req.SetQueryParams(query)
	}
	resp, err := req.Get(path)
	if err != nil {
		return err
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode() != http.StatusOK:
		return fmt.Errorf("unexpected status %d", resp.StatusCode())
	}
	return sonic.Unmarshal(resp.Body(), out)
}

// RepositoryReader is the forge contract used by GitHubCollector.
type RepositoryReader interface {
	FetchReadme(ctx context.Context, owner, repo string) (string, error)
	FetchTree(ctx context.Context, owner, repo string) ([]string, error)
}

var _ RepositoryReader = (*GitHubClient)(nil)

// GitHubCollector builds README and file structure chunks for projects hosted on GitHub.
type GitHubCollector struct {
	repo   content.Repository
	reader RepositoryReader
}

var _ Collector = (*GitHubCollector)(nil)

// NewGitHubCollector creates a collector over the project records in repo.
func NewGitHubCollector(repo content.Repository, reader RepositoryReader) *GitHubCollector {
	return &GitHubCollector{repo: repo, reader: reader}
}

// Name implements Collector.
func (c *GitHubCollector) Name() string { return "github" }

// Collect fetches README and tree per repository; a missing one is skipped silently.
func (c *GitHubCollector) Collect(ctx context.Context) ([]model.Chunk, error) {
	projects, err := c.repo.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	var chunks []model.Chunk
	seen := make(map[string]bool)
	for _, p := range projects {
		if !strings.Contains(p.Repository, "github.com") {
			continue
		}
		repoURL := strings.TrimRight(strings.TrimSpace(p.Repository), "/")
		owner, name, ok := ParseRepository(repoURL)
		if !ok || seen[name] {
			continue
		}
		seen[name] = true

		if err := ctx.Err(); err != nil {
			return chunks, err
		}

		meta := model.Metadata{Source: model.SourceGitHub, Title: p.Title, URL: repoURL}

		readme, err := c.reader.FetchReadme(ctx, owner, name)
		switch {
		case err == nil && strings.TrimSpace(readme) != "":
			meta.Type = model.TypeReadme
			chunks = append(chunks, model.Chunk{
				ID:       "github_readme_" + name,
				Text:     fmt.Sprintf("# Project: %s\n## GitHub README\n%s", p.Title, readme),
				Metadata: meta,
			})
		case err != nil && !errors.Is(err, ErrNotFound):
			logger.Warnw("readme fetch failed", "repo", owner+"/"+name, "error", err.Error())
		}

		files, err := c.reader.FetchTree(ctx, owner, name)
		switch {
		case err == nil && len(files) > 0:
			meta.Type = model.TypeStructure
			chunks = append(chunks, model.Chunk{
				ID:       "github_tree_" + name,
				Text:     fmt.Sprintf("# Project: %s\n## File Structure\nThe following files exist in the repository:\n%s", p.Title, strings.Join(files, "\n")),
				Metadata: meta,
			})
		case err != nil && !errors.Is(err, ErrNotFound):
			logger.Warnw("tree fetch failed", "repo", owner+"/"+name, "error", err.Error())
		}
	}

	logger.Infow("collected github content", "repositories", len(seen), "chunks", len(chunks))
	return chunks, nil
}
