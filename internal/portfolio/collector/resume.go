package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/kart-io/logger"
	"github.com/ledongthuc/pdf"

	"github.com/smaxiso/portfolio-rag/internal/portfolio/chunker"
	"github.com/smaxiso/portfolio-rag/internal/portfolio/content"
	"github.com/smaxiso/portfolio-rag/internal/portfolio/model"
)

// ResumeTitle is the title carried by every résumé chunk.
const ResumeTitle = "Sumit Kumar Resume"

// ErrNoResumeSource means neither a local file nor a remote URL was found.
var ErrNoResumeSource = errors.New("no resume source found")

// ResumeConfig locates the résumé PDF.
type ResumeConfig struct {
	// ProjectRoot anchors LocalPath.
	ProjectRoot string
	// LocalPath is tried first.
	LocalPath string
	// SiteURL resolves relative remote URLs when the site config has none.
	SiteURL string

	ChunkSize    int
	ChunkOverlap int
}

// ResumeCollector extracts and chunks the résumé PDF.
type ResumeCollector struct {
	cfg      ResumeConfig
	repo     content.Repository
	client   *resty.Client
	splitter *chunker.Splitter
}

var _ Collector = (*ResumeCollector)(nil)

// NewResumeCollector creates a résumé collector. repo may be nil, in which
// case only the local file is considered.
func NewResumeCollector(cfg ResumeConfig, repo content.Repository, client *resty.Client) *ResumeCollector {
	if client == nil {
		client = resty.New()
	}
	splitter := chunker.New()
	if cfg.ChunkSize > 0 {
		splitter.Size = cfg.ChunkSize
		splitter.Overlap = cfg.ChunkOverlap
	}
	return &ResumeCollector{cfg: cfg, repo: repo, client: client, splitter: splitter}
}

// Name implements Collector.
func (c *ResumeCollector) Name() string { return "resume" }

// Collect yields zero chunks rather than an error when the résumé cannot be found or read.
func (c *ResumeCollector) Collect(ctx context.Context) ([]model.Chunk, error) {
	path, remote, err := c.resolve(ctx)
	if err != nil {
		logger.Warnw("resume skipped", "collector", c.Name(), "error", err.Error())
		return nil, nil
	}

	if path == "" {
		tmp, err := c.download(ctx, remote)
		if err != nil {
			logger.Warnw("resume download failed", "collector", c.Name(), "url", remote, "error", err.Error())
			return nil, nil
		}
		defer os.Remove(tmp)
		path = tmp
	}

	text, err := ExtractPDFText(path)
	if err != nil {
		logger.Warnw("resume extraction failed", "collector", c.Name(), "path", path, "error", err.Error())
		return nil, nil
	}

	chunks := c.chunks(text)
	logger.Infow("collected resume", "chunks", len(chunks), "local", remote == "")
	return chunks, nil
}

// chunks splits text; a résumé that fits one window is typed resume, otherwise
// every window is a resume_fragment.
func (c *ResumeCollector) chunks(text string) []model.Chunk {
	meta := model.Metadata{
		Source: model.SourceResume,
		Type:   model.TypeResume,
		Title:  ResumeTitle,
	}
	chunks := c.splitter.Split(text, meta)
	if len(chunks) > 1 {
		for i := range chunks {
			chunks[i].Metadata.Type = model.TypeResumeFragment
		}
	}
	return chunks
}

// resolve returns either a local path or a remote URL, in priority order:
// local file, site config résumé URL, active résumé file.
func (c *ResumeCollector) resolve(ctx context.Context) (string, string, error) {
	if c.cfg.LocalPath != "" {
		local := c.cfg.LocalPath
		if !filepath.IsAbs(local) {
			local = filepath.Join(c.cfg.ProjectRoot, local)
		}
		if info, err := os.Stat(local); err == nil && !info.IsDir() {
			return local, "", nil
		}
		logger.Debugw("local resume not found", "path", local)
	}

	if c.repo == nil {
		return "", "", ErrNoResumeSource
	}

	var raw, siteURL string
	cfg, err := c.repo.GetSiteConfig(ctx)
	if err != nil {
		return "", "", fmt.Errorf("read site config: %w", err)
	}
	if cfg != nil {
		raw = strings.TrimSpace(cfg.ResumeURL)
		siteURL = cfg.SiteURL
	}
	if raw == "" {
		file, err := c.repo.GetActiveResume(ctx)
		if err != nil {
			return "", "", fmt.Errorf("read active resume: %w", err)
		}
		if file != nil {
			raw = strings.TrimSpace(file.URL)
		}
	}
	if raw == "" {
		return "", "", ErrNoResumeSource
	}

	if siteURL == "" {
		siteURL = c.cfg.SiteURL
	}
	resolved, err := resolveURL(raw, siteURL)
	if err != nil {
		return "", "", err
	}
	return "", resolved, nil
}

// resolveURL resolves a relative résumé URL against the site URL.
func resolveURL(raw, base string) (string, error) {
	ref, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid resume url %q: %w", raw, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	if base == "" {
		return "", fmt.Errorf("relative resume url %q without site url: %w", raw, ErrNoResumeSource)
	}
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid site url %q: %w", base, err)
	}
	return baseURL.ResolveReference(ref).String(), nil
}

// download writes the remote PDF to a temporary file the caller removes.
func (c *ResumeCollector) download(ctx context.Context, remote string) (string, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(remote)
	if err != nil {
		return "", err
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode())
	}

	out, err := os.CreateTemp("", "resume-*.pdf")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, body); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", err
	}
	return out.Name(), nil
}

// ExtractPDFText returns the plain text of every readable page joined by blank lines.
func ExtractPDFText(path string) (text string, err error) {
	// ledongthuc/pdf panics on some malformed streams
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	return joinPages(reader.NumPage(), func(i int) (string, error) {
		page := reader.Page(i)
		if page.V.IsNull() {
			return "", nil
		}
		return page.GetPlainText(nil)
	}), nil
}

// joinPages reads pages 1..n. A page that fails or panics is skipped and the
// rest are kept.
func joinPages(n int, pageText func(int) (string, error)) string {
	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		content, err := readPage(i, pageText)
		if err != nil {
			logger.Warnw("skipping unreadable pdf page", "page", i, "error", err.Error())
			continue
		}
		if s := strings.TrimSpace(content); s != "" {
			pages = append(pages, s)
		}
	}
	return strings.Join(pages, "\n\n")
}

func readPage(i int, pageText func(int) (string, error)) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed page: %v", r)
		}
	}()
	return pageText(i)
}
