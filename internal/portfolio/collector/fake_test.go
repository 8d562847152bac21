package collector

import (
	"context"
	"errors"

	"github.com/smaxiso/portfolio-rag/internal/portfolio/content"
)

type fakeRepository struct {
	projects   []content.Project
	skills     []content.Skill
	blogs      []content.BlogPost
	siteConfig *content.SiteConfig
	resume     *content.ResumeFile

	projectsErr error
}

var _ content.Repository = (*fakeRepository)(nil)

func (f *fakeRepository) ListProjects(context.Context) ([]content.Project, error) {
	return f.projects, f.projectsErr
}

func (f *fakeRepository) ListSkills(context.Context) ([]content.Skill, error) {
	return f.skills, nil
}

// ListPublishedBlogs deliberately returns drafts too so the collector's own
// guard is exercised.
func (f *fakeRepository) ListPublishedBlogs(context.Context) ([]content.BlogPost, error) {
	return f.blogs, nil
}

func (f *fakeRepository) GetSiteConfig(context.Context) (*content.SiteConfig, error) {
	return f.siteConfig, nil
}

func (f *fakeRepository) GetActiveResume(context.Context) (*content.ResumeFile, error) {
	return f.resume, nil
}

var errBoom = errors.New("boom")
