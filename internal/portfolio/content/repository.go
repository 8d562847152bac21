package content

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Repository is the read contract the collectors depend on.
type Repository interface {
	ListProjects(ctx context.Context) ([]Project, error)
	ListSkills(ctx context.Context) ([]Skill, error)
	// ListPublishedBlogs never returns drafts.
	ListPublishedBlogs(ctx context.Context) ([]BlogPost, error)
	// GetSiteConfig returns nil when no configuration row exists.
	GetSiteConfig(ctx context.Context) (*SiteConfig, error)
	// GetActiveResume returns nil when no résumé is active.
	GetActiveResume(ctx context.Context) (*ResumeFile, error)
}

// GormRepository implements Repository on top of gorm.
type GormRepository struct {
	db *gorm.DB
}

var _ Repository = (*GormRepository)(nil)

// NewRepository creates a repository over db.
func NewRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// ListProjects returns every project ordered by id.
func (r *GormRepository) ListProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := r.db.WithContext(ctx).Order("id").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// ListSkills returns every skill ordered by category then id.
func (r *GormRepository) ListSkills(ctx context.Context) ([]Skill, error) {
	var skills []Skill
	if err := r.db.WithContext(ctx).Order("category").Order("id").Find(&skills).Error; err != nil {
		return nil, fmt.Errorf("list skills: %w", err)
	}
	return skills, nil
}

// ListPublishedBlogs returns published posts ordered by id.
func (r *GormRepository) ListPublishedBlogs(ctx context.Context) ([]BlogPost, error) {
	var posts []BlogPost
	err := r.db.WithContext(ctx).
		Where("published = ?", true).
		Order("id").
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("list published blogs: %w", err)
	}
	return posts, nil
}

// GetSiteConfig returns the first configuration row.
func (r *GormRepository) GetSiteConfig(ctx context.Context) (*SiteConfig, error) {
	var cfg SiteConfig
	err := r.db.WithContext(ctx).Order("id").First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get site config: %w", err)
	}
	return &cfg, nil
}

// GetActiveResume returns the first active résumé file.
func (r *GormRepository) GetActiveResume(ctx context.Context) (*ResumeFile, error) {
	var file ResumeFile
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("id").First(&file).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active resume: %w", err)
	}
	return &file, nil
}
