// Package content reads the portfolio records the knowledge base is built from.
// The tables are owned by the portfolio CMS; this package only reads them.
package content

// Project is a portfolio project or work experience entry.
type Project struct {
	ID           string   `gorm:"column:id;primaryKey"`
	Title        string   `gorm:"column:title"`
	Description  string   `gorm:"column:description"`
	Category     string   `gorm:"column:category"`
	Position     string   `gorm:"column:position"`
	Company      string   `gorm:"column:company"`
	Location     string   `gorm:"column:location"`
	StartDate    string   `gorm:"column:startDate"`
	EndDate      string   `gorm:"column:endDate"`
	Technologies []string `gorm:"column:technologies;serializer:json"`
	Repository   string   `gorm:"column:repository"`
	Website      string   `gorm:"column:website"`
}

// TableName overrides the table name used by Project to `projects`.
func (Project) TableName() string { return "projects" }

// Skill is one skill with its proficiency.
type Skill struct {
	ID       uint   `gorm:"column:id;primaryKey"`
	Category string `gorm:"column:category;index"`
	Name     string `gorm:"column:name"`
	Icon     string `gorm:"column:icon"`
	Level    string `gorm:"column:level"`
}

// TableName overrides the table name used by Skill to `skills`.
func (Skill) TableName() string { return "skills" }

// BlogPost is a blog article. Only published posts are ever read.
type BlogPost struct {
	ID        uint     `gorm:"column:id;primaryKey"`
	Slug      string   `gorm:"column:slug;uniqueIndex"`
	Title     string   `gorm:"column:title"`
	Excerpt   string   `gorm:"column:excerpt"`
	Content   string   `gorm:"column:content"`
	Tags      []string `gorm:"column:tags;serializer:json"`
	Published bool     `gorm:"column:published;index"`
}

// TableName overrides the table name used by BlogPost to `blog_posts`.
func (BlogPost) TableName() string { return "blog_posts" }

// SiteConfig is the singleton site configuration.
type SiteConfig struct {
	ID        uint   `gorm:"column:id;primaryKey"`
	SiteURL   string `gorm:"column:site_url"`
	ResumeURL string `gorm:"column:resume_url"`
}

// TableName overrides the table name used by SiteConfig to `site_config`.
func (SiteConfig) TableName() string { return "site_config" }

// ResumeFile is an uploaded résumé; at most one is active.
type ResumeFile struct {
	ID       uint   `gorm:"column:id;primaryKey"`
	URL      string `gorm:"column:url"`
	IsActive bool   `gorm:"column:is_active"`
}

// TableName overrides the table name used by ResumeFile to `resume_files`.
func (ResumeFile) TableName() string { return "resume_files" }

// AllModels lists every table, used by tests and local seeding.
func AllModels() []any {
	return []any{&Project{}, &Skill{}, &BlogPost{}, &SiteConfig{}, &ResumeFile{}}
}
