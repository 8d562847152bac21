package collector

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/smaxiso/portfolio-rag/internal/portfolio/content"
	"github.com/smaxiso/portfolio-rag/internal/portfolio/model"
)

const notAvailable = "N/A"

// DatabaseCollector builds chunks from projects, skills and published blog posts.
type DatabaseCollector struct {
	repo content.Repository
}

var _ Collector = (*DatabaseCollector)(nil)

// NewDatabaseCollector creates a collector reading from repo.
func NewDatabaseCollector(repo content.Repository) *DatabaseCollector {
	return &DatabaseCollector{repo: repo}
}

// Name implements Collector.
func (c *DatabaseCollector) Name() string { return "database" }

// Collect runs the three queries independently; a failed query only loses its own chunks.
func (c *DatabaseCollector) Collect(ctx context.Context) ([]model.Chunk, error) {
	var chunks []model.Chunk

	projects, err := c.repo.ListProjects(ctx)
	if err != nil {
		logger.Warnw("skipping projects", "collector", c.Name(), "error", err.Error())
	}
	for _, p := range projects {
		chunks = append(chunks, ProjectChunk(p))
	}

	skills, err := c.repo.ListSkills(ctx)
	if err != nil {
		logger.Warnw("skipping skills", "collector", c.Name(), "error", err.Error())
	}
	chunks = append(chunks, SkillChunks(skills)...)

	posts, err := c.repo.ListPublishedBlogs(ctx)
	if err != nil {
		logger.Warnw("skipping blog posts", "collector", c.Name(), "error", err.Error())
	}
	for _, post := range posts {
		// 草稿绝不能进入索引
		if !post.Published {
			continue
		}
		chunks = append(chunks, BlogChunk(post))
	}

	logger.Infow("collected database content",
		"projects", len(projects),
		"skills", len(skills),
		"blogs", len(posts),
		"chunks", len(chunks),
	)
	return chunks, ctx.Err()
}

// ProjectChunk renders one project as a markdown document.
func ProjectChunk(p content.Project) model.Chunk {
	techs := notAvailable
	if len(p.Technologies) > 0 {
		techs = strings.Join(p.Technologies, ", ")
	}
	end := p.EndDate
	if end == "" {
		end = "Present"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Project: %s\n", p.Title)
	fmt.Fprintf(&b, "Category: %s\n", p.Category)
	fmt.Fprintf(&b, "Tech Stack: %s\n", techs)
	fmt.Fprintf(&b, "Date: %s - %s\n\n", p.StartDate, end)
	fmt.Fprintf(&b, "## Description\n%s\n\n", p.Description)
	b.WriteString("## Additional Info\n")
	fmt.Fprintf(&b, "Position: %s\n", orNA(p.Position))
	fmt.Fprintf(&b, "Company: %s\n", orNA(p.Company))
	fmt.Fprintf(&b, "Repository: %s\n", orNA(p.Repository))

	return model.Chunk{
		ID:   "project_" + p.ID,
		Text: strings.TrimSpace(b.String()),
		Metadata: model.Metadata{
			Source: model.SourceDatabase,
			Type:   model.TypeProject,
			Title:  p.Title,
			URL:    p.Repository,
		},
	}
}

// SkillChunks groups skills by category, one chunk per category in first-seen order.
func SkillChunks(skills []content.Skill) []model.Chunk {
	var order []string
	grouped := make(map[string][]string)
	for _, s := range skills {
		if _, ok := grouped[s.Category]; !ok {
			order = append(order, s.Category)
		}
		grouped[s.Category] = append(grouped[s.Category], fmt.Sprintf("%s (%s)", s.Name, s.Level))
	}

	chunks := make([]model.Chunk, 0, len(order))
	for _, category := range order {
		chunks = append(chunks, model.Chunk{
			ID:   "skills_" + category,
			Text: fmt.Sprintf("Sumit has the following skills in %s:\n- %s", category, strings.Join(grouped[category], "\n- ")),
			Metadata: model.Metadata{
				Source: model.SourceDatabase,
				Type:   model.TypeSkills,
				Title:  "Skills: " + category,
			},
		})
	}
	return chunks
}

// BlogChunk renders a published blog post.
func BlogChunk(post content.BlogPost) model.Chunk {
	text := fmt.Sprintf("# Blog Post: %s\nSummary: %s\nTags: %s\n\n%s",
		post.Title, post.Excerpt, strings.Join(post.Tags, ", "), post.Content)

	return model.Chunk{
		ID:   "blog_" + post.Slug,
		Text: strings.TrimSpace(text),
		Metadata: model.Metadata{
			Source: model.SourceDatabase,
			Type:   model.TypeBlog,
			Title:  post.Title,
		},
	}
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}
