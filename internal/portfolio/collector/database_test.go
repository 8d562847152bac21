package collector

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smaxiso/portfolio-rag/internal/portfolio/content"
	"github.com/smaxiso/portfolio-rag/internal/portfolio/model"
)

func TestProjectChunk(t *testing.T) {
	chunk := ProjectChunk(content.Project{
		ID:           "p1",
		Title:        "Demo",
		Description:  "x",
		Technologies: []string{"Go"},
	})

	assert.Equal(t, "project_p1", chunk.ID)
	assert.Contains(t, chunk.Text, "# Project: Demo")
	assert.Contains(t, chunk.Text, "Tech Stack: Go")
	assert.Contains(t, chunk.Text, "Date:  - Present")
	assert.Contains(t, chunk.Text, "Repository: N/A")
	assert.Equal(t, model.SourceDatabase, chunk.Metadata.Source)
	assert.Equal(t, model.TypeProject, chunk.Metadata.Type)
	assert.Equal(t, "Demo", chunk.Metadata.Title)
	assert.Empty(t, chunk.Metadata.URL)
}

func TestSkillChunksGroupByCategory(t *testing.T) {
	chunks := SkillChunks([]content.Skill{
		{Category: "Backend", Name: "Go", Level: "Expert"},
		{Category: "Frontend", Name: "React", Level: "Intermediate"},
		{Category: "Backend", Name: "Python", Level: "Advanced"},
	})

	require.Len(t, chunks, 2)
	assert.Equal(t, "skills_Backend", chunks[0].ID)
	assert.Equal(t, "Sumit has the following skills in Backend:\n- Go (Expert)\n- Python (Advanced)", chunks[0].Text)
	assert.Equal(t, "Skills: Frontend", chunks[1].Metadata.Title)
	assert.Equal(t, model.TypeSkills, chunks[1].Metadata.Type)
}

func TestDatabaseCollectorNeverEmitsDrafts(t *testing.T) {
	repo := &fakeRepository{
		blogs: []content.BlogPost{
			{Slug: "live", Title: "Live", Content: "published body", Published: true},
			{Slug: "draft-a", Title: "Secret", Content: "draft body"},
			{Slug: "draft-b", Title: "Secret 2", Content: "draft body"},
		},
	}

	chunks, err := NewDatabaseCollector(repo).Collect(context.Background())

	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "blog_live", chunks[0].ID)
	for _, c := range chunks {
		assert.False(t, strings.Contains(c.Text, "draft body"))
	}
}

func TestDatabaseCollectorIsolatesQueryFailure(t *testing.T) {
	repo := &fakeRepository{
		projectsErr: errBoom,
		skills:      []content.Skill{{Category: "Cloud", Name: "AWS", Level: "Advanced"}},
	}

	chunks, err := NewDatabaseCollector(repo).Collect(context.Background())

	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "skills_Cloud", chunks[0].ID)
}
