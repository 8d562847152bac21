package content

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(AllModels()...))
	return db
}

func TestListPublishedBlogsSkipsDrafts(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&[]BlogPost{
		{Slug: "live", Title: "Live", Published: true, Tags: []string{"go"}},
		{Slug: "draft-1", Title: "Draft", Published: false},
		{Slug: "draft-2", Title: "Draft 2", Published: false},
	}).Error)

	posts, err := NewRepository(db).ListPublishedBlogs(context.Background())

	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "live", posts[0].Slug)
	assert.Equal(t, []string{"go"}, posts[0].Tags)
}

func TestListProjectsDecodesTechnologies(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&Project{ID: "p1", Title: "Demo", Technologies: []string{"Go", "Redis"}}).Error)

	projects, err := NewRepository(db).ListProjects(context.Background())

	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, []string{"Go", "Redis"}, projects[0].Technologies)
}

func TestSingletonLookupsReturnNilWhenMissing(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	cfg, err := repo.GetSiteConfig(ctx)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	resume, err := repo.GetActiveResume(ctx)
	require.NoError(t, err)
	assert.Nil(t, resume)
}

func TestGetActiveResume(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&[]ResumeFile{
		{URL: "https://cdn.example.com/old.pdf", IsActive: false},
		{URL: "https://cdn.example.com/current.pdf", IsActive: true},
	}).Error)

	resume, err := NewRepository(db).GetActiveResume(context.Background())

	require.NoError(t, err)
	require.NotNil(t, resume)
	assert.Equal(t, "https://cdn.example.com/current.pdf", resume.URL)
}
