// Package model defines the data shared by the knowledge base pipeline and the chat path.
package model

// Source names the origin of a chunk.
type Source string

// Chunk sources.
const (
	SourceDatabase Source = "Database"
	SourceResume   Source = "Resume PDF"
	SourceGitHub   Source = "GitHub"
)

// ChunkType classifies chunk content.
type ChunkType string

// Chunk types.
const (
	TypeProject        ChunkType = "project"
	TypeSkills         ChunkType = "skills"
	TypeBlog           ChunkType = "blog"
	TypeResume         ChunkType = "resume"
	TypeResumeFragment ChunkType = "resume_fragment"
	TypeReadme         ChunkType = "readme"
	TypeStructure      ChunkType = "structure"
)

// Metadata is the fixed-shape provenance carried by every chunk.
type Metadata struct {
	Source Source
	Type   ChunkType
	Title  string
	URL    string
}

// Metadata keys as stored in the vector index.
const (
	KeyText   = "text"
	KeySource = "source"
	KeyType   = "type"
	KeyTitle  = "title"
	KeyURL    = "url"
)

// MetadataKeys lists every stored key in a stable order.
var MetadataKeys = []string{KeyText, KeySource, KeyType, KeyTitle, KeyURL}

// Chunk is the atomic unit of embedding and retrieval.
// ID is deterministic from source and identifier so re-ingestion overwrites.
type Chunk struct {
	ID       string
	Text     string
	Metadata Metadata
}

// Values flattens the chunk into the map stored next to its vector.
// Every key is present; absent values are the empty string because vector
// stores reject null metadata.
func (c Chunk) Values() map[string]string {
	return map[string]string{
		KeyText:   c.Text,
		KeySource: string(c.Metadata.Source),
		KeyType:   string(c.Metadata.Type),
		KeyTitle:  c.Metadata.Title,
		KeyURL:    c.Metadata.URL,
	}
}

// VectorRecord is one upsert unit.
type VectorRecord struct {
	ID       string
	Values   []float32
	Metadata map[string]string
}

// NewVectorRecord pairs a chunk with its embedding.
func NewVectorRecord(c Chunk, vector []float32) VectorRecord {
	return VectorRecord{ID: c.ID, Values: vector, Metadata: c.Values()}
}

// Match is a transient similarity hit. Score is cosine similarity in [-1, 1].
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]string
}

// Text returns the chunk text stored with the match.
func (m Match) Text() string {
	return m.Metadata[KeyText]
}

// Role is the speaker of a conversation turn.
type Role string

// Conversation roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one message of the client-held conversation history.
type Turn struct {
	Role    Role   `json:"role" binding:"required"`
	Content string `json:"content"`
}
