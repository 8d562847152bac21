// Package rag provides knowledge base and retrieval options.
package rag

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/smaxiso/portfolio-rag/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains knowledge base, retrieval and answer policy settings.
type Options struct {
	// IndexName is the vector index (collection) name.
	IndexName string `json:"index-name" mapstructure:"index-name"`
	// Dimension is the embedding dimensionality of the index.
	Dimension int `json:"dimension" mapstructure:"dimension"`
	// Metric is the similarity metric, only cosine is supported.
	Metric string `json:"metric" mapstructure:"metric"`

	ChunkSize    int `json:"chunk-size" mapstructure:"chunk-size"`
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`
	BatchSize    int `json:"batch-size" mapstructure:"batch-size"`

	TopK     int     `json:"top-k" mapstructure:"top-k"`
	MinScore float64 `json:"min-score" mapstructure:"min-score"`

	// HistoryTurns is how many recent conversation turns reach the prompt.
	HistoryTurns int `json:"history-turns" mapstructure:"history-turns"`
	// GreetingMaxLen marks queries shorter than this as conversational.
	GreetingMaxLen int `json:"greeting-max-len" mapstructure:"greeting-max-len"`
	// DeclineWithoutContext answers long off-topic queries with a fixed refusal
	// instead of calling the model.
	DeclineWithoutContext bool `json:"decline-without-context" mapstructure:"decline-without-context"`

	// ResumePath is the local résumé PDF, relative to ProjectRoot.
	ResumePath  string `json:"resume-path" mapstructure:"resume-path"`
	ProjectRoot string `json:"project-root" mapstructure:"project-root"`
	// SiteURL resolves relative résumé URLs when the site config has none.
	SiteURL string `json:"site-url" mapstructure:"site-url"`

	GitHubToken     string   `json:"-" mapstructure:"github-token"`
	GitHubBranches  []string `json:"github-branches" mapstructure:"github-branches"`
	GitHubTreeLimit int      `json:"github-tree-limit" mapstructure:"github-tree-limit"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		IndexName:       "portfolio-rag",
		Dimension:       768,
		Metric:          "cosine",
		ChunkSize:       800,
		ChunkOverlap:    100,
		BatchSize:       50,
		TopK:            4,
		MinScore:        0.35,
		HistoryTurns:    6,
		GreetingMaxLen:  10,
		ResumePath:      "frontend/public/assets/sumit_kumar.pdf",
		ProjectRoot:     ".",
		GitHubBranches:  []string{"main", "master"},
		GitHubTreeLimit: 200,
	}
}

// AddFlags adds flags for RAG options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "rag."
	fs.StringVar(&o.IndexName, p+"index-name", o.IndexName, "Vector index name.")
	fs.IntVar(&o.Dimension, p+"dimension", o.Dimension, "Embedding dimensionality.")
	fs.StringVar(&o.Metric, p+"metric", o.Metric, "Similarity metric.")
	fs.IntVar(&o.ChunkSize, p+"chunk-size", o.ChunkSize, "Size of text chunks in characters.")
	fs.IntVar(&o.ChunkOverlap, p+"chunk-overlap", o.ChunkOverlap, "Overlap between chunks in characters.")
	fs.IntVar(&o.BatchSize, p+"batch-size", o.BatchSize, "Vectors per upsert batch.")
	fs.IntVar(&o.TopK, p+"top-k", o.TopK, "Number of matches per query.")
	fs.Float64Var(&o.MinScore, p+"min-score", o.MinScore, "Matches must score strictly above this.")
	fs.IntVar(&o.HistoryTurns, p+"history-turns", o.HistoryTurns, "Conversation turns kept in the prompt.")
	fs.IntVar(&o.GreetingMaxLen, p+"greeting-max-len", o.GreetingMaxLen, "Queries shorter than this are treated as greetings.")
	fs.BoolVar(&o.DeclineWithoutContext, p+"decline-without-context", o.DeclineWithoutContext, "Refuse long queries without relevant context instead of calling the model.")
	fs.StringVar(&o.ResumePath, p+"resume-path", o.ResumePath, "Local résumé PDF path, relative to project-root.")
	fs.StringVar(&o.ProjectRoot, p+"project-root", o.ProjectRoot, "Project root for local files.")
	fs.StringVar(&o.SiteURL, p+"site-url", o.SiteURL, "Fallback site URL for relative résumé links.")
	fs.StringVar(&o.GitHubToken, p+"github-token", o.GitHubToken, "GitHub token for higher API rate limits.")
	fs.StringSliceVar(&o.GitHubBranches, p+"github-branches", o.GitHubBranches, "Branches tried in order when fetching README files.")
	fs.IntVar(&o.GitHubTreeLimit, p+"github-tree-limit", o.GitHubTreeLimit, "Maximum file paths kept per repository tree.")
}

// Validate validates the RAG options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.IndexName == "" {
		errs = append(errs, fmt.Errorf("rag index-name is required"))
	}
	if o.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("rag dimension must be positive"))
	}
	if o.Metric != "cosine" {
		errs = append(errs, fmt.Errorf("rag metric %q is not supported", o.Metric))
	}
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("rag chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("rag chunk-overlap must be within [0, chunk-size)"))
	}
	if o.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("rag batch-size must be positive"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("rag top-k must be positive"))
	}
	if o.MinScore < -1 || o.MinScore > 1 {
		errs = append(errs, fmt.Errorf("rag min-score must be within [-1, 1]"))
	}
	if o.HistoryTurns < 0 {
		errs = append(errs, fmt.Errorf("rag history-turns must not be negative"))
	}
	if len(o.GitHubBranches) == 0 {
		errs = append(errs, fmt.Errorf("rag github-branches must not be empty"))
	}
	return errs
}
