// Package llm 提供统一的 LLM 供应商抽象层。
// Embedding 带任务类型，生成以流式片段回调的方式输出。
package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// TaskType biases an embedding toward one side of an asymmetric search.
type TaskType string

const (
	// TaskDocument is used for content written to the index.
	TaskDocument TaskType = "RETRIEVAL_DOCUMENT"
	// TaskQuery is used for user questions.
	TaskQuery TaskType = "RETRIEVAL_QUERY"
)

// EmbedOptions parameterizes one embedding call.
type EmbedOptions struct {
	Task TaskType
	// Title is only honored for TaskDocument.
	Title string
	// Dimensions requests a fixed output size; zero keeps the model default.
	Dimensions int
}

// EmbeddingProvider 定义 Embedding 供应商接口。
type EmbeddingProvider interface {
	// EmbedWithTask 为单个文本生成向量嵌入。
	EmbedWithTask(ctx context.Context, text string, opts EmbedOptions) ([]float32, error)

	// Name 返回供应商名称。
	Name() string
}

// FragmentFunc receives generated text as it arrives. Returning an error stops
// the stream and is returned from GenerateStream.
type FragmentFunc func(fragment string) error

// GenerationProvider 定义流式生成接口。
type GenerationProvider interface {
	// GenerateStream 以流式方式生成回答，每个非空片段调用一次 fn。
	GenerateStream(ctx context.Context, prompt string, fn FragmentFunc) error

	// Name 返回供应商名称。
	Name() string
}

// Provider 同时支持 Embedding 和生成的完整供应商。
type Provider interface {
	EmbeddingProvider
	GenerationProvider
}

// ProviderFactory 供应商工厂函数类型。
type ProviderFactory func(config map[string]any) (Provider, error)

// registry 供应商注册表。
var registry = &providerRegistry{
	providers: make(map[string]ProviderFactory),
}

type providerRegistry struct {
	mu        sync.RWMutex
	providers map[string]ProviderFactory
}

// RegisterProvider 注册供应商工厂，重复注册时后者覆盖前者。
func RegisterProvider(name string, factory ProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.providers[name] = factory
}

// NewProvider 根据名称创建供应商实例。
func NewProvider(name string, config map[string]any) (Provider, error) {
	registry.mu.RLock()
	factory, ok := registry.providers[name]
	registry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}

	return factory(config)
}

// ListProviders 列出所有已注册的供应商名称。
func ListProviders() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.providers))
	for name := range registry.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
