// Package gemini 提供 Google Gemini LLM 供应商实现。
// Embedding 使用 embedContent，生成使用 streamGenerateContent 的 SSE 流。
package gemini

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/smaxiso/portfolio-rag/pkg/llm"
)

// ProviderName is the registry name.
const ProviderName = "gemini"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config Gemini 供应商配置。
type Config struct {
	// BaseURL API 基础地址。
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// APIKey Google AI API 密钥。
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// EmbedModel 用于生成嵌入的模型。
	EmbedModel string `json:"embed_model" mapstructure:"embed_model"`

	// ChatModel 用于生成回答的模型。
	ChatModel string `json:"chat_model" mapstructure:"chat_model"`

	// Timeout 单次 embedding 请求超时时间，流式生成只受调用方 context 约束。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 最大重试次数，仅针对 5xx 与连接错误。
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://generativelanguage.googleapis.com/v1beta",
		EmbedModel: "text-embedding-004",
		ChatModel:  "gemini-flash-latest",
		Timeout:    120 * time.Second,
		MaxRetries: 3,
	}
}

// Provider Gemini 供应商实现。
type Provider struct {
	config     *Config
	httpClient *http.Client
	backoff    time.Duration
}

var _ llm.Provider = (*Provider)(nil)

// NewProvider 从配置 map 创建 Gemini 供应商。
func NewProvider(configMap map[string]any) (llm.Provider, error) {
	cfg := DefaultConfig()

	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := configMap["api_key"].(string); ok && v != "" {
		cfg.APIKey = v
	}
	if v, ok := configMap["embed_model"].(string); ok && v != "" {
		cfg.EmbedModel = v
	}
	if v, ok := configMap["chat_model"].(string); ok && v != "" {
		cfg.ChatModel = v
	}
	if v, ok := configMap["timeout"].(time.Duration); ok && v > 0 {
		cfg.Timeout = v
	}
	if v, ok := configMap["max_retries"].(int); ok && v >= 0 {
		cfg.MaxRetries = v
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: api_key 是必需的")
	}

	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 Gemini 供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	return &Provider{
		config:     cfg,
		httpClient: &http.Client{},
		backoff:    500 * time.Millisecond,
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

// embedRequest Gemini embedContent 请求体。
type embedRequest struct {
	Model                string  `json:"model"`
	Content              content `json:"content"`
	TaskType             string  `json:"taskType,omitempty"`
	Title                string  `json:"title,omitempty"`
	OutputDimensionality int     `json:"outputDimensionality,omitempty"`
}

// embedResponse Gemini embedContent 响应体。
type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// EmbedWithTask 为单个文本生成向量嵌入。
func (p *Provider) EmbedWithTask(ctx context.Context, text string, opts llm.EmbedOptions) ([]float32, error) {
	req := embedRequest{
		Model:                "models/" + p.config.EmbedModel,
		Content:              content{Parts: []part{{Text: text}}},
		TaskType:             string(opts.Task),
		OutputDimensionality: opts.Dimensions,
	}
	// title 只允许与 RETRIEVAL_DOCUMENT 一起使用
	if opts.Task == llm.TaskDocument {
		req.Title = opts.Title
	}

	body, err := sonic.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	url := fmt.Sprintf("%s/models/%s:embedContent", p.config.BaseURL, p.config.EmbedModel)
	resp, err := p.doRequestWithRetry(ctx, url, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	var embedResp embedResponse
	if err := sonic.Unmarshal(data, &embedResp); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	if len(embedResp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("未返回向量嵌入")
	}
	if opts.Dimensions > 0 && len(embedResp.Embedding.Values) != opts.Dimensions {
		return nil, fmt.Errorf("向量维度不匹配: got %d, want %d", len(embedResp.Embedding.Values), opts.Dimensions)
	}

	return embedResp.Embedding.Values, nil
}

// generateRequest Gemini streamGenerateContent 请求体。
type generateRequest struct {
	Contents []content `json:"contents"`
}

// generateResponse 是 SSE 流中的单个事件。
type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

// GenerateStream 以 SSE 流式生成回答。
// 重试只发生在首个片段之前，已输出的内容不会重复。
func (p *Provider) GenerateStream(ctx context.Context, prompt string, fn llm.FragmentFunc) error {
	body, err := sonic.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return fmt.Errorf("序列化请求失败: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", p.config.BaseURL, p.config.ChatModel)
	resp, err := p.doRequestWithRetry(ctx, url, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "" || data == "[DONE]" {
			continue
		}

		var event generateResponse
		if err := sonic.UnmarshalString(data, &event); err != nil {
			return fmt.Errorf("解析流式响应失败: %w", err)
		}
		if event.PromptFeedback != nil && event.PromptFeedback.BlockReason != "" {
			return fmt.Errorf("prompt blocked: %s", event.PromptFeedback.BlockReason)
		}
		for _, candidate := range event.Candidates {
			for _, pt := range candidate.Content.Parts {
				if pt.Text == "" {
					continue
				}
				if err := fn(pt.Text); err != nil {
					return err
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("读取流式响应失败: %w", err)
	}
	return ctx.Err()
}

// doRequestWithRetry 带重试的请求执行，每次尝试都重新构造请求体。
// 返回的响应状态码一定是 200。
func (p *Provider) doRequestWithRetry(ctx context.Context, url string, body []byte) (*http.Response, error) {
	var lastErr error
	for i := 0; i <= p.config.MaxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i) * p.backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("创建请求失败: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", p.config.APIKey)

		resp, err := p.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("请求失败: %w", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return resp, nil
		case resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = fmt.Errorf("服务器错误，状态码 %d", resp.StatusCode)
		default:
			bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, fmt.Errorf("请求失败，状态码 %d: %s", resp.StatusCode, string(bodyBytes))
		}
	}
	return nil, lastErr
}
