package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"resume-match-go/internal/config"
)

// TextEmbedder 文本向量化能力的抽象：embed(text) -> vector。
// 提供方内部实现不在本系统范围内，调用方只依赖这一契约。
type TextEmbedder interface {
	// EmbedStrings 把一批文本转换为向量
	EmbedStrings(ctx context.Context, texts []string) ([][]float64, error)
	// GetDimensions 返回向量维度D
	GetDimensions() int
}

// AliyunEmbedder 通过 OpenAI 兼容端点实现 TextEmbedder
type AliyunEmbedder struct {
	apiKey     string
	model      string
	dimensions int
	httpClient *http.Client
	baseURL    string
}

// NewAliyunEmbedder 创建阿里云Embedder（OpenAI兼容接口）
func NewAliyunEmbedder(apiKey string, cfg config.EmbeddingConfig) (*AliyunEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API密钥不能为空")
	}

	model := cfg.Model
	if model == "" {
		model = "text-embedding-v3"
	}
	dimensions := cfg.Dimensions
	if dimensions == 0 {
		dimensions = 1024
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1/embeddings"
	}

	return &AliyunEmbedder{
		apiKey:     apiKey,
		model:      model,
		dimensions: dimensions,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
	}, nil
}

// GetDimensions 返回嵌入器配置的维度
func (a *AliyunEmbedder) GetDimensions() int {
	return a.dimensions
}

// openAIEmbeddingRequest OpenAI兼容的Embedding请求体
type openAIEmbeddingRequest struct {
	Input      interface{} `json:"input"` // string 或 []string
	Model      string      `json:"model"`
	Dimensions int         `json:"dimensions,omitempty"`
}

// openAIEmbeddingResponse OpenAI兼容的Embedding响应体
type openAIEmbeddingResponse struct {
	Object string             `json:"object"`
	Data   []openAIDataEntry  `json:"data"`
	Model  string             `json:"model"`
	Error  *openAIErrorDetail `json:"error,omitempty"`
}

type openAIDataEntry struct {
	Object    string    `json:"object"`
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

// openAIErrorDetail HTTP 200 下仍可能携带的API级错误
type openAIErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// EmbedStrings 将文本转换为向量。
// 输入逐条截断到 MaxInputLength，遵守服务端的最大输入长度。
func (a *AliyunEmbedder) EmbedStrings(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	truncated := make([]string, len(texts))
	for i, t := range texts {
		truncated[i] = Truncate(t, MaxInputLength)
	}

	var inputBody interface{}
	if len(truncated) == 1 {
		inputBody = truncated[0]
	} else {
		inputBody = truncated
	}

	reqBody := openAIEmbeddingRequest{
		Input: inputBody,
		Model: a.model,
	}
	if a.dimensions > 0 && a.dimensions != 1024 {
		reqBody.Dimensions = a.dimensions
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiError openAIErrorDetail
		if json.Unmarshal(body, &apiError) == nil && apiError.Message != "" {
			return nil, fmt.Errorf("嵌入API调用失败, 状态码: %d, 类型: %s, 错误: %s", resp.StatusCode, apiError.Type, apiError.Message)
		}
		return nil, fmt.Errorf("嵌入API调用失败, 状态码: %d, 响应: %s", resp.StatusCode, string(body))
	}

	var embeddingResp openAIEmbeddingResponse
	if err := json.Unmarshal(body, &embeddingResp); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}

	if embeddingResp.Error != nil && embeddingResp.Error.Message != "" {
		return nil, fmt.Errorf("嵌入API调用失败(响应内错误): %s", embeddingResp.Error.Message)
	}
	if len(embeddingResp.Data) == 0 {
		return nil, fmt.Errorf("API响应不包含嵌入数据")
	}

	embeddings := make([][]float64, len(embeddingResp.Data))
	for _, item := range embeddingResp.Data {
		if item.Index < 0 || item.Index >= len(embeddings) {
			return nil, fmt.Errorf("嵌入数据索引 %d 超出范围", item.Index)
		}
		embeddings[item.Index] = item.Embedding
	}

	return embeddings, nil
}
