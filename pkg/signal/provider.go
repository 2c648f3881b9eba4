package signal

import (
	"context"
	"fmt"
)

// TextAnalyzer 文本分析服务提供商接口
type TextAnalyzer interface {
	// AnalyzeText 分析文本内容，返回分类与情感
	AnalyzeText(ctx context.Context, text string) (*TextAnalysis, error)
}

// ImageAnalyzer 图片分析服务提供商接口
type ImageAnalyzer interface {
	// AnalyzeImage 分析图片内容，调用前需校验图片可达性
	AnalyzeImage(ctx context.Context, imageURL string) (*SafeSearchResult, error)
}

// Provider 同时支持文本与图片分析的提供商
type Provider interface {
	TextAnalyzer
	ImageAnalyzer
	// Name 获取提供商名称
	Name() string
}

// ProviderType 定义分析服务提供商类型
type ProviderType string

const (
	ProviderGoogle    ProviderType = "google"
	ProviderSimulated ProviderType = "simulated"
)

// ProviderConfig 分析服务提供商配置
type ProviderConfig struct {
	Type      ProviderType `json:"type"`
	APIKey    string       `json:"api_key"`
	ProjectID string       `json:"project_id,omitempty"`
}

// NewProvider 创建分析服务提供商实例
// simulated仅用于开发和测试环境
func NewProvider(config ProviderConfig) (Provider, error) {
	switch config.Type {
	case ProviderGoogle:
		return NewGoogleProvider(config)
	case ProviderSimulated:
		return NewSimulatedProvider(0), nil
	default:
		return nil, fmt.Errorf("unsupported analysis provider type: %s", config.Type)
	}
}

// AccessError 图片获取阶段的失败（区别于分析阶段的失败）
type AccessError struct {
	URL string
	Err error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("image URL inaccessible: %s: %v", e.URL, e.Err)
}

func (e *AccessError) Unwrap() error {
	return e.Err
}
