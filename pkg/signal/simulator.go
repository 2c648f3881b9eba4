package signal

import (
	"context"
	"math/rand"
	"strings"
	"sync"
)

// SimulatedProvider 开发与测试用的模拟提供商
// 生产环境不要接入：它不调用任何真实分析服务，
// 仅根据内容关键字给出可复现的固定结果，其余情况返回低分随机噪声
type SimulatedProvider struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedProvider 创建模拟提供商，seed固定时输出可复现
func NewSimulatedProvider(seed int64) *SimulatedProvider {
	return &SimulatedProvider{rng: rand.New(rand.NewSource(seed))}
}

// Name 获取提供商名称
func (p *SimulatedProvider) Name() string {
	return "simulated"
}

// AnalyzeText 按关键字返回预设分类，其余文本为中性
func (p *SimulatedProvider) AnalyzeText(ctx context.Context, text string) (*TextAnalysis, error) {
	lower := strings.ToLower(text)

	switch {
	case strings.Contains(lower, "hate"):
		return &TextAnalysis{
			Categories: []Category{{Name: "/Sensitive Subjects/Hate Speech", Confidence: 0.85}},
			Sentiment:  Sentiment{Score: -0.6, Magnitude: 0.9},
		}, nil
	case strings.Contains(lower, "violence"):
		return &TextAnalysis{
			Categories: []Category{{Name: "/Sensitive Subjects/Violence", Confidence: 0.5}},
			Sentiment:  Sentiment{Score: -0.2, Magnitude: 0.3},
		}, nil
	}

	return &TextAnalysis{
		Categories: []Category{{Name: "/Arts & Entertainment", Confidence: p.noise()}},
		Sentiment:  Sentiment{Score: 0.2, Magnitude: 0.4},
	}, nil
}

// AnalyzeImage 按URL关键字返回预设等级，其余图片为安全
func (p *SimulatedProvider) AnalyzeImage(ctx context.Context, imageURL string) (*SafeSearchResult, error) {
	lower := strings.ToLower(imageURL)

	safe := SafeSearchResult{
		Adult:    LikelihoodVeryUnlikely,
		Violence: LikelihoodVeryUnlikely,
		Racy:     LikelihoodVeryUnlikely,
		Medical:  LikelihoodVeryUnlikely,
		Spoof:    LikelihoodVeryUnlikely,
	}

	switch {
	case strings.Contains(lower, "adult"):
		safe.Adult = LikelihoodVeryLikely
	case strings.Contains(lower, "violence"):
		safe.Violence = LikelihoodPossible
	}

	return &safe, nil
}

// noise 返回[0, 0.3)内的低分噪声
func (p *SimulatedProvider) noise() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64() * 0.3
}
