package signal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
)

// 情感衍生风险的判定条件：强负面且情绪强度足够
const (
	sentimentScoreCeiling   = -0.3
	sentimentMagnitudeFloor = 0.6
)

// 情感路径的固定标签
const sentimentLabel = "negative_content"

// Normalizer 信号归一化器
// 把各家提供商的原始输出统一成Signal，本身无状态、无副作用，可并发共享
type Normalizer struct {
	markers    []string // 小写的有害子串标记
	imageFloor float64
	cache      *SignalCache
}

// NewNormalizer 创建信号归一化器
func NewNormalizer(markers []string, imageFloor float64) *Normalizer {
	lowered := make([]string, 0, len(markers))
	for _, m := range markers {
		lowered = append(lowered, strings.ToLower(m))
	}
	return &Normalizer{markers: lowered, imageFloor: imageFloor}
}

// SetCache 启用信号缓存，相同内容不重复调用分析服务
func (n *Normalizer) SetCache(cache *SignalCache) {
	n.cache = cache
}

// NormalizeText 归一化文本信号
// 分析器抛出的任何错误都在这里吸收为失败信号，绝不向上传播
func (n *Normalizer) NormalizeText(ctx context.Context, analyzer TextAnalyzer, text string) Signal {
	if cached, ok := n.fromCache(ModalityText, text); ok {
		return cached
	}

	analysis, err := analyzer.AnalyzeText(ctx, text)
	if err != nil {
		log.Printf("Text analysis error: %v", err)
		return Signal{
			Modality:      ModalityText,
			Failed:        true,
			FailureKind:   FailureProcessing,
			FailureReason: "text analysis failed",
			Summary:       "Error analyzing text content",
		}
	}

	sig := n.normalizeTextAnalysis(analysis)
	n.toCache(text, sig)
	return sig
}

// normalizeTextAnalysis 把分类+情感结果合成单个文本信号
func (n *Normalizer) normalizeTextAnalysis(analysis *TextAnalysis) Signal {
	// 类别路径：在有害类别里取置信度严格最大者，平局保留先出现的
	var categoryLabel string
	var categoryConfidence float64
	for _, category := range analysis.Categories {
		if !n.matchesMarker(category.Name) {
			continue
		}
		if category.Confidence > categoryConfidence {
			categoryConfidence = category.Confidence
			categoryLabel = lastPathSegment(category.Name)
		}
	}

	// 情感路径：强负面情绪按 |score|*magnitude 计风险
	var sentimentConfidence float64
	s := analysis.Sentiment
	if s.Score < sentimentScoreCeiling && s.Magnitude > sentimentMagnitudeFloor {
		sentimentConfidence = -s.Score * s.Magnitude
	}

	switch {
	case categoryConfidence == 0 && sentimentConfidence == 0:
		return Signal{Modality: ModalityText}
	case categoryConfidence >= sentimentConfidence:
		return Signal{
			Modality:   ModalityText,
			Label:      categoryLabel,
			Confidence: categoryConfidence,
			Summary:    fmt.Sprintf("Content identified as %s with %.1f%% confidence.", categoryLabel, categoryConfidence*100),
		}
	default:
		return Signal{
			Modality:   ModalityText,
			Label:      sentimentLabel,
			Confidence: sentimentConfidence,
			Summary:    fmt.Sprintf("Content has negative tone with %.1f%% intensity.", sentimentConfidence*100),
		}
	}
}

// NormalizeImage 归一化图片信号
// 获取失败与处理失败分开标记，但对下游都是零置信度的失败信号
func (n *Normalizer) NormalizeImage(ctx context.Context, analyzer ImageAnalyzer, imageURL string) Signal {
	if cached, ok := n.fromCache(ModalityImage, imageURL); ok {
		return cached
	}

	result, err := analyzer.AnalyzeImage(ctx, imageURL)
	if err != nil {
		log.Printf("Image analysis error: %v", err)
		kind := FailureProcessing
		var accessErr *AccessError
		if errors.As(err, &accessErr) {
			kind = FailureAccess
		}
		return Signal{
			Modality:      ModalityImage,
			Label:         "error",
			Failed:        true,
			FailureKind:   kind,
			FailureReason: "image analysis failed",
			Summary:       "Error analyzing image content",
		}
	}

	sig := n.normalizeSafeSearch(result)
	n.toCache(imageURL, sig)
	return sig
}

// normalizeSafeSearch 取五个类别里的最高分，平局按声明顺序
func (n *Normalizer) normalizeSafeSearch(result *SafeSearchResult) Signal {
	var topLabel string
	var topScore float64
	for _, c := range result.categories() {
		if c.score > topScore {
			topScore = c.score
			topLabel = c.label
		}
	}

	// 低于门槛的图片信号整体视为无风险，不保留标签
	if topScore < n.imageFloor {
		return Signal{Modality: ModalityImage}
	}

	return Signal{
		Modality:   ModalityImage,
		Label:      topLabel,
		Confidence: topScore,
		Summary:    fmt.Sprintf("Image contains %s content with %.1f%% confidence.", topLabel, topScore*100),
	}
}

// matchesMarker 类别名是否含有害子串标记
func (n *Normalizer) matchesMarker(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range n.markers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// fromCache 查询信号缓存
func (n *Normalizer) fromCache(modality Modality, content string) (Signal, bool) {
	if n.cache == nil {
		return Signal{}, false
	}
	return n.cache.Get(modality, content)
}

// toCache 缓存成功的信号，失败信号不缓存
func (n *Normalizer) toCache(content string, sig Signal) {
	if n.cache == nil || sig.Failed {
		return
	}
	n.cache.Set(sig.Modality, content, sig)
}

// lastPathSegment 取类别路径的最后一段
func lastPathSegment(name string) string {
	parts := strings.Split(name, "/")
	return parts[len(parts)-1]
}
