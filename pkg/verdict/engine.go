package verdict

import (
	"errors"
	"strings"
	"time"

	"github.com/safecommunity/guardianai/models"
	"github.com/safecommunity/guardianai/pkg/signal"
)

// ErrAllAnalysesFailed 所有通道的分析都失败，无法给出裁决
var ErrAllAnalysesFailed = errors.New("content analysis failed for all modalities")

// Verdict 单条内容的最终裁决
type Verdict struct {
	Status     models.ModerationStatus `json:"status"`
	Label      string                  `json:"label,omitempty"`
	Confidence float64                 `json:"confidence"`
	Summary    string                  `json:"summary,omitempty"`

	// 失败通道的诊断信息，即使裁决成功也要带回去，部分失败只上报不吞掉
	PartialFailures []string  `json:"partial_failures,omitempty"`
	DecidedAt       time.Time `json:"decided_at"`
}

// Policy 裁决策略
// 纯函数集合，无隐藏状态，同样的输入永远给出同样的裁决
type Policy struct {
	rejectThreshold float64
	reviewThreshold float64
	harmfulLabels   []string // 小写词表
}

// NewPolicy 创建裁决策略
func NewPolicy(rejectThreshold, reviewThreshold float64, harmfulLabels []string) Policy {
	lowered := make([]string, 0, len(harmfulLabels))
	for _, l := range harmfulLabels {
		lowered = append(lowered, strings.ToLower(l))
	}
	return Policy{
		rejectThreshold: rejectThreshold,
		reviewThreshold: reviewThreshold,
		harmfulLabels:   lowered,
	}
}

// IsHarmful 标签是否命中有害词表（大小写不敏感的子串匹配）
func (p Policy) IsHarmful(label string) bool {
	if label == "" {
		return false
	}
	lower := strings.ToLower(label)
	for _, harmful := range p.harmfulLabels {
		if strings.Contains(lower, harmful) {
			return true
		}
	}
	return false
}

// Decide 把多通道信号合成单个裁决
// 取置信度最大的成功信号，平局按输入顺序（文本先于图片）取第一个
func (p Policy) Decide(signals []signal.Signal) (*Verdict, error) {
	var failures []string
	var winner *signal.Signal
	for i := range signals {
		s := &signals[i]
		if s.Failed {
			if s.FailureReason != "" {
				failures = append(failures, s.FailureReason)
			}
			continue
		}
		if winner == nil || s.Confidence > winner.Confidence {
			winner = s
		}
	}

	if winner == nil {
		return nil, ErrAllAnalysesFailed
	}

	v := &Verdict{
		Label:           winner.Label,
		Confidence:      winner.Confidence,
		Summary:         winner.Summary,
		PartialFailures: failures,
		DecidedAt:       time.Now(),
	}
	v.Status = p.statusFor(winner.Label, winner.Confidence)
	return v, nil
}

// statusFor 由标签与置信度映射到三态状态
func (p Policy) statusFor(label string, confidence float64) models.ModerationStatus {
	// 没有标签永远放行
	if label == "" || confidence == 0 {
		return models.StatusApproved
	}

	// 有标签但不在有害词表内：只做标注，不处罚
	if !p.IsHarmful(label) {
		return models.StatusApproved
	}

	switch {
	case confidence > p.rejectThreshold:
		return models.StatusRejected
	case confidence > p.reviewThreshold:
		return models.StatusPending
	default:
		return models.StatusApproved
	}
}
