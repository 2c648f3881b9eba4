package signal

// Modality 内容的输入通道
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
)

// 失败类别，仅用于诊断，不参与裁决
const (
	FailureAccess     = "access_error"
	FailureProcessing = "processing_error"
)

// Signal 归一化后的单通道审核信号
// Label为空表示无风险；Failed为true时Confidence必为0，下游永远不会把失败当成有害
type Signal struct {
	Modality      Modality `json:"modality"`
	Label         string   `json:"label,omitempty"`
	Confidence    float64  `json:"confidence"`
	Summary       string   `json:"summary,omitempty"`
	Failed        bool     `json:"failed,omitempty"`
	FailureKind   string   `json:"failure_kind,omitempty"`
	FailureReason string   `json:"failure_reason,omitempty"`
}

// Likelihood 图片安全搜索的离散可能性等级
type Likelihood string

const (
	LikelihoodUnknown      Likelihood = "UNKNOWN"
	LikelihoodVeryUnlikely Likelihood = "VERY_UNLIKELY"
	LikelihoodUnlikely     Likelihood = "UNLIKELY"
	LikelihoodPossible     Likelihood = "POSSIBLE"
	LikelihoodLikely       Likelihood = "LIKELY"
	LikelihoodVeryLikely   Likelihood = "VERY_LIKELY"
)

// likelihoodScores 等级到数值置信度的映射，未识别的等级按0处理
var likelihoodScores = map[Likelihood]float64{
	LikelihoodUnknown:      0,
	LikelihoodVeryUnlikely: 0.05,
	LikelihoodUnlikely:     0.2,
	LikelihoodPossible:     0.5,
	LikelihoodLikely:       0.8,
	LikelihoodVeryLikely:   0.95,
}

// Score 转换为数值置信度
func (l Likelihood) Score() float64 {
	return likelihoodScores[l]
}

// Category 文本分类器返回的类别
type Category struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Sentiment 情感分析结果
type Sentiment struct {
	Score     float64 `json:"score"`     // [-1, 1]
	Magnitude float64 `json:"magnitude"` // >= 0
}

// TextAnalysis 文本分析的原始结果
type TextAnalysis struct {
	Categories []Category `json:"categories"`
	Sentiment  Sentiment  `json:"sentiment"`
}

// SafeSearchResult 图片安全搜索的原始结果
type SafeSearchResult struct {
	Adult    Likelihood `json:"adult"`
	Violence Likelihood `json:"violence"`
	Racy     Likelihood `json:"racy"`
	Medical  Likelihood `json:"medical"`
	Spoof    Likelihood `json:"spoof"`
}

// categories 按声明顺序展开，平局时排前者胜出
func (r *SafeSearchResult) categories() []struct {
	label string
	score float64
} {
	return []struct {
		label string
		score float64
	}{
		{"adult", r.Adult.Score()},
		{"violence", r.Violence.Score()},
		{"racy", r.Racy.Score()},
		{"medical", r.Medical.Score()},
		{"spoof", r.Spoof.Score()},
	}
}
