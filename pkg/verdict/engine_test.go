package verdict

import (
	"testing"

	"github.com/safecommunity/guardianai/models"
	"github.com/safecommunity/guardianai/pkg/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy() Policy {
	return NewPolicy(0.7, 0.4, []string{
		"hate_speech", "hate speech",
		"cyberbullying",
		"violence",
		"offensive_language", "offensive language",
		"adult",
		"racy",
		"double_meaning", "double meaning",
	})
}

func TestDecideThresholds(t *testing.T) {
	policy := testPolicy()

	cases := []struct {
		confidence float64
		expected   models.ModerationStatus
	}{
		{0.95, models.StatusRejected},
		{0.71, models.StatusRejected},
		{0.7, models.StatusPending}, // 边界：0.7不拒绝
		{0.5, models.StatusPending},
		{0.41, models.StatusPending},
		{0.4, models.StatusApproved}, // 边界：0.4不送审
		{0.1, models.StatusApproved},
	}

	for _, tc := range cases {
		v, err := policy.Decide([]signal.Signal{
			{Modality: signal.ModalityText, Label: "hate speech", Confidence: tc.confidence},
		})
		require.NoError(t, err)
		assert.Equal(t, tc.expected, v.Status, "confidence=%v", tc.confidence)
	}
}

func TestDecideNoLabelAlwaysApproves(t *testing.T) {
	policy := testPolicy()

	v, err := policy.Decide([]signal.Signal{
		{Modality: signal.ModalityText, Label: "", Confidence: 0},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, v.Status)
	assert.Empty(t, v.Label)
}

func TestDecideNonHarmfulLabelApproves(t *testing.T) {
	policy := testPolicy()

	// 有标签但不在有害词表内：只标注不处罚
	v, err := policy.Decide([]signal.Signal{
		{Modality: signal.ModalityImage, Label: "medical", Confidence: 0.9},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, v.Status)
	assert.Equal(t, "medical", v.Label)
	assert.Equal(t, 0.9, v.Confidence)
}

func TestDecideHarmfulLabelSpellingVariants(t *testing.T) {
	policy := testPolicy()

	// 下划线和空格两种拼写都要命中
	assert.True(t, policy.IsHarmful("hate_speech"))
	assert.True(t, policy.IsHarmful("Hate Speech"))
	assert.True(t, policy.IsHarmful("offensive language"))
	assert.True(t, policy.IsHarmful("double_meaning"))
	assert.False(t, policy.IsHarmful("negative_content"))
	assert.False(t, policy.IsHarmful(""))
}

func TestDecidePicksHighestConfidenceSignal(t *testing.T) {
	policy := testPolicy()

	v, err := policy.Decide([]signal.Signal{
		{Modality: signal.ModalityText, Label: "violence", Confidence: 0.5},
		{Modality: signal.ModalityImage, Label: "adult", Confidence: 0.8},
	})
	require.NoError(t, err)
	assert.Equal(t, "adult", v.Label)
	assert.Equal(t, 0.8, v.Confidence)
	assert.Equal(t, models.StatusRejected, v.Status)
}

func TestDecideTieBreaksByInputOrder(t *testing.T) {
	policy := testPolicy()

	// 平局时第一个信号（文本先于图片）胜出
	v, err := policy.Decide([]signal.Signal{
		{Modality: signal.ModalityText, Label: "violence", Confidence: 0.6},
		{Modality: signal.ModalityImage, Label: "adult", Confidence: 0.6},
	})
	require.NoError(t, err)
	assert.Equal(t, "violence", v.Label)
}

func TestDecideCarriesPartialFailures(t *testing.T) {
	policy := testPolicy()

	v, err := policy.Decide([]signal.Signal{
		{Modality: signal.ModalityText, Failed: true, FailureReason: "text analysis failed"},
		{Modality: signal.ModalityImage, Label: "violence", Confidence: 0.5},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, v.Status)
	assert.Equal(t, []string{"text analysis failed"}, v.PartialFailures)
}

func TestDecideFailedSignalNeverWins(t *testing.T) {
	policy := testPolicy()

	// 失败信号即使带着标签也不参与裁决
	v, err := policy.Decide([]signal.Signal{
		{Modality: signal.ModalityImage, Label: "error", Failed: true, FailureReason: "image analysis failed"},
		{Modality: signal.ModalityText, Label: "", Confidence: 0},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, v.Status)
	assert.Empty(t, v.Label)
}

func TestDecideAllFailed(t *testing.T) {
	policy := testPolicy()

	_, err := policy.Decide([]signal.Signal{
		{Modality: signal.ModalityText, Failed: true, FailureReason: "text analysis failed"},
		{Modality: signal.ModalityImage, Failed: true, FailureReason: "image analysis failed"},
	})
	assert.ErrorIs(t, err, ErrAllAnalysesFailed)
}

func TestDecideRejectedScenario(t *testing.T) {
	policy := testPolicy()

	// 文本信号0.85的hate speech直接拒绝
	v, err := policy.Decide([]signal.Signal{
		{Modality: signal.ModalityText, Label: "Hate Speech", Confidence: 0.85},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, v.Status)
	assert.Equal(t, "Hate Speech", v.Label)
}
