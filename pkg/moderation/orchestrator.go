package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/safecommunity/guardianai/models"
	"github.com/safecommunity/guardianai/pkg/notify"
	"github.com/safecommunity/guardianai/pkg/signal"
	"github.com/safecommunity/guardianai/pkg/trust"
	"github.com/safecommunity/guardianai/pkg/verdict"

	"gorm.io/gorm"
)

// ErrNoContent 请求里既没有文本也没有图片
var ErrNoContent = errors.New("no content provided for moderation")

// ErrAnalysisFailed 所有通道的分析都失败
// 内容保持未裁决状态等待重试，绝不默认放行
var ErrAnalysisFailed = verdict.ErrAllAnalysesFailed

// Request 单条内容的审核请求
type Request struct {
	ContentID string
	UserID    uint
	Text      string
	ImageURL  string
}

// Outcome 审核结果
type Outcome struct {
	Verdict *verdict.Verdict
	// Trust 本次裁决后的信誉记录，裁决为APPROVED时为nil
	Trust *models.UserTrustRecord
}

// Orchestrator 审核编排器
// 串起信号采集、裁决、落库和信誉更新，定义部分失败的处理契约
type Orchestrator struct {
	db         *gorm.DB
	provider   signal.Provider
	normalizer *signal.Normalizer
	policy     verdict.Policy
	ledger     *trust.Ledger
	queue      notify.ReviewQueue
	timeout    time.Duration
}

// NewOrchestrator 创建审核编排器
func NewOrchestrator(db *gorm.DB, provider signal.Provider, normalizer *signal.Normalizer,
	policy verdict.Policy, ledger *trust.Ledger, queue notify.ReviewQueue, timeout time.Duration) *Orchestrator {
	return &Orchestrator{
		db:         db,
		provider:   provider,
		normalizer: normalizer,
		policy:     policy,
		ledger:     ledger,
		queue:      queue,
		timeout:    timeout,
	}
}

// Moderate 端到端审核一条内容
// 各通道并发分析，单通道失败不阻塞其他通道；全部失败时不落库、不动信誉
func (o *Orchestrator) Moderate(ctx context.Context, req Request) (*Outcome, error) {
	// 分析开始前先做校验，校验失败无任何副作用
	if req.Text == "" && req.ImageURL == "" {
		return nil, ErrNoContent
	}

	signals := o.collectSignals(ctx, req)

	v, err := o.policy.Decide(signals)
	if err != nil {
		return nil, err
	}

	if err := o.persistVerdict(ctx, req.ContentID, v); err != nil {
		return nil, fmt.Errorf("failed to persist verdict: %w", err)
	}

	outcome := &Outcome{Verdict: v}

	// APPROVED不动信誉记录
	if v.Status != models.StatusApproved {
		record, err := o.ledger.Apply(ctx, req.UserID, req.ContentID, v)
		if err != nil {
			// 裁决已落库且信誉更新幂等，调用方可以安全重试
			return nil, fmt.Errorf("failed to update trust record: %w", err)
		}
		outcome.Trust = record
	}

	// 人工审核投递是尽力而为，失败不回滚已落库的裁决
	if v.Status == models.StatusPending {
		o.publishReview(ctx, req, v)
	}

	return outcome, nil
}

// collectSignals 并发采集各通道信号
// 超时的通道等同失败通道；合并时保持文本在前的提交顺序，平局裁决依赖这个顺序
func (o *Orchestrator) collectSignals(ctx context.Context, req Request) []signal.Signal {
	cctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	var textSig, imageSig *signal.Signal
	var wg sync.WaitGroup

	if req.Text != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := o.normalizer.NormalizeText(cctx, o.provider, req.Text)
			textSig = &s
		}()
	}

	if req.ImageURL != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := o.normalizer.NormalizeImage(cctx, o.provider, req.ImageURL)
			imageSig = &s
		}()
	}

	wg.Wait()

	signals := make([]signal.Signal, 0, 2)
	if textSig != nil {
		signals = append(signals, *textSig)
	}
	if imageSig != nil {
		signals = append(signals, *imageSig)
	}
	return signals
}

// persistVerdict 把裁决写到内容记录上
func (o *Orchestrator) persistVerdict(ctx context.Context, contentID string, v *verdict.Verdict) error {
	var failuresJSON string
	if len(v.PartialFailures) > 0 {
		data, err := json.Marshal(v.PartialFailures)
		if err != nil {
			return err
		}
		failuresJSON = string(data)
	}

	now := time.Now()
	result := o.db.WithContext(ctx).Model(&models.ContentItem{}).
		Where("content_id = ?", contentID).
		Updates(map[string]interface{}{
			"status":           v.Status,
			"label":            v.Label,
			"confidence":       v.Confidence,
			"summary":          v.Summary,
			"flagged_content":  v.Label != "",
			"flag_reason":      v.Label,
			"partial_failures": failuresJSON,
			"processed_at":     now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("content item %s not found", contentID)
	}
	return nil
}

// publishReview 投递人工审核请求，失败只记日志
func (o *Orchestrator) publishReview(ctx context.Context, req Request, v *verdict.Verdict) {
	if o.queue == nil {
		return
	}
	err := o.queue.PublishReview(ctx, notify.ReviewRequest{
		ContentID:  req.ContentID,
		Text:       req.Text,
		ImageURL:   req.ImageURL,
		Label:      v.Label,
		Confidence: v.Confidence,
	})
	if err != nil {
		log.Printf("Failed to publish review request for content %s: %v", req.ContentID, err)
	}
}
