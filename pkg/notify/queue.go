package notify

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReviewRequest 推送到人工审核队列的消息
type ReviewRequest struct {
	ContentID  string  `json:"post_id"`
	Text       string  `json:"text_content,omitempty"`
	ImageURL   string  `json:"image_url,omitempty"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// ReviewQueue 人工审核队列
// 对Orchestrator来说是fire-and-forget：投递失败只记日志，不影响审核结果
type ReviewQueue interface {
	// PublishReview 投递一条待人工审核的内容
	PublishReview(ctx context.Context, req ReviewRequest) error
}

// RedisReviewQueue 基于Redis Stream的人工审核队列
type RedisReviewQueue struct {
	client *redis.Client
	stream string
}

// NewRedisReviewQueue 创建Redis审核队列
func NewRedisReviewQueue(client *redis.Client, stream string) *RedisReviewQueue {
	return &RedisReviewQueue{client: client, stream: stream}
}

// PublishReview 实现ReviewQueue
func (q *RedisReviewQueue) PublishReview(ctx context.Context, req ReviewRequest) error {
	return q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{
			"post_id":    req.ContentID,
			"text":       req.Text,
			"image_url":  req.ImageURL,
			"label":      req.Label,
			"confidence": req.Confidence,
			"timestamp":  time.Now().Format(time.RFC3339),
		},
	}).Err()
}
