package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/safecommunity/guardianai/database"
	"github.com/safecommunity/guardianai/models"
	"github.com/safecommunity/guardianai/pkg/moderation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PostHandler 内容发布与审核处理器
type PostHandler struct {
	orchestrator *moderation.Orchestrator
}

// NewPostHandler 创建内容处理器
func NewPostHandler(orchestrator *moderation.Orchestrator) *PostHandler {
	return &PostHandler{orchestrator: orchestrator}
}

// SubmitPost 发布内容并同步完成审核
func (h *PostHandler) SubmitPost(c *gin.Context) {
	userID := c.GetUint("userID")

	// 被封禁的用户不能发帖
	var trustRecord models.UserTrustRecord
	if err := database.DB.Where("user_id = ?", userID).First(&trustRecord).Error; err == nil && trustRecord.Banned {
		c.JSON(http.StatusForbidden, gin.H{"error": "Your account has been restricted. You cannot post new content."})
		return
	}

	var req models.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Text == "" && req.ImageURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please provide either text or an image to post"})
		return
	}

	item := models.ContentItem{
		ContentID: uuid.New().String(),
		UserID:    userID,
		Text:      req.Text,
		ImageURL:  req.ImageURL,
	}
	if err := database.DB.Create(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create post"})
		return
	}

	outcome, err := h.orchestrator.Moderate(c.Request.Context(), moderation.Request{
		ContentID: item.ContentID,
		UserID:    userID,
		Text:      req.Text,
		ImageURL:  req.ImageURL,
	})
	if err != nil {
		if errors.Is(err, moderation.ErrAnalysisFailed) {
			// 内容保持未裁决状态，客户端可以重试
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":      "Content analysis failed, please try again",
				"content_id": item.ContentID,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Moderation failed"})
		return
	}

	v := outcome.Verdict
	c.JSON(http.StatusCreated, models.ModerationResponse{
		ContentID:       item.ContentID,
		Status:          v.Status,
		Label:           v.Label,
		Confidence:      v.Confidence,
		Summary:         v.Summary,
		FlaggedContent:  v.Label != "",
		FlagReason:      v.Label,
		PartialFailures: v.PartialFailures,
	})
}

// ListPosts 获取当前用户可见的帖子
// 只返回已放行和待审核的内容，被拒绝的不展示
func (h *PostHandler) ListPosts(c *gin.Context) {
	userID := c.GetUint("userID")

	var items []models.ContentItem
	err := database.DB.
		Where("user_id = ? AND status IN ?", userID, []models.ModerationStatus{models.StatusApproved, models.StatusPending}).
		Order("created_at DESC").
		Find(&items).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load posts"})
		return
	}

	responses := make([]models.ModerationResponse, 0, len(items))
	for i := range items {
		responses = append(responses, toModerationResponse(&items[i]))
	}

	c.JSON(http.StatusOK, gin.H{"posts": responses})
}

// GetTrustStatus 获取当前用户的信誉状态
func (h *PostHandler) GetTrustStatus(c *gin.Context) {
	userID := c.GetUint("userID")

	var record models.UserTrustRecord
	if err := database.DB.Where("user_id = ?", userID).First(&record).Error; err != nil {
		// 还没有任何裁决作用过，返回默认状态
		record = models.UserTrustRecord{UserID: userID, BehaviorScore: 100}
	}

	c.JSON(http.StatusOK, gin.H{"trust": record})
}

// GetNotifications 获取当前用户的站内通知
func (h *PostHandler) GetNotifications(c *gin.Context) {
	userID := c.GetUint("userID")

	var notifications []models.UserNotification
	err := database.DB.Where("user_id = ?", userID).Order("created_at DESC").Find(&notifications).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// toModerationResponse 把内容记录转换为响应
func toModerationResponse(item *models.ContentItem) models.ModerationResponse {
	var failures []string
	if item.PartialFailures != "" {
		// 解析失败按空列表处理，不影响主响应
		_ = json.Unmarshal([]byte(item.PartialFailures), &failures)
	}
	return models.ModerationResponse{
		ContentID:       item.ContentID,
		Status:          item.Status,
		Label:           item.Label,
		Confidence:      item.Confidence,
		Summary:         item.Summary,
		FlaggedContent:  item.FlaggedContent,
		FlagReason:      item.FlagReason,
		PartialFailures: failures,
	}
}
