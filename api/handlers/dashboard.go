package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/safecommunity/guardianai/database"
	"github.com/safecommunity/guardianai/models"
	"github.com/safecommunity/guardianai/pkg/trust"

	"github.com/gin-gonic/gin"
)

// DashboardHandler 版主后台处理器
type DashboardHandler struct {
	ledger *trust.Ledger
}

// NewDashboardHandler 创建版主后台处理器
func NewDashboardHandler(ledger *trust.Ledger) *DashboardHandler {
	return &DashboardHandler{ledger: ledger}
}

// GetReviewQueue 获取待人工审核的内容列表
func GetReviewQueue(c *gin.Context) {
	var items []models.ContentItem
	err := database.DB.
		Where("status = ?", models.StatusPending).
		Order("created_at DESC").
		Find(&items).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load review queue"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"posts": items})
}

// ReviewRequest 人工复审请求
type ReviewRequest struct {
	ContentID string `json:"content_id" binding:"required"`
	Action    string `json:"action" binding:"required,oneof=approve remove"`
}

// ReviewPost 版主复审一条待审内容
func ReviewPost(c *gin.Context) {
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status := models.StatusApproved
	if req.Action == "remove" {
		status = models.StatusRejected
	}

	result := database.DB.Model(&models.ContentItem{}).
		Where("content_id = ? AND status = ?", req.ContentID, models.StatusPending).
		Updates(map[string]interface{}{
			"status":       status,
			"processed_at": time.Now(),
		})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update post"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No pending post with that id"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Post " + req.Action + "d successfully"})
}

// ListUsers 获取用户及其信誉状态
func ListUsers(c *gin.Context) {
	var records []models.UserTrustRecord
	if err := database.DB.Order("updated_at DESC").Find(&records).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load users"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": records})
}

// BanRequest 手动封禁/解封请求
type BanRequest struct {
	Action string `json:"action" binding:"required,oneof=ban unban"`
	Reason string `json:"reason"`
}

// UpdateUserBan 版主手动封禁或解封用户
// 状态转换委托给信誉账本，和裁决驱动的更新走同一套乐观锁与审计写入
// 解封会清掉封禁详情并重置警告计数，这是版主手动覆盖，申诉裁决本身不在本服务内
func (h *DashboardHandler) UpdateUserBan(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}

	var req BanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Action == "ban" {
		record, err := h.ledger.ManualBan(c.Request.Context(), uint(userID), req.Reason)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to ban user"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "User banned successfully", "user": record})
		return
	}

	record, err := h.ledger.ManualUnban(c.Request.Context(), uint(userID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to unban user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User unbanned successfully", "user": record})
}
