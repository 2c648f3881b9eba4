package models

import (
	"time"

	"gorm.io/gorm"
)

// 审核状态
type ModerationStatus string

const (
	StatusApproved ModerationStatus = "APPROVED"
	StatusPending  ModerationStatus = "PENDING"
	StatusRejected ModerationStatus = "REJECTED"
)

// ContentItem 用户提交的内容
// 创建后除审核结果字段外不再修改
type ContentItem struct {
	gorm.Model
	ContentID string `gorm:"size:64;not null;uniqueIndex" json:"contentId"`
	UserID    uint   `gorm:"not null;index" json:"userId"`
	Text      string `gorm:"type:text" json:"text"`
	ImageURL  string `gorm:"size:512" json:"imageUrl"`

	// 审核结果，由Orchestrator在分析完成后写入
	Status          ModerationStatus `gorm:"size:20;index" json:"status"`
	Label           string           `gorm:"size:100" json:"label"`
	Confidence      float64          `json:"confidence"`
	Summary         string           `gorm:"size:512" json:"summary"`
	FlaggedContent  bool             `json:"flaggedContent"`
	FlagReason      string           `gorm:"size:100" json:"flagReason"`
	PartialFailures string           `gorm:"type:json" json:"-"` // 失败原因列表的JSON
	ProcessedAt     *time.Time       `json:"processedAt"`
}

// SubmitRequest 发帖请求，text与image_url至少提供一个
type SubmitRequest struct {
	Text     string `json:"text"`
	ImageURL string `json:"image_url"`
}

// ModerationResponse 单条内容的审核结果响应
type ModerationResponse struct {
	ContentID       string           `json:"contentId"`
	Status          ModerationStatus `json:"status"`
	Label           string           `json:"label,omitempty"`
	Confidence      float64          `json:"confidence"`
	Summary         string           `json:"summary,omitempty"`
	FlaggedContent  bool             `json:"flaggedContent"`
	FlagReason      string           `json:"flagReason,omitempty"`
	PartialFailures []string         `json:"partial_failures,omitempty"`
}
