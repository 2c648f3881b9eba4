package models

import (
	"time"

	"gorm.io/gorm"
)

// UserTrustRecord 用户信誉记录
// 只由trust.Ledger修改，其他组件只读
// 不变量：Banned为true时WarningCount必然达到封禁阈值且封禁详情非空
type UserTrustRecord struct {
	gorm.Model
	UserID        uint `gorm:"not null;uniqueIndex" json:"userId"`
	BehaviorScore int  `gorm:"not null;default:100" json:"behaviorScore"`
	WarningCount  int  `gorm:"not null;default:0" json:"warningCount"`
	Banned        bool `gorm:"not null;default:false" json:"banned"`

	// 封禁详情，未封禁时为空
	BanReason        string     `gorm:"size:255" json:"banReason,omitempty"`
	BanSeverity      string     `gorm:"size:20" json:"banSeverity,omitempty"`
	BannedAt         *time.Time `json:"bannedAt,omitempty"`
	AppealEligibleAt *time.Time `json:"appealEligibleAt,omitempty"`

	// 乐观锁版本号，并发更新靠条件更新+重试保证不丢失
	Version int64 `gorm:"not null;default:0" json:"-"`
}

// TrustEvent 已应用到信誉记录的裁决
// content_id唯一索引保证同一个裁决只生效一次，重试安全
type TrustEvent struct {
	gorm.Model
	ContentID string           `gorm:"size:64;not null;uniqueIndex" json:"contentId"`
	UserID    uint             `gorm:"not null;index" json:"userId"`
	Status    ModerationStatus `gorm:"size:20;not null" json:"status"`
	Label     string           `gorm:"size:100" json:"label"`
	Delta     int              `gorm:"not null" json:"delta"`
}

// BanAuditEntry 封禁审计记录，每次封禁转换只写一条，只追加不修改
type BanAuditEntry struct {
	gorm.Model
	UserID           uint      `gorm:"not null;index" json:"userId"`
	Reason           string    `gorm:"size:255;not null" json:"reason"`
	Label            string    `gorm:"size:100" json:"label"`
	AppealEligibleAt time.Time `json:"appealEligibleAt"`
}

// 通知类型
const (
	NotificationAccountBan     = "account_ban"
	NotificationContentWarning = "content_warning"
)

// UserNotification 用户站内通知
type UserNotification struct {
	gorm.Model
	UserID  uint   `gorm:"not null;index" json:"userId"`
	Type    string `gorm:"size:30;not null" json:"type"`
	Title   string `gorm:"size:100;not null" json:"title"`
	Message string `gorm:"size:512;not null" json:"message"`
	Read    bool   `gorm:"not null;default:false" json:"read"`
}
