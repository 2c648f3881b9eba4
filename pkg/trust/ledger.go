package trust

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/safecommunity/guardianai/models"
	"github.com/safecommunity/guardianai/pkg/verdict"

	"gorm.io/gorm"
)

// 行为分调整量
const (
	deltaRejected = -10 // 有害内容被拒绝
	deltaPending  = -3  // 有害内容转人工审核
	deltaDefault  = 1   // 其余情况的正向激励
)

// 行为分上下限
const (
	scoreFloor   = 0
	scoreCeiling = 100
)

// 乐观锁冲突时的最大重试次数
const maxApplyAttempts = 5

// 版本冲突，事务内使用，对外只表现为重试
var errVersionConflict = errors.New("trust record version conflict")

// 同一裁决已应用过，幂等跳过
var errAlreadyApplied = errors.New("verdict already applied")

// Ledger 用户信誉账本
// 每个用户一条信誉记录，状态转换只发生在这里
// 并发更新靠版本号条件更新+重试串行化，同一裁决靠TrustEvent唯一索引保证只生效一次
type Ledger struct {
	db                  *gorm.DB
	policy              verdict.Policy
	banWarningThreshold int
	appealWait          time.Duration
	highSeverity        float64
}

// NewLedger 创建信誉账本
func NewLedger(db *gorm.DB, policy verdict.Policy, banWarningThreshold, appealWaitDays int, highSeverity float64) *Ledger {
	return &Ledger{
		db:                  db,
		policy:              policy,
		banWarningThreshold: banWarningThreshold,
		appealWait:          time.Duration(appealWaitDays) * 24 * time.Hour,
		highSeverity:        highSeverity,
	}
}

// Apply 把一条裁决应用到用户信誉记录
// 对同一contentID重复调用是幂等的，返回应用后的记录
func (l *Ledger) Apply(ctx context.Context, userID uint, contentID string, v *verdict.Verdict) (*models.UserTrustRecord, error) {
	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		record, err := l.loadOrCreate(ctx, userID)
		if err != nil {
			if errors.Is(err, errVersionConflict) {
				continue
			}
			return nil, err
		}

		err = l.applyOnce(ctx, record, contentID, v)
		switch {
		case err == nil:
			return record, nil
		case errors.Is(err, errAlreadyApplied):
			// 重放：裁决已生效，返回当前记录即可
			return l.loadOrCreate(ctx, userID)
		case errors.Is(err, errVersionConflict):
			continue
		default:
			return nil, err
		}
	}
	return nil, fmt.Errorf("trust update for user %d did not converge after %d attempts", userID, maxApplyAttempts)
}

// loadOrCreate 读取用户信誉记录，首次出现时懒创建默认记录
func (l *Ledger) loadOrCreate(ctx context.Context, userID uint) (*models.UserTrustRecord, error) {
	var record models.UserTrustRecord
	err := l.db.WithContext(ctx).Where("user_id = ?", userID).First(&record).Error
	if err == nil {
		return &record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	record = models.UserTrustRecord{
		UserID:        userID,
		BehaviorScore: scoreCeiling,
	}
	if err := l.db.WithContext(ctx).Create(&record).Error; err != nil {
		// 并发首次创建撞了唯一索引，按冲突重试
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errVersionConflict
		}
		return nil, err
	}
	return &record, nil
}

// applyOnce 在单个事务里尝试应用一次裁决
// 任何一步失败整个事务回滚，包括TrustEvent，保证重试安全
func (l *Ledger) applyOnce(ctx context.Context, record *models.UserTrustRecord, contentID string, v *verdict.Verdict) error {
	harmful := l.policy.IsHarmful(v.Label)

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		delta := deltaDefault
		newWarningCount := record.WarningCount
		banTransition := false

		switch {
		case v.Status == models.StatusRejected && harmful:
			delta = deltaRejected
			newWarningCount++
			if newWarningCount >= l.banWarningThreshold && !record.Banned {
				banTransition = true
			}
		case v.Status == models.StatusPending && harmful:
			delta = deltaPending
		}

		// 同一裁决只生效一次
		event := models.TrustEvent{
			ContentID: contentID,
			UserID:    record.UserID,
			Status:    v.Status,
			Label:     v.Label,
			Delta:     delta,
		}
		if err := tx.Create(&event).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errAlreadyApplied
			}
			return err
		}

		newScore := clamp(record.BehaviorScore+delta, scoreFloor, scoreCeiling)

		updates := map[string]interface{}{
			"behavior_score": newScore,
			"warning_count":  newWarningCount,
			"version":        record.Version + 1,
			"updated_at":     time.Now(),
		}

		var banReason string
		if banTransition {
			now := time.Now()
			appealAt := now.Add(l.appealWait)
			severity := "medium"
			if v.Confidence > l.highSeverity {
				severity = "high"
			}
			// 封禁原因只在这里构造一次，信誉记录和审计记录共用
			banReason = fmt.Sprintf("Multiple violations: latest harmful content labeled as %q", v.Label)
			updates["banned"] = true
			updates["ban_reason"] = banReason
			updates["ban_severity"] = severity
			updates["banned_at"] = now
			updates["appeal_eligible_at"] = appealAt
		}

		// 条件更新：版本不匹配说明有并发写入，回滚整个事务重试
		result := tx.Model(&models.UserTrustRecord{}).
			Where("user_id = ? AND version = ?", record.UserID, record.Version).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errVersionConflict
		}

		if banTransition {
			if err := l.recordBan(tx, record.UserID, banReason, v.Label, updates["appeal_eligible_at"].(time.Time)); err != nil {
				return err
			}
		} else if v.Status == models.StatusPending && harmful {
			if err := l.recordWarning(tx, record.UserID, v); err != nil {
				return err
			}
		}

		// 回填快照，调用方拿到的是应用后的状态
		record.BehaviorScore = newScore
		record.WarningCount = newWarningCount
		record.Version++
		if banTransition {
			record.Banned = true
			record.BanReason = banReason
			record.BanSeverity = updates["ban_severity"].(string)
			bannedAt := updates["banned_at"].(time.Time)
			appealAt := updates["appeal_eligible_at"].(time.Time)
			record.BannedAt = &bannedAt
			record.AppealEligibleAt = &appealAt
		}
		return nil
	})
}

// ManualBan 版主手动封禁用户
// 与裁决驱动的封禁走同一套版本号条件更新，封禁详情和审计记录在同一事务内写入
// 对已封禁用户幂等，不产生第二条审计记录
func (l *Ledger) ManualBan(ctx context.Context, userID uint, reason string) (*models.UserTrustRecord, error) {
	if reason == "" {
		reason = "Banned by moderator"
	}

	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		record, err := l.loadOrCreate(ctx, userID)
		if err != nil {
			if errors.Is(err, errVersionConflict) {
				continue
			}
			return nil, err
		}
		if record.Banned {
			return record, nil
		}

		err = l.manualBanOnce(ctx, record, reason)
		switch {
		case err == nil:
			return record, nil
		case errors.Is(err, errVersionConflict):
			continue
		default:
			return nil, err
		}
	}
	return nil, fmt.Errorf("manual ban for user %d did not converge after %d attempts", userID, maxApplyAttempts)
}

// manualBanOnce 在单个事务里尝试一次手动封禁
func (l *Ledger) manualBanOnce(ctx context.Context, record *models.UserTrustRecord, reason string) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		appealAt := now.Add(l.appealWait)

		// 封禁状态的不变量要求警告计数不低于封禁阈值，手动封禁也要补齐
		newWarningCount := record.WarningCount
		if newWarningCount < l.banWarningThreshold {
			newWarningCount = l.banWarningThreshold
		}

		updates := map[string]interface{}{
			"banned":             true,
			"ban_reason":         reason,
			"ban_severity":       "high",
			"banned_at":          now,
			"appeal_eligible_at": appealAt,
			"warning_count":      newWarningCount,
			"version":            record.Version + 1,
			"updated_at":         now,
		}

		// 条件更新：版本不匹配说明有并发写入，回滚整个事务重试
		result := tx.Model(&models.UserTrustRecord{}).
			Where("user_id = ? AND version = ?", record.UserID, record.Version).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errVersionConflict
		}

		if err := l.recordBan(tx, record.UserID, reason, "", appealAt); err != nil {
			return err
		}

		record.WarningCount = newWarningCount
		record.Version++
		record.Banned = true
		record.BanReason = reason
		record.BanSeverity = "high"
		record.BannedAt = &now
		record.AppealEligibleAt = &appealAt
		return nil
	})
}

// ManualUnban 版主手动解封用户
// 清掉封禁详情并重置警告计数，对未封禁用户幂等
func (l *Ledger) ManualUnban(ctx context.Context, userID uint) (*models.UserTrustRecord, error) {
	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		record, err := l.loadOrCreate(ctx, userID)
		if err != nil {
			if errors.Is(err, errVersionConflict) {
				continue
			}
			return nil, err
		}
		if !record.Banned {
			return record, nil
		}

		result := l.db.WithContext(ctx).Model(&models.UserTrustRecord{}).
			Where("user_id = ? AND version = ?", record.UserID, record.Version).
			Updates(map[string]interface{}{
				"banned":             false,
				"ban_reason":         "",
				"ban_severity":       "",
				"banned_at":          nil,
				"appeal_eligible_at": nil,
				"warning_count":      0,
				"version":            record.Version + 1,
				"updated_at":         time.Now(),
			})
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected == 0 {
			// 版本冲突，重新读取后重试
			continue
		}

		record.Banned = false
		record.BanReason = ""
		record.BanSeverity = ""
		record.BannedAt = nil
		record.AppealEligibleAt = nil
		record.WarningCount = 0
		record.Version++
		return record, nil
	}
	return nil, fmt.Errorf("manual unban for user %d did not converge after %d attempts", userID, maxApplyAttempts)
}

// recordBan 写入封禁审计记录与封禁通知
// 只在未封禁到封禁的转换上调用，已封禁用户不会产生第二条审计记录
// 审计记录的原因由调用方构造后传入，与信誉记录上的封禁原因保持一致
func (l *Ledger) recordBan(tx *gorm.DB, userID uint, reason, label string, appealAt time.Time) error {
	entry := models.BanAuditEntry{
		UserID:           userID,
		Reason:           reason,
		Label:            label,
		AppealEligibleAt: appealAt,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return err
	}

	notification := models.UserNotification{
		UserID:  userID,
		Type:    models.NotificationAccountBan,
		Title:   "Account Restricted",
		Message: fmt.Sprintf("Your account has been restricted. You can appeal this decision after %s.", appealAt.Format("2006-01-02")),
	}
	if err := tx.Create(&notification).Error; err != nil {
		return err
	}

	log.Printf("User %d has been banned: %s", userID, reason)
	return nil
}

// recordWarning 写入内容警告通知
func (l *Ledger) recordWarning(tx *gorm.DB, userID uint, v *verdict.Verdict) error {
	notification := models.UserNotification{
		UserID:  userID,
		Type:    models.NotificationContentWarning,
		Title:   "Content Under Review",
		Message: fmt.Sprintf("Your content has been flagged for review because it may contain %q material. Repeated violations may result in account restrictions.", v.Label),
	}
	return tx.Create(&notification).Error
}

// clamp 行为分钳位
func clamp(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
