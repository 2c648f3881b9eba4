package trust

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/safecommunity/guardianai/models"
	"github.com/safecommunity/guardianai/pkg/verdict"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// 单连接避免内存库的并发写锁冲突，乐观锁逻辑不受影响
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.ContentItem{},
		&models.UserTrustRecord{},
		&models.TrustEvent{},
		&models.BanAuditEntry{},
		&models.UserNotification{},
	))
	return db
}

func newTestLedger(db *gorm.DB) *Ledger {
	policy := verdict.NewPolicy(0.7, 0.4, []string{"hate speech", "hate_speech", "violence", "adult"})
	return NewLedger(db, policy, 3, 7, 0.8)
}

func rejectedVerdict(label string, confidence float64) *verdict.Verdict {
	return &verdict.Verdict{Status: models.StatusRejected, Label: label, Confidence: confidence}
}

func TestApplyCreatesRecordLazily(t *testing.T) {
	db := newTestDB(t)
	ledger := newTestLedger(db)

	record, err := ledger.Apply(context.Background(), 1, "post-1", rejectedVerdict("hate speech", 0.85))
	require.NoError(t, err)

	// 首个裁决懒创建记录：默认100分，-10后90
	assert.Equal(t, 90, record.BehaviorScore)
	assert.Equal(t, 1, record.WarningCount)
	assert.False(t, record.Banned)
}

func TestApplyApprovedGivesPositiveDelta(t *testing.T) {
	db := newTestDB(t)
	ledger := newTestLedger(db)

	seed := models.UserTrustRecord{UserID: 1, BehaviorScore: 50}
	require.NoError(t, db.Create(&seed).Error)

	v := &verdict.Verdict{Status: models.StatusApproved}
	record, err := ledger.Apply(context.Background(), 1, "post-1", v)
	require.NoError(t, err)

	assert.Equal(t, 51, record.BehaviorScore)
	assert.Equal(t, 0, record.WarningCount)
}

func TestApplyPendingHarmfulDelta(t *testing.T) {
	db := newTestDB(t)
	ledger := newTestLedger(db)

	v := &verdict.Verdict{Status: models.StatusPending, Label: "violence", Confidence: 0.5}
	record, err := ledger.Apply(context.Background(), 1, "post-1", v)
	require.NoError(t, err)

	// PENDING+有害：-3，不加警告，不转换状态
	assert.Equal(t, 97, record.BehaviorScore)
	assert.Equal(t, 0, record.WarningCount)
	assert.False(t, record.Banned)

	// 产生一条内容警告通知
	var count int64
	db.Model(&models.UserNotification{}).
		Where("user_id = ? AND type = ?", 1, models.NotificationContentWarning).
		Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestApplyNonHarmfulLabelNotPunished(t *testing.T) {
	db := newTestDB(t)
	ledger := newTestLedger(db)

	// 状态是PENDING但标签不在有害词表里：只有+1激励
	v := &verdict.Verdict{Status: models.StatusPending, Label: "medical", Confidence: 0.5}
	record, err := ledger.Apply(context.Background(), 1, "post-1", v)
	require.NoError(t, err)

	assert.Equal(t, 100, record.BehaviorScore) // 已钳位到上限
	assert.Equal(t, 0, record.WarningCount)
}

func TestApplyScoreClamping(t *testing.T) {
	db := newTestDB(t)
	ledger := newTestLedger(db)

	seed := models.UserTrustRecord{UserID: 1, BehaviorScore: 5}
	require.NoError(t, db.Create(&seed).Error)

	// 5-10钳位到0而不是-5
	record, err := ledger.Apply(context.Background(), 1, "post-1", rejectedVerdict("violence", 0.9))
	require.NoError(t, err)
	assert.Equal(t, 0, record.BehaviorScore)
}

func TestApplyBanTransition(t *testing.T) {
	db := newTestDB(t)
	ledger := newTestLedger(db)

	seed := models.UserTrustRecord{UserID: 7, BehaviorScore: 60, WarningCount: 2}
	require.NoError(t, db.Create(&seed).Error)

	record, err := ledger.Apply(context.Background(), 7, "post-3", rejectedVerdict("hate speech", 0.85))
	require.NoError(t, err)

	assert.True(t, record.Banned)
	assert.Equal(t, 3, record.WarningCount)
	assert.Equal(t, "high", record.BanSeverity) // 0.85 > 0.8
	require.NotNil(t, record.AppealEligibleAt)
	require.NotNil(t, record.BannedAt)
	assert.InDelta(t, 7*24, record.AppealEligibleAt.Sub(*record.BannedAt).Hours(), 1)

	// 正好一条封禁审计记录和一条封禁通知，审计原因与记录上的封禁原因一致
	var entry models.BanAuditEntry
	require.NoError(t, db.Where("user_id = ?", 7).First(&entry).Error)
	assert.Equal(t, record.BanReason, entry.Reason)

	var auditCount int64
	db.Model(&models.BanAuditEntry{}).Where("user_id = ?", 7).Count(&auditCount)
	assert.Equal(t, int64(1), auditCount)

	var notifyCount int64
	db.Model(&models.UserNotification{}).
		Where("user_id = ? AND type = ?", 7, models.NotificationAccountBan).
		Count(&notifyCount)
	assert.Equal(t, int64(1), notifyCount)
}

func TestApplyBanSeverityMedium(t *testing.T) {
	db := newTestDB(t)
	ledger := newTestLedger(db)

	seed := models.UserTrustRecord{UserID: 7, WarningCount: 2, BehaviorScore: 60}
	require.NoError(t, db.Create(&seed).Error)

	record, err := ledger.Apply(context.Background(), 7, "post-3", rejectedVerdict("violence", 0.75))
	require.NoError(t, err)
	assert.True(t, record.Banned)
	assert.Equal(t, "medium", record.BanSeverity)
}

func TestApplyIdempotentPerVerdict(t *testing.T) {
	db := newTestDB(t)
	ledger := newTestLedger(db)

	seed := models.UserTrustRecord{UserID: 7, WarningCount: 2, BehaviorScore: 60}
	require.NoError(t, db.Create(&seed).Error)

	v := rejectedVerdict("hate speech", 0.85)
	first, err := ledger.Apply(context.Background(), 7, "post-3", v)
	require.NoError(t, err)
	require.True(t, first.Banned)

	// 同一裁决重放：分数、警告、封禁详情都不变，不产生第二条审计记录
	second, err := ledger.Apply(context.Background(), 7, "post-3", v)
	require.NoError(t, err)
	assert.Equal(t, first.BehaviorScore, second.BehaviorScore)
	assert.Equal(t, first.WarningCount, second.WarningCount)
	assert.Equal(t, first.BanReason, second.BanReason)

	var auditCount int64
	db.Model(&models.BanAuditEntry{}).Where("user_id = ?", 7).Count(&auditCount)
	assert.Equal(t, int64(1), auditCount)
}

func TestApplyAlreadyBannedNoSecondAudit(t *testing.T) {
	db := newTestDB(t)
	ledger := newTestLedger(db)

	seed := models.UserTrustRecord{UserID: 7, WarningCount: 2, BehaviorScore: 60}
	require.NoError(t, db.Create(&seed).Error)

	first, err := ledger.Apply(context.Background(), 7, "post-3", rejectedVerdict("hate speech", 0.85))
	require.NoError(t, err)
	require.True(t, first.Banned)

	// 新的违规裁决：警告继续累计但不重复封禁
	record, err := ledger.Apply(context.Background(), 7, "post-4", rejectedVerdict("violence", 0.9))
	require.NoError(t, err)
	assert.True(t, record.Banned)
	assert.Equal(t, 4, record.WarningCount)
	assert.Equal(t, first.BanReason, record.BanReason)

	var auditCount int64
	db.Model(&models.BanAuditEntry{}).Where("user_id = ?", 7).Count(&auditCount)
	assert.Equal(t, int64(1), auditCount)
}

func TestApplyConcurrentVerdictsNoLostUpdate(t *testing.T) {
	db := newTestDB(t)
	ledger := newTestLedger(db)

	seed := models.UserTrustRecord{UserID: 7, WarningCount: 2, BehaviorScore: 60}
	require.NoError(t, db.Create(&seed).Error)

	// 同一用户的两条违规内容并发裁决
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ledger.Apply(context.Background(), 7,
				fmt.Sprintf("post-%d", i), rejectedVerdict("hate speech", 0.85))
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	// 两次-10和两次警告都不能丢，且只有一次封禁转换
	var record models.UserTrustRecord
	require.NoError(t, db.Where("user_id = ?", 7).First(&record).Error)
	assert.Equal(t, 4, record.WarningCount)
	assert.Equal(t, 40, record.BehaviorScore)
	assert.True(t, record.Banned)

	var auditCount int64
	db.Model(&models.BanAuditEntry{}).Where("user_id = ?", 7).Count(&auditCount)
	assert.Equal(t, int64(1), auditCount)
}

func TestManualBanSetsDetailsAndAudit(t *testing.T) {
	db := newTestDB(t)
	ledger := newTestLedger(db)

	seed := models.UserTrustRecord{UserID: 9, BehaviorScore: 80, WarningCount: 1}
	require.NoError(t, db.Create(&seed).Error)

	record, err := ledger.ManualBan(context.Background(), 9, "Coordinated spam waves")
	require.NoError(t, err)

	assert.True(t, record.Banned)
	assert.Equal(t, "Coordinated spam waves", record.BanReason)
	assert.Equal(t, "high", record.BanSeverity)
	require.NotNil(t, record.BannedAt)
	require.NotNil(t, record.AppealEligibleAt)

	// 手动封禁也要维持不变量：警告计数补齐到封禁阈值
	assert.Equal(t, 3, record.WarningCount)

	// 审计记录和封禁通知在同一事务内写入，原因与记录一致
	var entry models.BanAuditEntry
	require.NoError(t, db.Where("user_id = ?", 9).First(&entry).Error)
	assert.Equal(t, record.BanReason, entry.Reason)

	var notifyCount int64
	db.Model(&models.UserNotification{}).
		Where("user_id = ? AND type = ?", 9, models.NotificationAccountBan).
		Count(&notifyCount)
	assert.Equal(t, int64(1), notifyCount)
}

func TestManualBanIdempotent(t *testing.T) {
	db := newTestDB(t)
	ledger := newTestLedger(db)

	first, err := ledger.ManualBan(context.Background(), 9, "")
	require.NoError(t, err)
	assert.Equal(t, "Banned by moderator", first.BanReason)

	// 重复封禁不改变记录，也不产生第二条审计
	second, err := ledger.ManualBan(context.Background(), 9, "another reason")
	require.NoError(t, err)
	assert.Equal(t, first.BanReason, second.BanReason)
	assert.Equal(t, first.Version, second.Version)

	var auditCount int64
	db.Model(&models.BanAuditEntry{}).Where("user_id = ?", 9).Count(&auditCount)
	assert.Equal(t, int64(1), auditCount)
}

func TestManualUnbanClearsBanState(t *testing.T) {
	db := newTestDB(t)
	ledger := newTestLedger(db)

	banned, err := ledger.ManualBan(context.Background(), 9, "Coordinated spam waves")
	require.NoError(t, err)
	require.True(t, banned.Banned)

	record, err := ledger.ManualUnban(context.Background(), 9)
	require.NoError(t, err)

	assert.False(t, record.Banned)
	assert.Empty(t, record.BanReason)
	assert.Empty(t, record.BanSeverity)
	assert.Nil(t, record.BannedAt)
	assert.Nil(t, record.AppealEligibleAt)
	assert.Equal(t, 0, record.WarningCount)

	// 对未封禁用户再解封是幂等的
	again, err := ledger.ManualUnban(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, record.Version, again.Version)
}

func TestManualBanConcurrentWithVerdictNoLostUpdate(t *testing.T) {
	db := newTestDB(t)
	ledger := newTestLedger(db)

	seed := models.UserTrustRecord{UserID: 9, BehaviorScore: 100}
	require.NoError(t, db.Create(&seed).Error)

	// 手动封禁和裁决更新并发：版本冲突必须让慢的一方重读重试，不能静默丢更新
	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = ledger.Apply(context.Background(), 9, "post-1", rejectedVerdict("violence", 0.9))
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = ledger.ManualBan(context.Background(), 9, "Coordinated spam waves")
	}()
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	// 两边的效果都要留下：封禁生效，-10也生效
	var record models.UserTrustRecord
	require.NoError(t, db.Where("user_id = ?", 9).First(&record).Error)
	assert.True(t, record.Banned)
	assert.Equal(t, 90, record.BehaviorScore)
	assert.GreaterOrEqual(t, record.WarningCount, 3)
	assert.Equal(t, "Coordinated spam waves", record.BanReason)

	var auditCount int64
	db.Model(&models.BanAuditEntry{}).Where("user_id = ?", 9).Count(&auditCount)
	assert.Equal(t, int64(1), auditCount)
}

func TestApplyWarningCountMonotonic(t *testing.T) {
	db := newTestDB(t)
	ledger := newTestLedger(db)

	var last int
	for i := 0; i < 5; i++ {
		record, err := ledger.Apply(context.Background(), 1,
			fmt.Sprintf("post-%d", i), rejectedVerdict("violence", 0.9))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, record.WarningCount, last)
		last = record.WarningCount
	}
	assert.Equal(t, 5, last)
}
