package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/SlpAus/guideu-backend/internal/platform/apperr"
	"github.com/SlpAus/guideu-backend/internal/platform/database"
	"github.com/SlpAus/guideu-backend/internal/platform/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetProfile 读取一个用户的资料
func GetProfile(ctx context.Context, userID string) (*Profile, error) {
	if userID == "" {
		return nil, apperr.ErrAuthRequired
	}
	var p Profile
	if err := database.DB.WithContext(ctx).Where("id = ?", userID).First(&p).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, fmt.Errorf("用户 %s 不存在: %w", userID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("读取用户资料失败: %w", err)
	}
	return &p, nil
}

// GetProfiles 批量读取用户资料，不存在的ID会被忽略
func GetProfiles(ctx context.Context, userIDs []string) (map[string]Profile, error) {
	out := make(map[string]Profile, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var profiles []Profile
	if err := database.DB.WithContext(ctx).Where("id IN ?", userIDs).Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("批量读取用户资料失败: %w", err)
	}
	for _, p := range profiles {
		out[p.ID] = p
	}
	return out, nil
}

// UpsertProfile 创建或更新用户的基本资料。计数器不会被覆盖。
// 写入成功后，受众索引会按新旧资料的差异做增量更新。
func UpsertProfile(ctx context.Context, in ProfileInput) (*Profile, error) {
	if in.ID == "" {
		return nil, apperr.ErrAuthRequired
	}
	in.Year = strings.TrimSpace(in.Year)
	in.Branch = strings.TrimSpace(in.Branch)
	if in.Branch == "" {
		return nil, fmt.Errorf("分支不能为空: %w", apperr.ErrInvalid)
	}
	if _, ok := YearRank(in.Year); !ok {
		return nil, fmt.Errorf("无法识别的年级 %q: %w", in.Year, apperr.ErrInvalid)
	}

	p := Profile{ID: in.ID, Name: in.Name, Year: in.Year, Branch: in.Branch}
	err := database.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "year", "branch", "updated_at"}),
	}).Create(&p).Error
	if err != nil {
		return nil, fmt.Errorf("保存用户资料失败: %w", err)
	}

	if globalIndex.Apply(in.ID, in.Branch, in.Year) {
		logger.Named("directory").Debug("受众索引已更新", "user", in.ID, "branch", in.Branch, "year", in.Year)
	}

	stored, err := GetProfile(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	publishChange(ctx, stored)
	return stored, nil
}

// IncrementCounters 在一条UPDATE语句中原子地调整一个用户的多个计数器。
// 这是修改计数器的唯一入口。
func IncrementCounters(ctx context.Context, userID string, deltas map[Counter]int64) error {
	return IncrementCountersTx(database.DB.WithContext(ctx), userID, deltas)
}

// IncrementCountersTx 与 IncrementCounters 相同，但使用调用方给定的连接或事务
func IncrementCountersTx(tx *gorm.DB, userID string, deltas map[Counter]int64) error {
	updates := make(map[string]interface{}, len(deltas))
	for counter, delta := range deltas {
		if !counter.valid() {
			return fmt.Errorf("未知的计数器 %q: %w", counter, apperr.ErrInvalid)
		}
		if delta == 0 {
			continue
		}
		col := string(counter)
		updates[col] = gorm.Expr(col+" + ?", delta)
	}
	if len(updates) == 0 {
		return nil
	}

	res := tx.Model(&Profile{}).Where("id = ?", userID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("更新用户 %s 的计数器失败: %w", userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("用户 %s 不存在: %w", userID, apperr.ErrNotFound)
	}
	return nil
}

// TopByCoins 直接从数据库按金币数读取排名靠前的用户
func TopByCoins(ctx context.Context, limit int) ([]Profile, error) {
	var profiles []Profile
	err := database.DB.WithContext(ctx).
		Order("coins DESC").Order("id ASC").
		Limit(limit).
		Find(&profiles).Error
	if err != nil {
		return nil, fmt.Errorf("读取金币排名失败: %w", err)
	}
	return profiles, nil
}

// Audience 返回分支 branch 中年级严格高于 askerYear 的用户（不含 excludeID）。
// 无法识别的提问者年级按 0 处理，即分支内所有可识别年级的用户都会收到通知。
func Audience(branch, askerYear, excludeID string) []string {
	rank, ok := YearRank(askerYear)
	if !ok {
		rank = 0
	}
	return globalIndex.Audience(branch, rank, excludeID)
}
