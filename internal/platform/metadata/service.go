package metadata

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// --- Generic Accessors ---

// GetValue retrieves a value for a given key from the metadata table.
func GetValue(ctx context.Context, db *gorm.DB, key string) (string, error) {
	var meta Metadata
	err := db.WithContext(ctx).Where("key = ?", key).First(&meta).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// A missing key is a valid default.
			return "", nil
		}
		return "", err
	}
	return meta.Value, nil
}

// SetValue creates or updates a value for a given key.
func SetValue(ctx context.Context, db *gorm.DB, key, value string) error {
	meta := Metadata{
		Key:   key,
		Value: value,
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&meta).Error
}

// --- Specific Helpers for Type Conversion ---

// GetLastReconcileAt returns the zero time when no pass has completed yet.
func GetLastReconcileAt(ctx context.Context, db *gorm.DB) (time.Time, error) {
	valueStr, err := GetValue(ctx, db, LastReconcileAtKey)
	if err != nil || valueStr == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, valueStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("无法解析元数据 '%s' 的值: %w", LastReconcileAtKey, err)
	}
	return t, nil
}

// RecordReconcile stores the checkpoint of a finished reconciliation pass.
func RecordReconcile(ctx context.Context, db *gorm.DB, at time.Time, repairs int64) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		total, err := getInt(ctx, tx, TotalReconcileRepairsKey)
		if err != nil {
			return err
		}
		if err := SetValue(ctx, tx, LastReconcileAtKey, at.UTC().Format(time.RFC3339Nano)); err != nil {
			return err
		}
		if err := SetValue(ctx, tx, LastReconcileRepairsKey, strconv.FormatInt(repairs, 10)); err != nil {
			return err
		}
		return SetValue(ctx, tx, TotalReconcileRepairsKey, strconv.FormatInt(total+repairs, 10))
	})
}

// GetTotalReconcileRepairs returns the accumulated repair count.
func GetTotalReconcileRepairs(ctx context.Context, db *gorm.DB) (int64, error) {
	return getInt(ctx, db, TotalReconcileRepairsKey)
}

func getInt(ctx context.Context, db *gorm.DB, key string) (int64, error) {
	valueStr, err := GetValue(ctx, db, key)
	if err != nil || valueStr == "" {
		return 0, err
	}
	n, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("无法解析元数据 '%s' 的值: %w", key, err)
	}
	return n, nil
}
