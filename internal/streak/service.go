package streak

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SlpAus/guideu-backend/internal/directory"
	"github.com/SlpAus/guideu-backend/internal/platform/apperr"
	"github.com/SlpAus/guideu-backend/internal/platform/database"
	"github.com/SlpAus/guideu-backend/internal/platform/logger"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxAttempts 是版本冲突时的最大重试次数
const maxAttempts = 5

// errStale 表示保存时记录的版本已经变化
var errStale = errors.New("streak: stale version")

// mutation 在一份最新的清单上做修改，返回是否需要保存
type mutation func(ts *TaskSet, today string) (bool, error)

// load 读取用户的清单，不存在时创建一份空清单
func load(ctx context.Context, userID string) (*TaskSet, error) {
	var ts TaskSet
	err := database.DB.WithContext(ctx).Where("user_id = ?", userID).First(&ts).Error
	if err == nil {
		return &ts, nil
	}
	if !database.IsNotFound(err) {
		return nil, fmt.Errorf("读取每日任务失败: %w", err)
	}

	// 只为存在的用户建立清单
	if _, err := directory.GetProfile(ctx, userID); err != nil {
		return nil, err
	}
	fresh := TaskSet{
		UserID:           userID,
		Date:             Today(),
		Tasks:            datatypes.JSONSlice[Task]{},
		SelectedForToday: datatypes.JSONSlice[string]{},
	}
	if err := database.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&fresh).Error; err != nil {
		return nil, fmt.Errorf("创建每日任务失败: %w", err)
	}
	if err := database.DB.WithContext(ctx).Where("user_id = ?", userID).First(&ts).Error; err != nil {
		return nil, fmt.Errorf("读取每日任务失败: %w", err)
	}
	return &ts, nil
}

// update 先按今天的日期翻页，再应用修改，最后以版本号做比较并交换写回。
// 版本冲突时重新读取并重新计算，因此同一天内的并发完成最多只会计入一次。
func update(ctx context.Context, userID string, fn mutation) (*TaskSet, bool, error) {
	if userID == "" {
		return nil, false, apperr.ErrAuthRequired
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		stored, err := load(ctx, userID)
		if err != nil {
			return nil, false, err
		}

		today := Today()
		next := stored.clone()
		rolled := next.rollover(today)
		changed, err := fn(next, today)
		if err != nil {
			return nil, false, err
		}
		if !rolled && !changed {
			return next, false, nil
		}

		credited := next.Streak > stored.Streak
		err = save(ctx, stored.Version, next, credited)
		if errors.Is(err, errStale) || database.IsRetryableError(err) {
			logger.Named("streak").Debug("每日任务版本冲突，重新计算", "user", userID, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, false, err
		}

		next.Version = stored.Version + 1
		if credited {
			incrementsTotal.Inc()
		}
		return next, credited, nil
	}
	return nil, false, fmt.Errorf("每日任务在 %d 次尝试后仍然冲突: %w", maxAttempts, apperr.ErrWriteConflict)
}

// save 以 version 为条件写回清单，打卡成功时在同一事务中累加资料里的连续天数
func save(ctx context.Context, version int64, ts *TaskSet, credited bool) error {
	return database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&TaskSet{}).
			Where("user_id = ? AND version = ?", ts.UserID, version).
			Updates(map[string]interface{}{
				"date":                ts.Date,
				"tasks":               ts.Tasks,
				"selected_for_today":  ts.SelectedForToday,
				"streak":              ts.Streak,
				"last_completed_date": ts.LastCompletedDate,
				"version":             version + 1,
			})
		if res.Error != nil {
			return fmt.Errorf("保存每日任务失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errStale
		}
		if !credited {
			return nil
		}
		return directory.IncrementCountersTx(tx, ts.UserID, map[directory.Counter]int64{
			directory.CounterDailyStreak: 1,
		})
	})
}

// Get 返回用户今天的任务清单，跨天时会先清空完成状态
func Get(ctx context.Context, userID string) (*TaskSet, error) {
	ts, _, err := update(ctx, userID, func(*TaskSet, string) (bool, error) { return false, nil })
	return ts, err
}

// NewDay 把清单推进到今天。日期只会前进，同一天内重复调用没有效果。
func NewDay(ctx context.Context, userID string) (*TaskSet, error) {
	return Get(ctx, userID)
}

// AddTask 在清单末尾添加一个未完成的任务
func AddTask(ctx context.Context, userID, title string) (*TaskSet, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("任务标题不能为空: %w", apperr.ErrInvalid)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("无法生成任务ID: %w", err)
	}

	ts, _, err := update(ctx, userID, func(ts *TaskSet, _ string) (bool, error) {
		ts.Tasks = append(ts.Tasks, Task{ID: id.String(), Title: title})
		return true, nil
	})
	return ts, err
}

// SelectTasks 设置今天要完成的任务。选择在跨天后保留。
func SelectTasks(ctx context.Context, userID string, taskIDs []string) (*TaskSet, error) {
	ts, _, err := update(ctx, userID, func(ts *TaskSet, _ string) (bool, error) {
		seen := make(map[string]struct{}, len(taskIDs))
		selected := make(datatypes.JSONSlice[string], 0, len(taskIDs))
		for _, id := range taskIDs {
			if ts.findTask(id) < 0 {
				return false, fmt.Errorf("任务 %s 不存在: %w", id, apperr.ErrNotFound)
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			selected = append(selected, id)
		}
		ts.SelectedForToday = selected
		return true, nil
	})
	return ts, err
}

// CompleteTask 把任务标记为完成（不可撤销），然后检查今天是否可以计入连续打卡
func CompleteTask(ctx context.Context, userID, taskID string) (*CompletionResult, error) {
	ts, credited, err := update(ctx, userID, func(ts *TaskSet, today string) (bool, error) {
		i := ts.findTask(taskID)
		if i < 0 {
			return false, fmt.Errorf("任务 %s 不存在: %w", taskID, apperr.ErrNotFound)
		}
		changed := false
		if !ts.Tasks[i].Done {
			ts.Tasks[i].Done = true
			changed = true
		}
		if ts.credit(today) {
			changed = true
		}
		return changed, nil
	})
	if err != nil {
		return nil, err
	}
	if credited {
		logger.Named("streak").Info("连续打卡天数增加", "user", userID, "streak", ts.Streak)
	}
	return &CompletionResult{StreakIncremented: credited, NewStreak: ts.Streak}, nil
}
