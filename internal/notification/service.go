package notification

import (
	"context"
	"fmt"

	"github.com/SlpAus/guideu-backend/internal/directory"
	"github.com/SlpAus/guideu-backend/internal/platform/apperr"
	"github.com/SlpAus/guideu-backend/internal/platform/database"
	"github.com/SlpAus/guideu-backend/internal/platform/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FanoutQuestion 为同分支、年级更高的用户生成提问通知，返回本次新写入的条数。
// 对同一个问题重复调用是安全的，已经存在的通知不会重复写入或重复推送。
func FanoutQuestion(ctx context.Context, ev QuestionEvent) (int, error) {
	audience := directory.Audience(ev.Branch, ev.AskerYear, ev.AskerID)
	if len(audience) == 0 {
		return 0, nil
	}

	sourceEventID := QuestionSourceEventID(ev.QuestionID)
	batch := make([]Notification, 0, len(audience))
	for _, recipientID := range audience {
		batch = append(batch, Notification{
			ID:            NotificationID(sourceEventID, recipientID),
			Type:          TypeQuestion,
			Branch:        ev.Branch,
			QuestionID:    ev.QuestionID,
			RecipientID:   recipientID,
			SourceEventID: sourceEventID,
		})
	}
	return emit(ctx, batch)
}

// FanoutAnswer 通知问题的提问者有了新回答。自问自答不产生通知。
func FanoutAnswer(ctx context.Context, ev AnswerEvent) (int, error) {
	if ev.QuestionOwnerID == "" || ev.AnswererID == ev.QuestionOwnerID {
		return 0, nil
	}
	sourceEventID := AnswerSourceEventID(ev.AnswerID)
	return emit(ctx, []Notification{{
		ID:            NotificationID(sourceEventID, ev.QuestionOwnerID),
		Type:          TypeAnswer,
		Branch:        ev.Branch,
		QuestionID:    ev.QuestionID,
		AnswerID:      ev.AnswerID,
		RecipientID:   ev.QuestionOwnerID,
		SourceEventID: sourceEventID,
	}})
}

// emit 幂等地写入一批通知，只推送真正新写入的那部分
func emit(ctx context.Context, batch []Notification) (int, error) {
	var created []Notification
	err := database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created = created[:0]
		for i := range batch {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&batch[i])
			if res.Error != nil {
				return fmt.Errorf("写入通知 %s 失败: %w", batch[i].ID, res.Error)
			}
			if res.RowsAffected == 1 {
				created = append(created, batch[i])
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, n := range created {
		emittedTotal.WithLabelValues(string(n.Type)).Inc()
	}
	if len(created) > 0 {
		logger.Named("notification").Debug("通知已写入", "source", created[0].SourceEventID, "count", len(created))
	}
	push(ctx, created)
	return len(created), nil
}

// OpenNotification 把通知标记为已读，并返回跳转目标。
// 已读的通知再次打开时返回相同的目标，已读状态不会回退。
func OpenNotification(ctx context.Context, notificationID, userID string) (*Target, error) {
	if userID == "" {
		return nil, apperr.ErrAuthRequired
	}

	var n Notification
	err := database.DB.WithContext(ctx).
		Where("id = ? AND recipient_id = ?", notificationID, userID).
		First(&n).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, fmt.Errorf("通知 %s 不存在: %w", notificationID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("读取通知失败: %w", err)
	}

	if !n.IsRead {
		// 条件更新保证 false -> true 只发生一次
		res := database.DB.WithContext(ctx).Model(&Notification{}).
			Where("id = ? AND is_read = ?", n.ID, false).
			Update("is_read", true)
		if res.Error != nil {
			return nil, fmt.Errorf("标记通知已读失败: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			openedTotal.Inc()
		}
	}

	return &Target{QuestionID: n.QuestionID, AnswerID: n.AnswerID, Branch: n.Branch}, nil
}

// List 按时间倒序返回用户的通知，以及未读数量
func List(ctx context.Context, userID string, limit int) ([]Notification, int64, error) {
	if userID == "" {
		return nil, 0, apperr.ErrAuthRequired
	}

	var list []Notification
	q := database.DB.WithContext(ctx).
		Where("recipient_id = ?", userID).
		Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, 0, fmt.Errorf("读取通知列表失败: %w", err)
	}

	var unread int64
	err := database.DB.WithContext(ctx).Model(&Notification{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Count(&unread).Error
	if err != nil {
		return nil, 0, fmt.Errorf("统计未读通知失败: %w", err)
	}
	return list, unread, nil
}
