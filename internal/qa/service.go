package qa

import (
	"context"
	"fmt"
	"strings"

	"github.com/SlpAus/guideu-backend/internal/directory"
	"github.com/SlpAus/guideu-backend/internal/notification"
	"github.com/SlpAus/guideu-backend/internal/platform/apperr"
	"github.com/SlpAus/guideu-backend/internal/platform/database"
	"github.com/SlpAus/guideu-backend/internal/platform/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubmitQuestion 创建一个问题并通知同分支的高年级用户，返回问题ID。
// 携带相同 RequestID 的重试不会重复创建问题，也不会重复计数，
// 但会再次执行扇出，从而补全上一次中断的通知。
func SubmitQuestion(ctx context.Context, in QuestionInput) (string, error) {
	if in.AskerID == "" {
		return "", apperr.ErrAuthRequired
	}
	in.Content = strings.TrimSpace(in.Content)
	in.Branch = strings.TrimSpace(in.Branch)
	if in.Content == "" || in.Branch == "" {
		return "", fmt.Errorf("问题内容和分支不能为空: %w", apperr.ErrInvalid)
	}

	asker, err := directory.GetProfile(ctx, in.AskerID)
	if err != nil {
		return "", err
	}

	id, err := recordID("question", in.AskerID, in.RequestID)
	if err != nil {
		return "", fmt.Errorf("无法生成问题ID: %w", err)
	}

	q := Question{
		ID:        id,
		Content:   in.Content,
		Branch:    in.Branch,
		AskerID:   in.AskerID,
		AskerYear: asker.Year,
	}

	// 1. 写入问题，首次写入时同时计入提问数
	err = database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&q)
		if res.Error != nil {
			return fmt.Errorf("写入问题失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return directory.IncrementCountersTx(tx, in.AskerID, map[directory.Counter]int64{
			directory.CounterQuestionsAsked: 1,
		})
	})
	if err != nil {
		return "", err
	}

	// 2. 以数据库中的记录为准进行扇出
	stored, err := GetQuestion(ctx, id)
	if err != nil {
		return "", err
	}
	if _, err := notification.FanoutQuestion(ctx, notification.QuestionEvent{
		QuestionID: stored.ID,
		Branch:     stored.Branch,
		AskerID:    stored.AskerID,
		AskerYear:  stored.AskerYear,
	}); err != nil {
		// 问题已经写入，通知可以由客户端重试补全
		logger.Named("qa").Warn("提问通知扇出失败", "question", id, "error", err)
		return id, err
	}
	return id, nil
}

// SubmitAnswer 为问题添加一条回答并通知提问者，返回回答ID。幂等规则与 SubmitQuestion 相同。
func SubmitAnswer(ctx context.Context, in AnswerInput) (string, error) {
	if in.AnswererID == "" {
		return "", apperr.ErrAuthRequired
	}
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" {
		return "", fmt.Errorf("回答内容不能为空: %w", apperr.ErrInvalid)
	}

	question, err := GetQuestion(ctx, in.QuestionID)
	if err != nil {
		return "", err
	}
	answerer, err := directory.GetProfile(ctx, in.AnswererID)
	if err != nil {
		return "", err
	}

	id, err := recordID("answer", in.AnswererID, in.RequestID)
	if err != nil {
		return "", fmt.Errorf("无法生成回答ID: %w", err)
	}

	a := Answer{
		ID:         id,
		QuestionID: question.ID,
		Content:    in.Content,
		OwnerID:    in.AnswererID,
		OwnerYear:  answerer.Year,
	}

	err = database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&a)
		if res.Error != nil {
			return fmt.Errorf("写入回答失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.Model(&Question{}).
			Where("id = ? AND is_answered = ?", question.ID, false).
			Update("is_answered", true).Error; err != nil {
			return fmt.Errorf("更新问题回答状态失败: %w", err)
		}
		return directory.IncrementCountersTx(tx, in.AnswererID, map[directory.Counter]int64{
			directory.CounterQuestionsAnswered: 1,
		})
	})
	if err != nil {
		return "", err
	}

	stored, err := GetAnswer(ctx, id)
	if err != nil {
		return "", err
	}
	if stored.QuestionID != question.ID {
		return "", fmt.Errorf("请求ID已用于另一个问题的回答: %w", apperr.ErrInvalid)
	}

	if _, err := notification.FanoutAnswer(ctx, notification.AnswerEvent{
		AnswerID:        stored.ID,
		QuestionID:      question.ID,
		Branch:          question.Branch,
		QuestionOwnerID: question.AskerID,
		AnswererID:      stored.OwnerID,
	}); err != nil {
		logger.Named("qa").Warn("回答通知扇出失败", "answer", id, "error", err)
		return id, err
	}
	return id, nil
}

// GetQuestion 读取一个问题
func GetQuestion(ctx context.Context, id string) (*Question, error) {
	var q Question
	if err := database.DB.WithContext(ctx).Where("id = ?", id).First(&q).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, fmt.Errorf("问题 %s 不存在: %w", id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("读取问题失败: %w", err)
	}
	return &q, nil
}

// GetAnswer 读取一条回答
func GetAnswer(ctx context.Context, id string) (*Answer, error) {
	var a Answer
	if err := database.DB.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, fmt.Errorf("回答 %s 不存在: %w", id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("读取回答失败: %w", err)
	}
	return &a, nil
}

// GetChildren 按创建时间返回问题下的全部回答
func GetChildren(ctx context.Context, questionID string) ([]Answer, error) {
	var answers []Answer
	err := database.DB.WithContext(ctx).
		Where("question_id = ?", questionID).
		Order("created_at ASC").Order("id ASC").
		Find(&answers).Error
	if err != nil {
		return nil, fmt.Errorf("读取问题 %s 的回答失败: %w", questionID, err)
	}
	return answers, nil
}

// GetQuestionDetail 返回问题及其全部回答
func GetQuestionDetail(ctx context.Context, id string) (*QuestionDetail, error) {
	q, err := GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	answers, err := GetChildren(ctx, id)
	if err != nil {
		return nil, err
	}
	return &QuestionDetail{Question: *q, Answers: answers}, nil
}

// ListQuestions 按时间倒序返回某个分支下的问题，branch 为空时返回全部分支
func ListQuestions(ctx context.Context, branch string, limit int) ([]Question, error) {
	var questions []Question
	q := database.DB.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if branch != "" {
		q = q.Where("branch = ?", branch)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("读取问题列表失败: %w", err)
	}
	return questions, nil
}

// ApplyCountDelta 在一条UPDATE语句中调整回答的两个投票计数
func ApplyCountDelta(tx *gorm.DB, answerID string, usefulDelta, notUsefulDelta int64) error {
	updates := map[string]interface{}{}
	if usefulDelta != 0 {
		updates["useful_count"] = gorm.Expr("useful_count + ?", usefulDelta)
	}
	if notUsefulDelta != 0 {
		updates["not_useful_count"] = gorm.Expr("not_useful_count + ?", notUsefulDelta)
	}
	if len(updates) == 0 {
		return nil
	}
	res := tx.Model(&Answer{}).Where("id = ?", answerID).UpdateColumns(updates)
	if res.Error != nil {
		return fmt.Errorf("更新回答 %s 的计数失败: %w", answerID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("回答 %s 不存在: %w", answerID, apperr.ErrNotFound)
	}
	return nil
}
