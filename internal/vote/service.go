package vote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SlpAus/guideu-backend/internal/platform/apperr"
	"github.com/SlpAus/guideu-backend/internal/platform/database"
	"github.com/SlpAus/guideu-backend/internal/platform/logger"
	"github.com/SlpAus/guideu-backend/internal/qa"
	"github.com/SlpAus/guideu-backend/internal/reputation"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// errLostRace 表示本次尝试读取的账本状态已被并发写入改变
var errLostRace = errors.New("vote: ledger changed concurrently")

// retryBackoff 是两次重试之间的基础等待时间
const retryBackoff = 5 * time.Millisecond

// CastVote 记录用户对一条回答的投票，并同步回答计数和回答者的声望。
//
// 账本的每一次状态变化（新建或切换）都由一个条件写入完成，只有赢得这次写入的调用者
// 才会应用计数和金币的变化，因此并发点击不会重复计分。
func CastVote(ctx context.Context, answerID, voterID string, t Type) (*Result, error) {
	if voterID == "" {
		return nil, apperr.ErrAuthRequired
	}
	if !t.Valid() {
		return nil, fmt.Errorf("无效的投票类型 %q: %w", t, apperr.ErrInvalid)
	}

	answer, err := qa.GetAnswer(ctx, answerID)
	if err != nil {
		return nil, err
	}
	if answer.OwnerID == voterID {
		votesTotal.WithLabelValues("self_vote").Inc()
		return nil, apperr.ErrSelfVoteForbidden
	}

	attempts := settings().MaxAttempts
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := attemptVote(ctx, answer, voterID, t)
		if err == nil {
			return finish(ctx, answer, res)
		}
		if !errors.Is(err, errLostRace) && !database.IsRetryableError(err) {
			return nil, err
		}

		logger.Named("vote").Debug("投票写入冲突，准备重试", "answer", answerID, "voter", voterID, "attempt", attempt)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}

	votesTotal.WithLabelValues("conflict").Inc()
	return nil, fmt.Errorf("投票在 %d 次尝试后仍然冲突: %w", attempts, apperr.ErrWriteConflict)
}

// attemptVote 基于一次读取到的账本状态尝试一次状态转换
func attemptVote(ctx context.Context, answer *qa.Answer, voterID string, t Type) (*Result, error) {
	var existing Entry
	err := database.DB.WithContext(ctx).
		Where("answer_id = ? AND voter_id = ?", answer.ID, voterID).
		First(&existing).Error
	if err != nil && !database.IsNotFound(err) {
		return nil, fmt.Errorf("读取投票账本失败: %w", err)
	}
	found := err == nil

	// 重复点击同一个选项，没有任何状态变化
	if found && existing.VoteType == t {
		return &Result{Outcome: OutcomeAlreadyVoted, VoteType: t, Previous: t}, nil
	}

	res := &Result{Outcome: OutcomeOk, VoteType: t}
	if found {
		res.Previous = existing.VoteType
	}

	err = database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 账本优先：新建或条件切换
		if !found {
			entry := Entry{AnswerID: answer.ID, VoterID: voterID, VoteType: t, OwnerID: answer.OwnerID}
			ins := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
			if ins.Error != nil {
				return fmt.Errorf("写入投票账本失败: %w", ins.Error)
			}
			if ins.RowsAffected == 0 {
				return errLostRace
			}
		} else {
			upd := tx.Model(&Entry{}).
				Where("answer_id = ? AND voter_id = ? AND vote_type = ?", answer.ID, voterID, existing.VoteType).
				Updates(map[string]interface{}{"vote_type": t, "owner_id": answer.OwnerID})
			if upd.Error != nil {
				return fmt.Errorf("切换投票失败: %w", upd.Error)
			}
			if upd.RowsAffected == 0 {
				return errLostRace
			}
		}

		// 2. 回答计数
		useful, notUseful := countDelta(res.Previous, t)
		if err := qa.ApplyCountDelta(tx, answer.ID, useful, notUseful); err != nil {
			return err
		}

		// 3. 回答者声望
		delta, err := reputation.ApplyTransition(tx, answer.OwnerID, res.Previous == TypeUseful, t == TypeUseful)
		if err != nil {
			return err
		}
		res.CoinDelta = delta
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// countDelta 返回一次状态转换对两个计数的影响
func countDelta(from, to Type) (useful, notUseful int64) {
	switch from {
	case TypeUseful:
		useful--
	case TypeNotUseful:
		notUseful--
	}
	switch to {
	case TypeUseful:
		useful++
	case TypeNotUseful:
		notUseful++
	}
	return
}

// finish 同步排行榜、记录指标，并附上最新的回答计数
func finish(ctx context.Context, answer *qa.Answer, res *Result) (*Result, error) {
	if res.Outcome == OutcomeAlreadyVoted {
		votesTotal.WithLabelValues("already_voted").Inc()
	} else {
		votesTotal.WithLabelValues(string(res.VoteType)).Inc()
		reputation.MirrorCoins(ctx, answer.OwnerID, res.CoinDelta)
	}

	latest, err := qa.GetAnswer(ctx, answer.ID)
	if err != nil {
		return nil, err
	}
	res.UsefulCount = latest.UsefulCount
	res.NotUsefulCount = latest.NotUsefulCount
	return res, nil
}

// GetVote 返回用户对一条回答当前的投票，没有投过票时返回 nil
func GetVote(ctx context.Context, answerID, voterID string) (*Entry, error) {
	var e Entry
	err := database.DB.WithContext(ctx).
		Where("answer_id = ? AND voter_id = ?", answerID, voterID).
		First(&e).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("读取投票失败: %w", err)
	}
	return &e, nil
}
