// Package reconcile 从投票账本和问答记录重新计算所有派生计数，修复因中断写入而产生的偏差。
// 每一次修复都以旧值为条件写入，并跳过宽限期内刚发生变化的记录，
// 因此可以与线上流量并发、反复执行。
package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/SlpAus/guideu-backend/internal/directory"
	"github.com/SlpAus/guideu-backend/internal/platform/database"
	"github.com/SlpAus/guideu-backend/internal/platform/logger"
	"github.com/SlpAus/guideu-backend/internal/platform/metadata"
	"github.com/SlpAus/guideu-backend/internal/qa"
	"github.com/SlpAus/guideu-backend/internal/reputation"
	"github.com/SlpAus/guideu-backend/internal/streak"
	"github.com/SlpAus/guideu-backend/internal/vote"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// batchSize 是分批扫描时每批的记录数
const batchSize = 500

// passMutex 避免同一进程内的多次对账重叠
var passMutex sync.Mutex

// Options 控制一次对账
type Options struct {
	// Grace 内发生过变化的记录本轮不修复
	Grace time.Duration
	// Now 为空时使用系统时钟
	Now func() time.Time
}

// Report 汇总一次对账修复的记录数
type Report struct {
	AnswerCounters  int64         `json:"answerCounters"`
	OwnerReputation int64         `json:"ownerReputation"`
	ProfileCounters int64         `json:"profileCounters"`
	Denormalized    int64         `json:"denormalized"`
	Skipped         int64         `json:"skipped"`
	Duration        time.Duration `json:"duration"`
}

// Total 返回修复的总记录数
func (r *Report) Total() int64 {
	return r.AnswerCounters + r.OwnerReputation + r.ProfileCounters + r.Denormalized
}

// Run 执行一次完整的对账
func Run(ctx context.Context, opts Options) (*Report, error) {
	passMutex.Lock()
	defer passMutex.Unlock()

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	start := now()
	cutoff := start.Add(-opts.Grace)
	log := logger.Named("reconcile")
	report := &Report{}

	// 1. 回答的投票计数
	if err := reconcileAnswers(ctx, cutoff, report); err != nil {
		return nil, err
	}
	// 2. 回答者的金币与累计有用数
	if err := reconcileOwners(ctx, cutoff, report); err != nil {
		return nil, err
	}
	// 3. 提问数、回答数和连续打卡天数
	if err := reconcileActivity(ctx, cutoff, report); err != nil {
		return nil, err
	}
	// 4. 冗余字段
	if err := repairDenormalized(ctx, report); err != nil {
		return nil, err
	}
	// 5. 缓存
	if err := rebuildCaches(ctx); err != nil {
		log.Warn("对账后重建缓存失败", "error", err)
	}

	report.Duration = now().Sub(start)
	observe(report)

	// 6. 检查点
	if err := metadata.RecordReconcile(ctx, database.DB, now(), report.Total()); err != nil {
		return report, fmt.Errorf("记录对账检查点失败: %w", err)
	}

	if report.Total() > 0 {
		log.Warn("对账修复了派生数据", "answers", report.AnswerCounters, "owners", report.OwnerReputation,
			"profiles", report.ProfileCounters, "denormalized", report.Denormalized, "skipped", report.Skipped)
	} else {
		log.Info("对账完成，没有发现偏差", "skipped", report.Skipped, "duration", report.Duration)
	}
	return report, nil
}

// ledgerTally 是账本按某个维度聚合后的结果
type ledgerTally struct {
	Grp        string
	Useful     int64
	NotUseful  int64
	LastChange time.Time
}

func (t ledgerTally) recent(cutoff time.Time) bool {
	return !t.LastChange.IsZero() && t.LastChange.After(cutoff)
}

// tallySelect 是按 vote_type 分别计数并取最近变更时间的聚合列
const tallySelect = "SUM(CASE WHEN vote_entries.vote_type = ? THEN 1 ELSE 0 END) AS useful, " +
	"SUM(CASE WHEN vote_entries.vote_type = ? THEN 1 ELSE 0 END) AS not_useful, " +
	"MAX(vote_entries.updated_at) AS last_change"

type tallyRow struct {
	Grp        string
	Useful     int64
	NotUseful  int64
	LastChange string
}

// scanTallies 执行聚合查询。SQLite 返回的 MAX(时间) 是字符串，因此统一按字符串扫描后再解析。
func scanTallies(q *gorm.DB) (map[string]ledgerTally, error) {
	var rows []tallyRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]ledgerTally, len(rows))
	for _, r := range rows {
		out[r.Grp] = ledgerTally{Grp: r.Grp, Useful: r.Useful, NotUseful: r.NotUseful, LastChange: parseTime(r.LastChange)}
	}
	return out, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func reconcileAnswers(ctx context.Context, cutoff time.Time, report *Report) error {
	var batch []qa.Answer
	res := database.DB.WithContext(ctx).
		Select("id", "useful_count", "not_useful_count").
		FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
			ids := make([]string, len(batch))
			for i, a := range batch {
				ids[i] = a.ID
			}
			tallies, err := scanTallies(database.DB.WithContext(ctx).Model(&vote.Entry{}).
				Select("vote_entries.answer_id AS grp, "+tallySelect, vote.TypeUseful, vote.TypeNotUseful).
				Where("vote_entries.answer_id IN ?", ids).
				Group("vote_entries.answer_id"))
			if err != nil {
				return fmt.Errorf("聚合回答的投票账本失败: %w", err)
			}

			for _, a := range batch {
				t := tallies[a.ID]
				if a.UsefulCount == t.Useful && a.NotUsefulCount == t.NotUseful {
					continue
				}
				if t.recent(cutoff) {
					report.Skipped++
					continue
				}
				upd := database.DB.WithContext(ctx).Model(&qa.Answer{}).
					Where("id = ? AND useful_count = ? AND not_useful_count = ?", a.ID, a.UsefulCount, a.NotUsefulCount).
					UpdateColumns(map[string]interface{}{"useful_count": t.Useful, "not_useful_count": t.NotUseful})
				if upd.Error != nil {
					return fmt.Errorf("修复回答 %s 的计数失败: %w", a.ID, upd.Error)
				}
				report.AnswerCounters += upd.RowsAffected
			}
			return nil
		})
	if res.Error != nil {
		return fmt.Errorf("扫描回答失败: %w", res.Error)
	}
	return nil
}

// reconcileOwners 先读取一批资料，再只为这批用户聚合账本。
// 两次读取之间提交的投票会让聚合结果落入宽限期而被跳过，之后提交的投票会让条件写入落空。
func reconcileOwners(ctx context.Context, cutoff time.Time, report *Report) error {
	var batch []directory.Profile
	res := database.DB.WithContext(ctx).
		Select("id", "coins", "total_useful_received").
		FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
			tallies, err := scanTallies(database.DB.WithContext(ctx).Model(&vote.Entry{}).
				Select("answers.owner_id AS grp, "+tallySelect, vote.TypeUseful, vote.TypeNotUseful).
				Joins("JOIN answers ON answers.id = vote_entries.answer_id").
				Where("answers.owner_id IN ?", profileIDs(batch)).
				Group("answers.owner_id"))
			if err != nil {
				return fmt.Errorf("聚合回答者的投票账本失败: %w", err)
			}

			for _, p := range batch {
				t := tallies[p.ID]
				if p.Coins == t.Useful && p.TotalUsefulReceived == t.Useful {
					continue
				}
				if t.recent(cutoff) {
					report.Skipped++
					continue
				}
				upd := database.DB.WithContext(ctx).Model(&directory.Profile{}).
					Where("id = ? AND coins = ? AND total_useful_received = ?", p.ID, p.Coins, p.TotalUsefulReceived).
					UpdateColumns(map[string]interface{}{"coins": t.Useful, "total_useful_received": t.Useful})
				if upd.Error != nil {
					return fmt.Errorf("修复用户 %s 的声望失败: %w", p.ID, upd.Error)
				}
				report.OwnerReputation += upd.RowsAffected
			}
			return nil
		})
	if res.Error != nil {
		return fmt.Errorf("扫描用户资料失败: %w", res.Error)
	}
	return nil
}

func profileIDs(batch []directory.Profile) []string {
	ids := make([]string, len(batch))
	for i, p := range batch {
		ids[i] = p.ID
	}
	return ids
}

// activityRow 是按用户聚合的提问或回答数
type activityRow struct {
	Grp        string
	N          int64
	LastChange string
}

func countBy(ctx context.Context, model interface{}, keyColumn string, ids []string) (map[string]activityRow, error) {
	var rows []activityRow
	err := database.DB.WithContext(ctx).Model(model).
		Select(keyColumn+" AS grp, COUNT(*) AS n, MAX(created_at) AS last_change").
		Where(keyColumn+" IN ?", ids).
		Group(keyColumn).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]activityRow, len(rows))
	for _, r := range rows {
		out[r.Grp] = r
	}
	return out, nil
}

// reconcileActivity 与 reconcileOwners 一样，先快照资料批次，再为这批用户统计提问、回答和打卡
func reconcileActivity(ctx context.Context, cutoff time.Time, report *Report) error {
	var batch []directory.Profile
	res := database.DB.WithContext(ctx).
		Select("id", "questions_asked", "questions_answered", "daily_streak").
		FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
			ids := profileIDs(batch)
			asked, err := countBy(ctx, &qa.Question{}, "asker_id", ids)
			if err != nil {
				return fmt.Errorf("统计提问数失败: %w", err)
			}
			answered, err := countBy(ctx, &qa.Answer{}, "owner_id", ids)
			if err != nil {
				return fmt.Errorf("统计回答数失败: %w", err)
			}
			var sets []streak.TaskSet
			if err := database.DB.WithContext(ctx).Select("user_id", "streak", "updated_at").
				Where("user_id IN ?", ids).Find(&sets).Error; err != nil {
				return fmt.Errorf("读取每日任务失败: %w", err)
			}
			streaks := make(map[string]streak.TaskSet, len(sets))
			for _, s := range sets {
				streaks[s.UserID] = s
			}

			for _, p := range batch {
				updates := map[string]interface{}{}
				conds := database.DB.WithContext(ctx).Model(&directory.Profile{}).Where("id = ?", p.ID)

				if a := asked[p.ID]; a.N != p.QuestionsAsked {
					if parseTime(a.LastChange).After(cutoff) {
						report.Skipped++
					} else {
						updates["questions_asked"] = a.N
						conds = conds.Where("questions_asked = ?", p.QuestionsAsked)
					}
				}
				if a := answered[p.ID]; a.N != p.QuestionsAnswered {
					if parseTime(a.LastChange).After(cutoff) {
						report.Skipped++
					} else {
						updates["questions_answered"] = a.N
						conds = conds.Where("questions_answered = ?", p.QuestionsAnswered)
					}
				}
				if s := streaks[p.ID]; s.Streak != p.DailyStreak {
					if s.UpdatedAt.After(cutoff) {
						report.Skipped++
					} else {
						updates["daily_streak"] = s.Streak
						conds = conds.Where("daily_streak = ?", p.DailyStreak)
					}
				}
				if len(updates) == 0 {
					continue
				}

				upd := conds.UpdateColumns(updates)
				if upd.Error != nil {
					return fmt.Errorf("修复用户 %s 的活动计数失败: %w", p.ID, upd.Error)
				}
				report.ProfileCounters += upd.RowsAffected
			}
			return nil
		})
	if res.Error != nil {
		return fmt.Errorf("扫描用户资料失败: %w", res.Error)
	}
	return nil
}

func repairDenormalized(ctx context.Context, report *Report) error {
	db := database.DB.WithContext(ctx)
	steps := []struct {
		name string
		run  func() *gorm.DB
	}{
		{"问题的提问者年级", func() *gorm.DB {
			return db.Model(&qa.Question{}).
				Where("(asker_year = '' OR asker_year IS NULL)").
				Where("EXISTS (SELECT 1 FROM profiles WHERE profiles.id = questions.asker_id)").
				UpdateColumn("asker_year", gorm.Expr("(SELECT year FROM profiles WHERE profiles.id = questions.asker_id)"))
		}},
		{"回答的回答者年级", func() *gorm.DB {
			return db.Model(&qa.Answer{}).
				Where("(owner_year = '' OR owner_year IS NULL)").
				Where("EXISTS (SELECT 1 FROM profiles WHERE profiles.id = answers.owner_id)").
				UpdateColumn("owner_year", gorm.Expr("(SELECT year FROM profiles WHERE profiles.id = answers.owner_id)"))
		}},
		{"投票的回答者", func() *gorm.DB {
			return db.Model(&vote.Entry{}).
				Where("(owner_id = '' OR owner_id IS NULL)").
				Where("EXISTS (SELECT 1 FROM answers WHERE answers.id = vote_entries.answer_id)").
				UpdateColumn("owner_id", gorm.Expr("(SELECT owner_id FROM answers WHERE answers.id = vote_entries.answer_id)"))
		}},
		{"问题的已回答状态", func() *gorm.DB {
			return db.Model(&qa.Question{}).
				Where("is_answered = ?", false).
				Where("EXISTS (SELECT 1 FROM answers WHERE answers.question_id = questions.id)").
				UpdateColumn("is_answered", true)
		}},
	}

	for _, step := range steps {
		res := step.run()
		if res.Error != nil {
			return fmt.Errorf("修复%s失败: %w", step.name, res.Error)
		}
		report.Denormalized += res.RowsAffected
	}
	return nil
}

// rebuildCaches 并行重建受众索引和排行榜
func rebuildCaches(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := directory.WarmupIndex(gctx)
		return err
	})
	if database.IsRedisHealthy() {
		g.Go(func() error {
			return reputation.WarmupLeaderboard(gctx)
		})
	}
	return g.Wait()
}
