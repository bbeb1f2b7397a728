package directory

import (
	"strconv"
	"strings"
	"time"
)

// AlumniYear 是“alumni”在年级比较中对应的数值
const AlumniYear = 5

// Profile 定义了用户资料在数据库中的持久化模型。
// 资料本身由外部的注册流程维护，核心只读取它，并通过原子自增修改计数器。
type Profile struct {
	// ID 是用户的唯一标识，来自认证系统。
	ID string `gorm:"primarykey;type:varchar(64)" json:"id"`

	Name string `json:"name"`

	// Year 为 "1" 到 "4"，或不区分大小写的 "alumni"。
	Year string `gorm:"type:varchar(16)" json:"year"`

	Branch string `gorm:"index;type:varchar(64)" json:"branch"`

	// --- 由核心维护的计数器，只允许原子自增 ---
	Coins               int64 `gorm:"not null;default:0;index" json:"coins"`
	TotalUsefulReceived int64 `gorm:"not null;default:0" json:"totalUsefulReceived"`
	QuestionsAsked      int64 `gorm:"not null;default:0" json:"questionsAsked"`
	QuestionsAnswered   int64 `gorm:"not null;default:0" json:"questionsAnswered"`
	DailyStreak         int64 `gorm:"not null;default:0" json:"dailyStreak"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Counter 是可以原子自增的资料字段
type Counter string

const (
	CounterCoins               Counter = "coins"
	CounterTotalUsefulReceived Counter = "total_useful_received"
	CounterQuestionsAsked      Counter = "questions_asked"
	CounterQuestionsAnswered   Counter = "questions_answered"
	CounterDailyStreak         Counter = "daily_streak"
)

func (c Counter) valid() bool {
	switch c {
	case CounterCoins, CounterTotalUsefulReceived, CounterQuestionsAsked, CounterQuestionsAnswered, CounterDailyStreak:
		return true
	}
	return false
}

// YearRank 把资料中的年级转换为可比较的数值。
// "alumni"（不区分大小写）视为 5；无法识别的年级返回 false。
func YearRank(year string) (int, bool) {
	y := strings.TrimSpace(year)
	if strings.EqualFold(y, "alumni") {
		return AlumniYear, true
	}
	n, err := strconv.Atoi(y)
	if err != nil || n < 1 || n > AlumniYear {
		return 0, false
	}
	return n, true
}

// ProfileInput 是注册流程同步过来的资料字段，不包含任何计数器
type ProfileInput struct {
	ID     string `json:"-"`
	Name   string `json:"name"`
	Year   string `json:"year" binding:"required"`
	Branch string `json:"branch" binding:"required"`
}
