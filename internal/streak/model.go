package streak

import (
	"time"

	"gorm.io/datatypes"
)

// DateLayout 是任务日期的格式
const DateLayout = "2006-01-02"

// Task 是每日清单中的一项
type Task struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

// TaskSet 是用户的每日任务清单及打卡状态，每个用户一条记录。
// 所有写入都以 Version 做比较并交换。
type TaskSet struct {
	UserID string `gorm:"primarykey;type:varchar(64)" json:"userId"`
	// Date 只会向前推进
	Date             string                      `gorm:"type:varchar(10);not null" json:"date"`
	Tasks            datatypes.JSONSlice[Task]   `gorm:"not null" json:"tasks"`
	SelectedForToday datatypes.JSONSlice[string] `gorm:"not null" json:"selectedForToday"`
	Streak           int64                       `gorm:"not null;default:0" json:"streak"`
	// LastCompletedDate 是最近一次计入打卡的日期，为空表示从未打卡
	LastCompletedDate string    `gorm:"type:varchar(10)" json:"lastCompletedDate"`
	Version           int64     `gorm:"not null;default:0" json:"-"`
	CreatedAt         time.Time `json:"-"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (TaskSet) TableName() string {
	return "daily_task_sets"
}

// CompletionResult 是完成任务后的打卡结果
type CompletionResult struct {
	StreakIncremented bool  `json:"streakIncremented"`
	NewStreak         int64 `json:"newStreak"`
}

func (ts *TaskSet) clone() *TaskSet {
	cp := *ts
	cp.Tasks = append(datatypes.JSONSlice[Task](nil), ts.Tasks...)
	cp.SelectedForToday = append(datatypes.JSONSlice[string](nil), ts.SelectedForToday...)
	return &cp
}

func (ts *TaskSet) findTask(id string) int {
	for i, t := range ts.Tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// rollover 在日期向前推进时清空所有任务的完成状态，选择保留。返回是否有变化。
func (ts *TaskSet) rollover(today string) bool {
	if ts.Date >= today {
		return false
	}
	for i := range ts.Tasks {
		ts.Tasks[i].Done = false
	}
	ts.Date = today
	return true
}

// credit 在所有选中任务均已完成、且今天尚未计入时，把连续天数加一
func (ts *TaskSet) credit(today string) bool {
	if len(ts.SelectedForToday) == 0 || ts.LastCompletedDate == today {
		return false
	}
	for _, id := range ts.SelectedForToday {
		i := ts.findTask(id)
		if i < 0 || !ts.Tasks[i].Done {
			return false
		}
	}
	ts.Streak++
	ts.LastCompletedDate = today
	return true
}
