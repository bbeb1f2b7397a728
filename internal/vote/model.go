package vote

import (
	"time"
)

// Type 定义了投票类型的枚举
type Type string

const (
	// TypeUseful 表示认为回答有用
	TypeUseful Type = "useful"
	// TypeNotUseful 表示认为回答没用
	TypeNotUseful Type = "notUseful"
)

// Valid 判断投票类型是否合法
func (t Type) Valid() bool {
	return t == TypeUseful || t == TypeNotUseful
}

// Entry 是投票账本中的一条记录。
// (AnswerID, VoterID) 是复合主键，每个用户对每条回答至多有一票，只能切换不能撤回。
type Entry struct {
	AnswerID string `gorm:"primaryKey;type:varchar(36)" json:"answerId"`
	VoterID  string `gorm:"primaryKey;type:varchar(64)" json:"voterId"`
	VoteType Type   `gorm:"type:varchar(16);not null" json:"voteType"`

	// OwnerID 是回答者的冗余副本，供对账按回答者汇总
	OwnerID string `gorm:"type:varchar(64);index" json:"ownerId"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `gorm:"index" json:"updatedAt"`
}

// TableName 指定账本的表名
func (Entry) TableName() string {
	return "vote_entries"
}

// Outcome 是一次投票的结果
type Outcome string

const (
	// OutcomeOk 表示账本发生了变化（新投票或切换）
	OutcomeOk Outcome = "ok"
	// OutcomeAlreadyVoted 表示重复点击了同一个选项，没有任何状态变化
	OutcomeAlreadyVoted Outcome = "alreadyVoted"
)

// Result 是 CastVote 的返回值
type Result struct {
	Outcome  Outcome `json:"outcome"`
	VoteType Type    `json:"voteType"`
	// Previous 为空表示这是该用户对此回答的第一票
	Previous       Type  `json:"previous,omitempty"`
	CoinDelta      int64 `json:"coinDelta"`
	UsefulCount    int64 `json:"usefulCount"`
	NotUsefulCount int64 `json:"notUsefulCount"`
}
