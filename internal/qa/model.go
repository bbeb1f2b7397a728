package qa

import (
	"time"

	"github.com/google/uuid"
)

// requestNamespace 是客户端请求ID派生问题/回答ID时使用的UUIDv5命名空间
var requestNamespace = uuid.MustParse("0b3e4f2a-91c6-5d7e-8a40-3c2f1e6d9b57")

// Question 定义了问题在数据库中的持久化模型
type Question struct {
	ID        string `gorm:"primarykey;type:varchar(36)" json:"id"`
	Content   string `gorm:"type:text;not null" json:"content"`
	Branch    string `gorm:"type:varchar(64);index:idx_question_branch_created,priority:1" json:"branch"`
	AskerID   string `gorm:"type:varchar(64);index;not null" json:"askerId"`
	AskerYear string `gorm:"type:varchar(16)" json:"askerYear"`
	// IsAnswered 在第一条回答写入后变为 true
	IsAnswered bool      `gorm:"not null;default:false" json:"isAnswered"`
	CreatedAt  time.Time `gorm:"index:idx_question_branch_created,priority:2" json:"createdAt"`
}

// Answer 定义了回答在数据库中的持久化模型。
// UsefulCount / NotUsefulCount 是投票账本的物化计数，只通过原子自增修改。
type Answer struct {
	ID             string    `gorm:"primarykey;type:varchar(36)" json:"id"`
	QuestionID     string    `gorm:"type:varchar(36);not null;index:idx_answer_question_created,priority:1" json:"questionId"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	OwnerID        string    `gorm:"type:varchar(64);not null;index" json:"ownerId"`
	OwnerYear      string    `gorm:"type:varchar(16)" json:"ownerYear"`
	UsefulCount    int64     `gorm:"not null;default:0" json:"usefulCount"`
	NotUsefulCount int64     `gorm:"not null;default:0" json:"notUsefulCount"`
	CreatedAt      time.Time `gorm:"index:idx_answer_question_created,priority:2" json:"createdAt"`
}

// QuestionInput 是提交问题时的参数
type QuestionInput struct {
	AskerID   string `json:"-"`
	Branch    string `json:"branch"`
	Content   string `json:"content"`
	RequestID string `json:"requestId"`
}

// AnswerInput 是提交回答时的参数
type AnswerInput struct {
	QuestionID string `json:"-"`
	AnswererID string `json:"-"`
	Content    string `json:"content"`
	RequestID  string `json:"requestId"`
}

// QuestionDetail 是问题连同其全部回答
type QuestionDetail struct {
	Question Question `json:"question"`
	Answers  []Answer `json:"answers"`
}

// recordID 为新记录生成ID。带有客户端请求ID时，同一用户的同一次请求总是得到同一个ID。
func recordID(kind, userID, requestID string) (string, error) {
	if requestID != "" {
		return uuid.NewSHA1(requestNamespace, []byte(kind+"|"+userID+"|"+requestID)).String(), nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
