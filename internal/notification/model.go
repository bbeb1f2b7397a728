package notification

import (
	"time"

	"github.com/google/uuid"
)

// Type 是通知的类型
type Type string

const (
	TypeQuestion Type = "question"
	TypeAnswer   Type = "answer"
)

// idNamespace 是通知ID的UUIDv5命名空间，一旦上线就不能再修改
var idNamespace = uuid.MustParse("6f1c2b0e-3a7d-5c43-9e61-0b8f4d2a7c15")

// Notification 定义了通知在数据库中的持久化模型。
// 同一个 (SourceEventID, RecipientID) 只会存在一条通知。
type Notification struct {
	ID            string    `gorm:"primarykey;type:varchar(36)" json:"id"`
	Type          Type      `gorm:"type:varchar(16);not null" json:"type"`
	Branch        string    `gorm:"type:varchar(64)" json:"branch"`
	QuestionID    string    `gorm:"type:varchar(36);not null" json:"questionId"`
	AnswerID      string    `gorm:"type:varchar(36)" json:"answerId,omitempty"`
	RecipientID   string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_notification_event_recipient,priority:2;index:idx_notification_recipient_created,priority:1" json:"recipientId"`
	SourceEventID string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_notification_event_recipient,priority:1" json:"sourceEventId"`
	IsRead        bool      `gorm:"not null;default:false" json:"isRead"`
	CreatedAt     time.Time `gorm:"index:idx_notification_recipient_created,priority:2" json:"createdAt"`
}

// QuestionEvent 描述一次提问，用于计算提问通知的受众
type QuestionEvent struct {
	QuestionID string
	Branch     string
	AskerID    string
	AskerYear  string
}

// AnswerEvent 描述一次回答，用于通知提问者
type AnswerEvent struct {
	AnswerID        string
	QuestionID      string
	Branch          string
	QuestionOwnerID string
	AnswererID      string
}

// Target 是打开一条通知后应当跳转到的位置
type Target struct {
	QuestionID string `json:"questionId"`
	AnswerID   string `json:"answerId,omitempty"`
	Branch     string `json:"branch"`
}

// QuestionSourceEventID 返回提问事件的幂等键
func QuestionSourceEventID(questionID string) string {
	return "question:" + questionID
}

// AnswerSourceEventID 返回回答事件的幂等键
func AnswerSourceEventID(answerID string) string {
	return "answer:" + answerID
}

// NotificationID 由事件和接收者确定性地派生通知ID，重放同一事件会得到同一个ID
func NotificationID(sourceEventID, recipientID string) string {
	return uuid.NewSHA1(idNamespace, []byte(sourceEventID+"|"+recipientID)).String()
}
