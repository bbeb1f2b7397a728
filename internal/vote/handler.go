package vote

import (
	"net/http"
	"time"

	"github.com/SlpAus/guideu-backend/internal/directory"
	"github.com/SlpAus/guideu-backend/internal/platform/apperr"
	"github.com/gin-gonic/gin"
)

// VoteRequestBody 定义了前端提交投票时，请求体的JSON结构
type VoteRequestBody struct {
	Type Type `json:"type" binding:"required"`
}

// VoteResponse 是投票接口的响应
type VoteResponse struct {
	*Result
	AlreadyVoted bool `json:"alreadyVoted"`
}

// SubmitVote 处理对回答的投票
func SubmitVote(c *gin.Context) {
	var body VoteRequestBody

	// 1. 绑定并验证请求体
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error(), "code": "Invalid"})
		return
	}

	// 2. 匿名用户不能投票
	voterID := directory.CurrentUserID(c)
	if voterID == "" {
		apperr.Abort(c, apperr.ErrAuthRequired)
		return
	}

	// 3. 频率限制
	allowed, _ := AllowVote(c.Request.Context(), voterID, time.Now())
	if !allowed {
		votesTotal.WithLabelValues("rate_limited").Inc()
		apperr.Abort(c, apperr.ErrRateLimited)
		return
	}

	// 4. 写入账本
	res, err := CastVote(c.Request.Context(), c.Param("id"), voterID, body.Type)
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, VoteResponse{Result: res, AlreadyVoted: res.Outcome == OutcomeAlreadyVoted})
}
