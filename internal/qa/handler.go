package qa

import (
	"net/http"
	"strconv"

	"github.com/SlpAus/guideu-backend/internal/directory"
	"github.com/SlpAus/guideu-backend/internal/platform/apperr"
	"github.com/gin-gonic/gin"
)

const defaultListLimit = 50

// PostQuestion 提交一个新问题
func PostQuestion(c *gin.Context) {
	var body QuestionInput
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error(), "code": "Invalid"})
		return
	}
	body.AskerID = directory.CurrentUserID(c)

	id, err := SubmitQuestion(c.Request.Context(), body)
	if err != nil && id == "" {
		apperr.Abort(c, err)
		return
	}
	// 问题已经写入但扇出失败时仍返回ID，客户端可以携带同一个 requestId 重试
	c.JSON(http.StatusCreated, gin.H{"questionId": id, "fanoutComplete": err == nil})
}

// PostAnswer 为问题提交一条回答
func PostAnswer(c *gin.Context) {
	var body AnswerInput
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error(), "code": "Invalid"})
		return
	}
	body.QuestionID = c.Param("id")
	body.AnswererID = directory.CurrentUserID(c)

	id, err := SubmitAnswer(c.Request.Context(), body)
	if err != nil && id == "" {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"answerId": id, "fanoutComplete": err == nil})
}

// GetQuestions 按分支列出问题
func GetQuestions(c *gin.Context) {
	limit := defaultListLimit
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	questions, err := ListQuestions(c.Request.Context(), c.Query("branch"), limit)
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, questions)
}

// GetQuestionHandler 返回问题及其回答
func GetQuestionHandler(c *gin.Context) {
	detail, err := GetQuestionDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}
