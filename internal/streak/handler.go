package streak

import (
	"net/http"

	"github.com/SlpAus/guideu-backend/internal/directory"
	"github.com/SlpAus/guideu-backend/internal/platform/apperr"
	"github.com/gin-gonic/gin"
)

type addTaskBody struct {
	Title string `json:"title" binding:"required"`
}

type selectBody struct {
	TaskIDs []string `json:"taskIds"`
}

// GetTasks 返回今天的任务清单
func GetTasks(c *gin.Context) {
	ts, err := Get(c.Request.Context(), directory.CurrentUserID(c))
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, ts)
}

// PostTask 添加一个任务
func PostTask(c *gin.Context) {
	var body addTaskBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error(), "code": "Invalid"})
		return
	}
	ts, err := AddTask(c.Request.Context(), directory.CurrentUserID(c), body.Title)
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, ts)
}

// PutSelection 设置今天要完成的任务
func PutSelection(c *gin.Context) {
	var body selectBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error(), "code": "Invalid"})
		return
	}
	ts, err := SelectTasks(c.Request.Context(), directory.CurrentUserID(c), body.TaskIDs)
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, ts)
}

// PostComplete 完成一个任务
func PostComplete(c *gin.Context) {
	res, err := CompleteTask(c.Request.Context(), directory.CurrentUserID(c), c.Param("id"))
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
