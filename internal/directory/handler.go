package directory

import (
	"net/http"

	"github.com/SlpAus/guideu-backend/internal/platform/apperr"
	"github.com/gin-gonic/gin"
)

// PutProfile 由注册流程调用，同步当前用户的姓名、年级和分支
func PutProfile(c *gin.Context) {
	var body ProfileInput
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error(), "code": "Invalid"})
		return
	}
	body.ID = CurrentUserID(c)

	p, err := UpsertProfile(c.Request.Context(), body)
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// GetProfileHandler 返回指定用户的公开资料
func GetProfileHandler(c *gin.Context) {
	p, err := GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
