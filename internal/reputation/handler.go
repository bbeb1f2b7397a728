package reputation

import (
	"net/http"
	"strconv"

	"github.com/SlpAus/guideu-backend/internal/platform/apperr"
	"github.com/gin-gonic/gin"
)

const maxLeaderboardSize = 50

// GetLeaderboard 返回金币排行榜
func GetLeaderboard(c *gin.Context) {
	limit := DefaultLeaderboardSize
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = min(v, maxLeaderboardSize)
	}
	top, err := TopContributors(c.Request.Context(), limit)
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, top)
}
