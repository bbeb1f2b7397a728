package api

import (
	"github.com/SlpAus/guideu-backend/internal/directory"
	"github.com/SlpAus/guideu-backend/internal/notification"
	"github.com/SlpAus/guideu-backend/internal/qa"
	"github.com/SlpAus/guideu-backend/internal/reputation"
	"github.com/SlpAus/guideu-backend/internal/streak"
	"github.com/SlpAus/guideu-backend/internal/vote"
	"github.com/gin-gonic/gin"
)

// SetupRoutes 注册项目的所有API路由
func SetupRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.Use(directory.LoadUserMiddleware())
	{
		// 问答相关的路由组 /api/questions
		questions := api.Group("/questions")
		{
			questions.GET("", qa.GetQuestions)
			questions.POST("", qa.PostQuestion)
			questions.GET("/:id", qa.GetQuestionHandler)
			questions.POST("/:id/answers", qa.PostAnswer)
		}

		// 投票
		api.POST("/answers/:id/vote", vote.SubmitVote)

		notifications := api.Group("/notifications")
		{
			notifications.GET("", notification.GetNotifications)
			notifications.GET("/stream", notification.StreamNotifications)
			notifications.POST("/:id/open", notification.OpenNotificationHandler)
		}

		// 每日任务与连续打卡
		tasks := api.Group("/tasks")
		{
			tasks.GET("", streak.GetTasks)
			tasks.POST("", streak.PostTask)
			tasks.PUT("/selection", streak.PutSelection)
			tasks.POST("/:id/complete", streak.PostComplete)
		}

		api.GET("/leaderboard", reputation.GetLeaderboard)

		api.PUT("/profile", directory.PutProfile)
		api.GET("/profile/:id", directory.GetProfileHandler)
	}
}
