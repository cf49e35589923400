package router

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/peptidepress/internal/handler"
)

// Setup 配置 Gin 引擎和路由。
func Setup(api *handler.API, sessionSecret, uploadURLPath, uploadDir string) *gin.Engine {
	r := gin.Default()

	// 配置会话中间件
	store := cookie.NewStore([]byte(sessionSecret))
	r.Use(sessions.Sessions("peptidepress_session", store))

	// 生成图片的静态文件服务
	r.Static(uploadURLPath, uploadDir)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// 定时触发入口，鉴权依赖内部标记而非用户会话
	r.POST("/api/cron/generate", api.CronGenerate)

	// 后台管理路由
	admin := r.Group("/admin")
	{
		admin.POST("/login", handler.Login)
		admin.GET("/logout", handler.Logout)

		// 需要认证的后台路由
		auth := admin.Group("/api")
		auth.Use(handler.AuthRequired())
		{
			auth.GET("/schedule", api.GetSchedule)
			auth.PUT("/schedule", api.UpdateSchedule)

			// 手动触发额外要求管理员角色
			auth.POST("/articles/generate", handler.AdminRequired(), api.GenerateArticle)
		}
	}

	return r
}
