package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/peptidepress/internal/service"
)

type generateRequest struct {
	ForceGenerate bool `json:"forceGenerate"`
}

// GenerateArticle 处理后台的手动触发。
// 鉴权（会话 + 管理员角色）由路由上的中间件完成。
func (a *API) GenerateArticle(c *gin.Context) {
	var req generateRequest
	if c.Request.ContentLength > 0 {
		if !bindJSON(c, &req, "请求格式不正确") {
			return
		}
	}

	a.runPipeline(c, req.ForceGenerate)
}

// CronGenerate 处理定时触发。配置了 CRON_SECRET 时要求请求携带
// 匹配的 X-Cron-Secret 内部标记。
func (a *API) CronGenerate(c *gin.Context) {
	if a.cronSecret != "" && c.GetHeader("X-Cron-Secret") != a.cronSecret {
		respondError(c, http.StatusUnauthorized, "内部标记无效")
		return
	}

	var req generateRequest
	if c.Request.ContentLength > 0 {
		if !bindJSON(c, &req, "请求格式不正确") {
			return
		}
	}

	a.runPipeline(c, req.ForceGenerate)
}

// runPipeline 执行一次管线并把结果映射为 HTTP 响应。
// 致命错误统一以一条可读消息加 500 返回，不区分结构化错误码。
func (a *API) runPipeline(c *gin.Context, force bool) {
	result, err := a.pipeline.Run(c.Request.Context(), service.RunRequest{Force: force})
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	if !result.Generated {
		c.JSON(http.StatusOK, gin.H{"generated": false, "reason": result.Reason})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"generated": true,
		"article": gin.H{
			"id":    result.Article.ID,
			"title": result.Article.Title,
			"slug":  result.Article.Slug,
		},
	})
}
