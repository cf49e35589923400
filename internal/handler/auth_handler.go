package handler

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/peptidepress/internal/db"
	"golang.org/x/crypto/bcrypt"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login 处理管理员登录请求。
func Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req, "请求格式不正确") {
		return
	}

	// 查找用户
	var user db.User
	if err := db.DB.Where("username = ?", req.Username).First(&user).Error; err != nil {
		respondError(c, http.StatusUnauthorized, "用户名或密码错误")
		return
	}

	// 验证密码
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		respondError(c, http.StatusUnauthorized, "用户名或密码错误")
		return
	}

	// 设置会话
	session := sessions.Default(c)
	session.Set("user_id", user.ID)
	session.Set("username", user.Username)
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "会话保存失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"username": user.Username})
}

// Logout 处理管理员登出
func Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// AuthRequired 要求请求携带有效的登录会话，否则返回 401。
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID := session.Get("user_id")
		if userID == nil {
			respondError(c, http.StatusUnauthorized, "请先登录")
			c.Abort()
			return
		}
		c.Next()
	}
}

// AdminRequired 在已登录的基础上检查管理员角色，否则返回 403。
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID, ok := session.Get("user_id").(uint)
		if !ok {
			respondError(c, http.StatusUnauthorized, "请先登录")
			c.Abort()
			return
		}

		isAdmin, err := db.HasRole(userID, db.RoleAdmin)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "角色检查失败")
			c.Abort()
			return
		}
		if !isAdmin {
			respondError(c, http.StatusForbidden, "没有触发生成的权限")
			c.Abort()
			return
		}
		c.Next()
	}
}
