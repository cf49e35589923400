package db

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// RoleAdmin 表示可以手动触发文章生成的管理员角色。
const RoleAdmin = "admin"

// User 定义了用户模型
type User struct {
	gorm.Model
	Username string `gorm:"unique;not null"`
	Password string `gorm:"not null"`
}

// UserRole 定义了用户与角色的关联表。
// 手动触发生成时会对照该表检查管理员角色。
type UserRole struct {
	gorm.Model
	UserID uint   `gorm:"index;not null"`
	Role   string `gorm:"size:50;index;not null"`
}

// EnsureUser 存在性检查：若提供的用户名与密码均非空且不存在对应账号，
// 则创建一个 bcrypt 哈希的用户并授予管理员角色。
func EnsureUser(username, password string) error {
	trimmedUser := strings.TrimSpace(username)
	trimmedPassword := strings.TrimSpace(password)
	if trimmedUser == "" || trimmedPassword == "" {
		return nil
	}

	if DB == nil {
		return errors.New("database not initialized")
	}

	var existing User
	err := DB.Where("username = ?", trimmedUser).First(&existing).Error
	if err == nil {
		return ensureRole(existing.ID, RoleAdmin)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(trimmedPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user := User{Username: trimmedUser, Password: string(hashed)}
	if err := DB.Create(&user).Error; err != nil {
		return err
	}

	return ensureRole(user.ID, RoleAdmin)
}

// HasRole 判断指定用户是否持有指定角色。
func HasRole(userID uint, role string) (bool, error) {
	if DB == nil {
		return false, errors.New("database not initialized")
	}

	var count int64
	if err := DB.Model(&UserRole{}).
		Where("user_id = ? AND role = ?", userID, role).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func ensureRole(userID uint, role string) error {
	var existing UserRole
	err := DB.Where("user_id = ? AND role = ?", userID, role).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return DB.Create(&UserRole{UserID: userID, Role: role}).Error
}
