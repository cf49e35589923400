package db

import "gorm.io/gorm"

// Category 定义了文章分类模型
type Category struct {
	gorm.Model
	Slug        string `gorm:"size:100;uniqueIndex;not null"`
	Label       string `gorm:"size:100;not null"`
	Description string `gorm:"type:text"`
}
