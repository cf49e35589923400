package db

import (
	"time"

	"gorm.io/gorm"
)

// Article 定义了生成后持久化的文章模型。
// 结构化内容（内容块、目录、配图、关联肽）以 JSON 文本列存储，
// 站点前台按需反序列化。
type Article struct {
	gorm.Model
	Title             string `gorm:"not null"`
	Slug              string `gorm:"size:200;uniqueIndex;not null"`
	Summary           string `gorm:"type:text"`
	Category          string `gorm:"size:100;index"`
	CategoryLabel     string `gorm:"size:100"`
	ReadTime          int
	ContentJSON       string `gorm:"type:text"`
	TocJSON           string `gorm:"type:text"`
	ContentImagesJSON string `gorm:"type:text"`
	RelatedJSON       string `gorm:"type:text"`
	MatchedSlugsJSON  string `gorm:"type:text"`
	RenderedHTML      string `gorm:"type:text"`
	FeaturedImageURL  string
	PublishedDate     time.Time `gorm:"index"`
	AuthorName        string    `gorm:"size:100"`
	AuthorRole        string    `gorm:"size:100"`
}
