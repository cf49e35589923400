package db

import "gorm.io/gorm"

// Peptide 定义了肽目录中的一条规范条目。
// 该目录由站点其余部分维护，生成管线只读。
type Peptide struct {
	gorm.Model
	Slug    string `gorm:"size:100;uniqueIndex;not null"`
	Name    string `gorm:"size:200;not null"`
	Summary string `gorm:"type:text"`
}
