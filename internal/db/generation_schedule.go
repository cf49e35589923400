package db

import (
	"time"

	"gorm.io/gorm"
)

const (
	// FrequencyDaily 表示每天生成一篇。
	FrequencyDaily = "daily"
	// FrequencyWeekly 表示每周生成一篇。
	FrequencyWeekly = "weekly"
)

const (
	// LengthShort 目标约 800–1200 词。
	LengthShort = "short"
	// LengthStandard 目标约 1500–2000 词。
	LengthStandard = "standard"
	// LengthLong 目标约 2500–3500 词。
	LengthLong = "long"
)

// GenerationSchedule 定义了自动生成的周期配置，单行记录。
// active/frequency/timeOfDay 等字段由后台设置表单维护；
// LastRunAt/NextRunAt 仅在一次成功运行后由调度控制器更新。
type GenerationSchedule struct {
	gorm.Model
	Active            bool   `gorm:"not null;default:false"`
	Frequency         string `gorm:"size:20;not null;default:daily"`
	DayOfWeek         *int
	TimeOfDay         string `gorm:"size:5;not null;default:09:00"`
	TargetLength      string `gorm:"size:20;not null;default:standard"`
	AdditionalContext *string
	LastRunAt         *time.Time
	NextRunAt         *time.Time
}
