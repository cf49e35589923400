package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/peptidepress/internal/db"
	"gorm.io/gorm"
)

// 所有计划时间均以 UTC 解释。

// WordRange 把目标篇幅档位映射为词数区间，未知档位按 standard 处理。
func WordRange(targetLength string) (int, int) {
	switch targetLength {
	case db.LengthShort:
		return 800, 1200
	case db.LengthLong:
		return 2500, 3500
	default:
		return 1500, 2000
	}
}

// IsDue 判断当前是否应该执行一次生成。
// force 为 true 时无条件执行（包括没有计划记录的情况）；
// 否则要求计划存在、处于激活状态，且 NextRunAt 为空或已到期。
func IsDue(sched *db.GenerationSchedule, now time.Time, force bool) bool {
	if force {
		return true
	}
	if sched == nil || !sched.Active {
		return false
	}
	if sched.NextRunAt == nil {
		return true
	}
	return !now.Before(*sched.NextRunAt)
}

// Advance 计算一次成功运行后的时间戳：daily 顺延一天、weekly 顺延七天，
// 时分由 TimeOfDay 覆盖。weekly 不会重新对齐配置的 dayOfWeek——
// 首次运行落在哪个周几，之后就每 7 天重复一次，这是有意的设计。
func Advance(sched *db.GenerationSchedule, now time.Time) (lastRunAt, nextRunAt time.Time) {
	now = now.UTC()

	days := 1
	if sched.Frequency == db.FrequencyWeekly {
		days = 7
	}
	base := now.AddDate(0, 0, days)

	hour, minute := base.Hour(), base.Minute()
	if h, m, err := parseTimeOfDay(sched.TimeOfDay); err == nil {
		hour, minute = h, m
	}

	next := time.Date(base.Year(), base.Month(), base.Day(), hour, minute, 0, 0, time.UTC)
	return now, next
}

func parseTimeOfDay(raw string) (int, int, error) {
	parsed, err := time.Parse("15:04", raw)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q: %w", raw, err)
	}
	return parsed.Hour(), parsed.Minute(), nil
}

// ScheduleStore 抽象计划记录的读写，由编排器注入，避免隐式全局状态。
type ScheduleStore interface {
	// Load 返回计划单行记录，不存在时返回 (nil, nil)。
	Load() (*db.GenerationSchedule, error)
	// SaveRun 在一次成功持久化之后写回运行时间戳。
	SaveRun(id uint, lastRunAt, nextRunAt time.Time) error
}

// ScheduleService 是 ScheduleStore 的 gorm 实现，
// 同时承担后台设置表单的读写。
type ScheduleService struct {
	db *gorm.DB
}

// NewScheduleService 构造 ScheduleService。
func NewScheduleService(gdb *gorm.DB) *ScheduleService {
	return &ScheduleService{db: gdb}
}

// Load 读取计划单行记录。
func (s *ScheduleService) Load() (*db.GenerationSchedule, error) {
	var sched db.GenerationSchedule
	if err := s.db.Order("id asc").First(&sched).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sched, nil
}

// SaveRun 只更新运行时间戳，其余设置字段由后台表单独立维护。
func (s *ScheduleService) SaveRun(id uint, lastRunAt, nextRunAt time.Time) error {
	return s.db.Model(&db.GenerationSchedule{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_run_at": lastRunAt,
			"next_run_at": nextRunAt,
		}).Error
}

// ScheduleInput 描述设置表单可编辑的字段。
type ScheduleInput struct {
	Active            bool
	Frequency         string
	DayOfWeek         *int
	TimeOfDay         string
	TargetLength      string
	AdditionalContext *string
}

// Upsert 创建或更新计划设置，不触碰运行时间戳。
func (s *ScheduleService) Upsert(input ScheduleInput) (*db.GenerationSchedule, error) {
	sched, err := s.Load()
	if err != nil {
		return nil, err
	}
	if sched == nil {
		sched = &db.GenerationSchedule{}
	}

	sched.Active = input.Active
	sched.Frequency = input.Frequency
	sched.DayOfWeek = input.DayOfWeek
	sched.TimeOfDay = input.TimeOfDay
	sched.TargetLength = input.TargetLength
	sched.AdditionalContext = input.AdditionalContext

	if err := s.db.Save(sched).Error; err != nil {
		return nil, err
	}
	return sched, nil
}
