package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/peptidepress/internal/db"
	"github.com/peptidepress/internal/service"
)

type scheduleRequest struct {
	Active            bool    `json:"active"`
	Frequency         string  `json:"frequency"`
	DayOfWeek         *int    `json:"dayOfWeek"`
	TimeOfDay         string  `json:"timeOfDay"`
	TargetLength      string  `json:"targetLength"`
	AdditionalContext *string `json:"additionalContext"`
}

func (r scheduleRequest) validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Frequency, validation.Required,
			validation.In(db.FrequencyDaily, db.FrequencyWeekly)),
		validation.Field(&r.DayOfWeek,
			validation.When(r.Frequency == db.FrequencyWeekly, validation.NotNil),
			validation.Min(0), validation.Max(6)),
		validation.Field(&r.TimeOfDay, validation.Required,
			validation.Date("15:04")),
		validation.Field(&r.TargetLength, validation.Required,
			validation.In(db.LengthShort, db.LengthStandard, db.LengthLong)),
	)
}

type scheduleResponse struct {
	Active            bool       `json:"active"`
	Frequency         string     `json:"frequency"`
	DayOfWeek         *int       `json:"dayOfWeek"`
	TimeOfDay         string     `json:"timeOfDay"`
	TargetLength      string     `json:"targetLength"`
	AdditionalContext *string    `json:"additionalContext"`
	LastRunAt         *time.Time `json:"lastRunAt"`
	NextRunAt         *time.Time `json:"nextRunAt"`
}

// GetSchedule 返回当前的生成计划设置，未配置时返回默认值。
func (a *API) GetSchedule(c *gin.Context) {
	sched, err := a.schedules.Load()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "读取生成计划失败")
		return
	}
	if sched == nil {
		c.JSON(http.StatusOK, scheduleResponse{
			Frequency:    db.FrequencyDaily,
			TimeOfDay:    "09:00",
			TargetLength: db.LengthStandard,
		})
		return
	}

	c.JSON(http.StatusOK, scheduleResponse{
		Active:            sched.Active,
		Frequency:         sched.Frequency,
		DayOfWeek:         sched.DayOfWeek,
		TimeOfDay:         sched.TimeOfDay,
		TargetLength:      sched.TargetLength,
		AdditionalContext: sched.AdditionalContext,
		LastRunAt:         sched.LastRunAt,
		NextRunAt:         sched.NextRunAt,
	})
}

// UpdateSchedule 保存设置表单提交的计划配置，不触碰运行时间戳。
func (a *API) UpdateSchedule(c *gin.Context) {
	var req scheduleRequest
	if !bindJSON(c, &req, "请求格式不正确") {
		return
	}
	if err := req.validate(); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	// daily 模式下 dayOfWeek 没有意义，直接丢弃。
	if req.Frequency == db.FrequencyDaily {
		req.DayOfWeek = nil
	}

	sched, err := a.schedules.Upsert(service.ScheduleInput{
		Active:            req.Active,
		Frequency:         req.Frequency,
		DayOfWeek:         req.DayOfWeek,
		TimeOfDay:         req.TimeOfDay,
		TargetLength:      req.TargetLength,
		AdditionalContext: req.AdditionalContext,
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "保存生成计划失败")
		return
	}

	c.JSON(http.StatusOK, scheduleResponse{
		Active:            sched.Active,
		Frequency:         sched.Frequency,
		DayOfWeek:         sched.DayOfWeek,
		TimeOfDay:         sched.TimeOfDay,
		TargetLength:      sched.TargetLength,
		AdditionalContext: sched.AdditionalContext,
		LastRunAt:         sched.LastRunAt,
		NextRunAt:         sched.NextRunAt,
	})
}
