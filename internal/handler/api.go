package handler

import (
	"github.com/peptidepress/internal/service"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db         *gorm.DB
	pipeline   *service.PipelineService
	schedules  *service.ScheduleService
	cronSecret string
}

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB, pipeline *service.PipelineService, schedules *service.ScheduleService, cronSecret string) *API {
	return &API{
		db:         gdb,
		pipeline:   pipeline,
		schedules:  schedules,
		cronSecret: cronSecret,
	}
}
