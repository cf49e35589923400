package config

import (
	"fmt"
	"os"
	"strings"
)

// AppConfig 汇总运行生成服务所需的基础配置。
type AppConfig struct {
	ListenAddr        string
	Port              string
	DatabasePath      string
	SessionSecret     string
	GinMode           string
	UploadDir         string
	UploadURLPath     string
	SiteBaseURL       string
	SuperRootUserName string
	SuperRootPassword string
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	TextModel         string
	ImageModel        string
	CronSecret        string
	SchedulerEnabled  bool
	AuthorName        string
	AuthorRole        string
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
func Load() AppConfig {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	listenAddr := strings.TrimSpace(os.Getenv("LISTEN_ADDR"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	databasePath := strings.TrimSpace(os.Getenv("DATABASE_PATH"))
	if databasePath == "" {
		databasePath = "peptidepress.db"
	}

	sessionSecret := strings.TrimSpace(os.Getenv("SESSION_SECRET"))
	if sessionSecret == "" {
		sessionSecret = "peptidepress-dev-secret"
	}

	ginMode := strings.TrimSpace(os.Getenv("GIN_MODE"))
	if ginMode == "" {
		ginMode = "release"
	}

	uploadDir := strings.TrimSpace(os.Getenv("UPLOAD_DIR"))
	if uploadDir == "" {
		uploadDir = "web/static/generated"
	}

	uploadURLPath := strings.TrimSpace(os.Getenv("UPLOAD_URL_PATH"))
	if uploadURLPath == "" {
		uploadURLPath = "/static/generated"
	}

	siteBaseURL := strings.TrimSpace(os.Getenv("SITE_BASE_URL"))
	if siteBaseURL == "" {
		siteBaseURL = "https://peptidepress.dev"
	}

	openRouterBaseURL := strings.TrimSpace(os.Getenv("OPENROUTER_BASE_URL"))
	if openRouterBaseURL == "" {
		openRouterBaseURL = "https://openrouter.ai/api/v1"
	}

	textModel := strings.TrimSpace(os.Getenv("GENERATION_TEXT_MODEL"))
	if textModel == "" {
		textModel = "anthropic/claude-sonnet-4"
	}

	imageModel := strings.TrimSpace(os.Getenv("GENERATION_IMAGE_MODEL"))
	if imageModel == "" {
		imageModel = "google/gemini-2.5-flash-image-preview"
	}

	authorName := strings.TrimSpace(os.Getenv("GENERATION_AUTHOR_NAME"))
	if authorName == "" {
		authorName = "PeptidePress Research Team"
	}

	authorRole := strings.TrimSpace(os.Getenv("GENERATION_AUTHOR_ROLE"))
	if authorRole == "" {
		authorRole = "Editorial"
	}

	return AppConfig{
		ListenAddr:        listenAddr,
		Port:              port,
		DatabasePath:      databasePath,
		SessionSecret:     sessionSecret,
		GinMode:           ginMode,
		UploadDir:         uploadDir,
		UploadURLPath:     uploadURLPath,
		SiteBaseURL:       siteBaseURL,
		SuperRootUserName: strings.TrimSpace(os.Getenv("SUPER_ROOT_USER_NAME")),
		SuperRootPassword: strings.TrimSpace(os.Getenv("SUPER_ROOT_PASSWORD")),
		OpenRouterAPIKey:  strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")),
		OpenRouterBaseURL: openRouterBaseURL,
		TextModel:         textModel,
		ImageModel:        imageModel,
		CronSecret:        strings.TrimSpace(os.Getenv("CRON_SECRET")),
		SchedulerEnabled:  parseBool(os.Getenv("SCHEDULER_ENABLED")),
		AuthorName:        authorName,
		AuthorRole:        authorRole,
	}
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
