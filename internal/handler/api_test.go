package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/peptidepress/internal/db"
	"github.com/peptidepress/internal/service"
	"github.com/peptidepress/internal/storage"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupHandlerTest 构造一套接到内存数据库的路由。
// 管线用的客户端没有 API Key，一旦真的发起模型调用就会失败，
// 正好用来验证鉴权层挡在管线之前。
func setupHandlerTest(t *testing.T, cronSecret string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:handler-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := gdb.AutoMigrate(&db.User{}, &db.UserRole{}, &db.Article{}, &db.Category{}, &db.Peptide{}, &db.GenerationSchedule{}); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	previous := db.DB
	db.DB = gdb
	t.Cleanup(func() {
		db.DB = previous
		sqlDB, err := gdb.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	store, err := storage.NewFS(t.TempDir(), "/static/generated")
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	client := service.NewOpenRouterClient("https://openrouter.test/v1", "")
	schedules := service.NewScheduleService(gdb)
	pipeline := service.NewPipelineService(
		schedules,
		service.NewArticleService(gdb),
		service.NewCategoryService(gdb),
		service.NewPeptideService(gdb),
		service.NewTopicSelector(client, "text-model"),
		service.NewArticleGenerator(client, "text-model"),
		service.NewImageService(client, "image-model", store),
		"Test Team",
		"Editorial",
	)
	api := NewAPI(gdb, pipeline, schedules, cronSecret)

	r := gin.New()
	r.Use(sessions.Sessions("peptidepress_session", cookie.NewStore([]byte("test-secret"))))
	r.POST("/api/cron/generate", api.CronGenerate)

	admin := r.Group("/admin")
	admin.POST("/login", Login)
	auth := admin.Group("/api")
	auth.Use(AuthRequired())
	auth.GET("/schedule", api.GetSchedule)
	auth.PUT("/schedule", api.UpdateSchedule)
	auth.POST("/articles/generate", AdminRequired(), api.GenerateArticle)

	return r
}

// createViewer 创建一个没有任何角色的登录账号。
func createViewer(t *testing.T, username, password string) {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	if err := db.DB.Create(&db.User{Username: username, Password: string(hashed)}).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
}

func createAdmin(t *testing.T, username, password string) {
	t.Helper()
	if err := db.EnsureUser(username, password); err != nil {
		t.Fatalf("failed to create admin: %v", err)
	}
}

func seedFutureSchedule(t *testing.T) {
	t.Helper()
	future := time.Now().UTC().Add(24 * time.Hour)
	sched := db.GenerationSchedule{
		Active:       true,
		Frequency:    db.FrequencyDaily,
		TimeOfDay:    "09:00",
		TargetLength: db.LengthStandard,
		NextRunAt:    &future,
	}
	if err := db.DB.Create(&sched).Error; err != nil {
		t.Fatalf("failed to seed schedule: %v", err)
	}
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body, sessionCookie string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionCookie != "" {
		req.Header.Set("Cookie", sessionCookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// loginAs 登录并返回会话 Cookie。
func loginAs(t *testing.T, r *gin.Engine, username, password string) string {
	t.Helper()
	body := fmt.Sprintf(`{"username":%q,"password":%q}`, username, password)
	w := doJSON(t, r, http.MethodPost, "/admin/login", body, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login failed with status %d: %s", w.Code, w.Body.String())
	}
	cookies := w.Header().Values("Set-Cookie")
	if len(cookies) == 0 {
		t.Fatal("login did not set a session cookie")
	}
	// 只取 name=value，丢掉 Path/Max-Age 等属性
	return strings.SplitN(cookies[0], ";", 2)[0]
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return payload
}

func articleCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	if err := db.DB.Model(&db.Article{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count articles: %v", err)
	}
	return count
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	r := setupHandlerTest(t, "")
	createAdmin(t, "admin", "correct-password")

	w := doJSON(t, r, http.MethodPost, "/admin/login", `{"username":"admin","password":"wrong"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/admin/login", `{"username":"admin","password":"correct-password"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := decodeBody(t, w)["username"]; got != "admin" {
		t.Fatalf("unexpected login payload: %v", got)
	}
}

func TestGenerateRequiresSession(t *testing.T) {
	r := setupHandlerTest(t, "")

	w := doJSON(t, r, http.MethodPost, "/admin/api/articles/generate", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", w.Code)
	}
	if n := articleCount(t); n != 0 {
		t.Fatalf("expected no article insert, got %d", n)
	}
}

func TestGenerateRequiresAdminRole(t *testing.T) {
	r := setupHandlerTest(t, "")
	createViewer(t, "viewer", "pass")
	session := loginAs(t, r, "viewer", "pass")

	w := doJSON(t, r, http.MethodPost, "/admin/api/articles/generate", "", session)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d: %s", w.Code, w.Body.String())
	}
	if n := articleCount(t); n != 0 {
		t.Fatalf("expected no article insert, got %d", n)
	}
}

func TestGenerateNotDueIsInformational(t *testing.T) {
	r := setupHandlerTest(t, "")
	createAdmin(t, "admin", "pass")
	seedFutureSchedule(t)
	session := loginAs(t, r, "admin", "pass")

	w := doJSON(t, r, http.MethodPost, "/admin/api/articles/generate", "", session)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	payload := decodeBody(t, w)
	if payload["generated"] != false {
		t.Fatalf("expected generated=false, got %v", payload)
	}
	if payload["reason"] == "" || payload["reason"] == nil {
		t.Fatalf("expected a human readable reason, got %v", payload)
	}
}

func TestGenerateFatalErrorReturnsMessage(t *testing.T) {
	r := setupHandlerTest(t, "")
	createAdmin(t, "admin", "pass")
	session := loginAs(t, r, "admin", "pass")

	// 强制运行绕过到期检查，没有 API Key 的客户端会在选题阶段失败
	w := doJSON(t, r, http.MethodPost, "/admin/api/articles/generate", `{"forceGenerate":true}`, session)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", w.Code, w.Body.String())
	}
	if msg := decodeBody(t, w)["error"]; msg == "" || msg == nil {
		t.Fatal("expected an error message in the response")
	}
	if n := articleCount(t); n != 0 {
		t.Fatalf("expected no article insert, got %d", n)
	}
}

func TestCronRequiresSecretWhenConfigured(t *testing.T) {
	r := setupHandlerTest(t, "s3cret")
	seedFutureSchedule(t)

	w := doJSON(t, r, http.MethodPost, "/api/cron/generate", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without header, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/cron/generate", nil)
	req.Header.Set("X-Cron-Secret", "wrong")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong secret, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/cron/generate", nil)
	req.Header.Set("X-Cron-Secret", "s3cret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with correct secret, got %d: %s", w.Code, w.Body.String())
	}
	if payload := decodeBody(t, w); payload["generated"] != false {
		t.Fatalf("expected not-due report, got %v", payload)
	}
}

func TestCronOpenWhenSecretUnset(t *testing.T) {
	r := setupHandlerTest(t, "")
	seedFutureSchedule(t)

	w := doJSON(t, r, http.MethodPost, "/api/cron/generate", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetScheduleReturnsDefaultsWhenUnset(t *testing.T) {
	r := setupHandlerTest(t, "")
	createAdmin(t, "admin", "pass")
	session := loginAs(t, r, "admin", "pass")

	w := doJSON(t, r, http.MethodGet, "/admin/api/schedule", "", session)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	payload := decodeBody(t, w)
	if payload["frequency"] != db.FrequencyDaily || payload["timeOfDay"] != "09:00" || payload["targetLength"] != db.LengthStandard {
		t.Fatalf("unexpected defaults: %v", payload)
	}
	if payload["active"] != false {
		t.Fatalf("schedule should default to inactive: %v", payload)
	}
}

func TestUpdateScheduleValidation(t *testing.T) {
	r := setupHandlerTest(t, "")
	createAdmin(t, "admin", "pass")
	session := loginAs(t, r, "admin", "pass")

	cases := []struct {
		name string
		body string
	}{
		{"weekly without dayOfWeek", `{"active":true,"frequency":"weekly","timeOfDay":"09:00","targetLength":"standard"}`},
		{"dayOfWeek out of range", `{"active":true,"frequency":"weekly","dayOfWeek":7,"timeOfDay":"09:00","targetLength":"standard"}`},
		{"bad timeOfDay", `{"active":true,"frequency":"daily","timeOfDay":"25:00","targetLength":"standard"}`},
		{"bad targetLength", `{"active":true,"frequency":"daily","timeOfDay":"09:00","targetLength":"huge"}`},
		{"bad frequency", `{"active":true,"frequency":"hourly","timeOfDay":"09:00","targetLength":"standard"}`},
	}
	for _, tc := range cases {
		w := doJSON(t, r, http.MethodPut, "/admin/api/schedule", tc.body, session)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d: %s", tc.name, w.Code, w.Body.String())
		}
	}
}

func TestUpdateSchedulePersistsSettings(t *testing.T) {
	r := setupHandlerTest(t, "")
	createAdmin(t, "admin", "pass")
	session := loginAs(t, r, "admin", "pass")

	body := `{"active":true,"frequency":"weekly","dayOfWeek":5,"timeOfDay":"08:30","targetLength":"long","additionalContext":"多写机制"}`
	w := doJSON(t, r, http.MethodPut, "/admin/api/schedule", body, session)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var sched db.GenerationSchedule
	if err := db.DB.First(&sched).Error; err != nil {
		t.Fatalf("failed to load schedule: %v", err)
	}
	if sched.Frequency != db.FrequencyWeekly || sched.DayOfWeek == nil || *sched.DayOfWeek != 5 {
		t.Fatalf("unexpected persisted schedule: %+v", sched)
	}
	if sched.TimeOfDay != "08:30" || sched.TargetLength != db.LengthLong {
		t.Fatalf("unexpected persisted schedule: %+v", sched)
	}

	// 切回 daily 时 dayOfWeek 应被丢弃
	body = `{"active":true,"frequency":"daily","dayOfWeek":5,"timeOfDay":"09:00","targetLength":"standard"}`
	w = doJSON(t, r, http.MethodPut, "/admin/api/schedule", body, session)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if err := db.DB.First(&sched).Error; err != nil {
		t.Fatalf("failed to reload schedule: %v", err)
	}
	if sched.DayOfWeek != nil {
		t.Fatalf("dayOfWeek should be dropped for daily, got %v", *sched.DayOfWeek)
	}
}
