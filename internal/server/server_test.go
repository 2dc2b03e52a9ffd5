package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/swipeflow/swipeflow/internal/config"
	"github.com/swipeflow/swipeflow/internal/database"
	"github.com/swipeflow/swipeflow/internal/password"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{
		ListenAddr:         ":0",
		RequestTimeout:     30 * time.Second,
		MaxRequestSize:     1024 * 1024,
		APIEnv:             "test",
		ManagementToken:    "test-management-token",
		SessionTTL:         24 * time.Hour,
		DefaultCredits:     1000,
		MaxDailyLikes:      100,
		MaxDailyMessages:   50,
		LogLevel:           "error",
		LogFormat:          "console",
		CORSOriginPrefixes: []string{"chrome-extension://", "moz-extension://", "http://localhost", "https://localhost"},
		APIRateLimit:       100,
		APIRateWindow:      time.Minute,
		LoginRateLimit:     10,
		LoginRateWindow:    5 * time.Minute,
		ErrorLogRateLimit:  50,
		ErrorLogRateWindow: time.Minute,
		RateLimitKeyPrefix: "ratelimit:",
	}
}

func setupServer(t *testing.T, cfg *config.Config) (*Server, *database.DB) {
	t.Helper()

	db, err := database.New(database.Config{
		Path:            ":memory:",
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	if cfg == nil {
		cfg = testConfig()
	}

	srv, err := New(cfg, db, zap.NewNop())
	require.NoError(t, err)

	return srv, db
}

func seedAccessKey(t *testing.T, db *database.DB, keyValue string) database.AccessKey {
	t.Helper()
	key := database.AccessKey{
		ID:        uuid.New().String(),
		Name:      "test key",
		KeyValue:  keyValue,
		Status:    database.KeyStatusActive,
		MaxUsers:  -1,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, db.CreateAccessKey(context.Background(), key))
	return key
}

func seedUser(t *testing.T, db *database.DB, username, plaintext string, credits int) database.User {
	t.Helper()
	hash, err := password.Hash(plaintext)
	require.NoError(t, err)
	user := database.User{
		ID:               uuid.New().String(),
		Username:         username,
		PasswordHash:     hash,
		Status:           database.UserStatusActive,
		CreditsLeft:      credits,
		MaxDailyLikes:    100,
		MaxDailyMessages: 50,
		CreatedAt:        time.Now().UTC(),
	}
	require.NoError(t, db.CreateUser(context.Background(), user))
	return user
}

func postJSON(t *testing.T, srv *Server, path string, body any, cookies ...*http.Cookie) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}

func TestHealth(t *testing.T) {
	srv, _ := setupServer(t, nil)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestLoginSuccess(t *testing.T) {
	srv, db := setupServer(t, nil)
	seedAccessKey(t, db, "KEY-1")
	seedUser(t, db, "alice", "hunter2", 500)

	w, resp := postJSON(t, srv, "/api/login", gin.H{
		"username":   "alice",
		"password":   "hunter2",
		"access_key": "KEY-1",
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])
	token, _ := resp["token"].(string)
	assert.NotEmpty(t, token)

	user := resp["user"].(map[string]any)
	assert.Equal(t, "alice", user["username"])
	assert.Equal(t, float64(500), user["credits_left"])

	// The issued token resolves back to the user.
	got, err := srv.sessions.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
}

func TestLoginVagueCredentialErrors(t *testing.T) {
	srv, db := setupServer(t, nil)
	seedAccessKey(t, db, "KEY-1")
	seedUser(t, db, "alice", "hunter2", 500)

	wUnknown, respUnknown := postJSON(t, srv, "/api/login", gin.H{
		"username": "nobody", "password": "x", "access_key": "KEY-1",
	})
	wWrongPass, respWrongPass := postJSON(t, srv, "/api/login", gin.H{
		"username": "alice", "password": "wrong", "access_key": "KEY-1",
	})

	assert.Equal(t, http.StatusUnauthorized, wUnknown.Code)
	assert.Equal(t, http.StatusUnauthorized, wWrongPass.Code)
	// Identical message: responses must not reveal which usernames exist.
	assert.Equal(t, respUnknown["message"], respWrongPass["message"])
}

func TestLoginInvalidAccessKeyBeforeCredentials(t *testing.T) {
	srv, db := setupServer(t, nil)
	seedUser(t, db, "alice", "hunter2", 500)

	w, resp := postJSON(t, srv, "/api/login", gin.H{
		"username": "alice", "password": "hunter2", "access_key": "NOPE",
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid access key", resp["message"])
}

func TestLoginExpiredAccount(t *testing.T) {
	srv, db := setupServer(t, nil)
	seedAccessKey(t, db, "KEY-1")
	user := seedUser(t, db, "alice", "hunter2", 500)

	past := time.Now().Add(-time.Hour)
	_, err := db.DB().Exec(`UPDATE users SET expires_at = ? WHERE id = ?`, past, user.ID)
	require.NoError(t, err)

	w, resp := postJSON(t, srv, "/api/login", gin.H{
		"username": "alice", "password": "hunter2", "access_key": "KEY-1",
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Account has expired", resp["message"])
}

func TestLoginAttemptsAreAudited(t *testing.T) {
	srv, db := setupServer(t, nil)
	seedAccessKey(t, db, "KEY-1")
	user := seedUser(t, db, "alice", "hunter2", 500)
	ctx := context.Background()

	loginDetails := func() []string {
		t.Helper()
		entries, err := db.ListUsageLogs(ctx, database.UsageLogFilters{ActionType: "login", Limit: 100})
		require.NoError(t, err)
		details := make([]string, 0, len(entries))
		for _, entry := range entries {
			require.NotNil(t, entry.Details)
			details = append(details, *entry.Details)
		}
		return details
	}

	w, _ := postJSON(t, srv, "/api/login", gin.H{
		"username": "alice", "password": "wrong", "access_key": "KEY-1",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, loginDetails(), "status=invalid_password")

	w, _ = postJSON(t, srv, "/api/login", gin.H{
		"username": "nobody", "password": "x", "access_key": "KEY-1",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, loginDetails(), "status=user_not_found")

	w, _ = postJSON(t, srv, "/api/login", gin.H{
		"username": "alice", "password": "hunter2", "access_key": "NOPE",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, loginDetails(), "status=invalid_access_key")

	w, _ = postJSON(t, srv, "/api/login", gin.H{
		"username": "alice", "password": "hunter2", "access_key": "KEY-1",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, loginDetails(), "status=success")

	// Attempts against a known account carry its id; the wrong-password
	// entry resolves to alice.
	entries, err := db.ListUsageLogs(ctx, database.UsageLogFilters{ActionType: "login", Limit: 100})
	require.NoError(t, err)
	for _, entry := range entries {
		if *entry.Details == "status=invalid_password" {
			require.NotNil(t, entry.UserID)
			assert.Equal(t, user.ID, *entry.UserID)
		}
	}
}

func TestLoginMissingFields(t *testing.T) {
	srv, _ := setupServer(t, nil)

	w, _ := postJSON(t, srv, "/api/login", gin.H{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.LoginRateLimit = 10
	cfg.LoginRateWindow = 5 * time.Minute
	srv, db := setupServer(t, cfg)
	seedAccessKey(t, db, "KEY-1")

	for i := 0; i < 10; i++ {
		w, _ := postJSON(t, srv, "/api/login", gin.H{
			"username": "alice", "password": "x", "access_key": "KEY-1",
		})
		require.Equal(t, http.StatusUnauthorized, w.Code, "attempt %d", i)
	}

	// The 11th attempt within the window is rejected before the handler.
	w, resp := postJSON(t, srv, "/api/login", gin.H{
		"username": "alice", "password": "x", "access_key": "KEY-1",
	})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, false, resp["success"])
}

func TestValidateKey(t *testing.T) {
	srv, db := setupServer(t, nil)
	expiry := time.Now().Add(48 * time.Hour).UTC()
	key := database.AccessKey{
		ID:        uuid.New().String(),
		Name:      "beta batch",
		KeyValue:  "BETA-KEY",
		Status:    database.KeyStatusActive,
		ExpiresAt: &expiry,
		MaxUsers:  5,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, db.CreateAccessKey(context.Background(), key))

	w, resp := postJSON(t, srv, "/api/validate_key", gin.H{"access_key": "BETA-KEY"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["valid"])
	assert.Equal(t, "beta batch", resp["key_name"])
	assert.NotEmpty(t, resp["expires_at"])
}

func TestValidateKeySoftFailures(t *testing.T) {
	srv, db := setupServer(t, nil)

	past := time.Now().Add(-time.Hour)
	require.NoError(t, db.CreateAccessKey(context.Background(), database.AccessKey{
		ID: uuid.New().String(), Name: "old", KeyValue: "OLD-KEY",
		Status: database.KeyStatusActive, ExpiresAt: &past, MaxUsers: -1, CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, db.CreateAccessKey(context.Background(), database.AccessKey{
		ID: uuid.New().String(), Name: "full", KeyValue: "FULL-KEY",
		Status: database.KeyStatusActive, MaxUsers: 1, CurrentUsers: 1, CreatedAt: time.Now().UTC(),
	}))

	// Soft failures are 200 with valid:false, not 401.
	for _, tc := range []struct {
		key     string
		message string
	}{
		{"MISSING-KEY", "Invalid access key"},
		{"OLD-KEY", "Access key has expired"},
		{"FULL-KEY", "Access key has reached its user limit"},
	} {
		w, resp := postJSON(t, srv, "/api/validate_key", gin.H{"access_key": tc.key})
		require.Equal(t, http.StatusOK, w.Code, tc.key)
		assert.Equal(t, false, resp["valid"], tc.key)
		assert.Equal(t, tc.message, resp["message"], tc.key)
	}

	w, _ := postJSON(t, srv, "/api/validate_key", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func seedSite(t *testing.T, db *database.DB, name, baseURL string) {
	t.Helper()
	require.NoError(t, db.UpsertSiteConfig(context.Background(), database.SiteConfig{
		ID:              uuid.New().String(),
		Name:            name,
		BaseURL:         baseURL,
		Status:          database.SiteStatusActive,
		ProfileSelector: ".profile-card",
		LikeEndpoint:    "/api/like",
		SoundSuccessURL: "/sounds/ding.mp3",
	}))
}

func TestGetConfigDatingSites(t *testing.T) {
	srv, db := setupServer(t, nil)
	seedAccessKey(t, db, "KEY-1")
	seedSite(t, db, "matchpoint", "https://matchpoint.example")
	seedSite(t, db, "lovebird", "https://lovebird.example")

	w, resp := postJSON(t, srv, "/api/get_config", gin.H{
		"access_key": "KEY-1", "request_type": "dating_sites",
	})

	require.Equal(t, http.StatusOK, w.Code)
	sites := resp["sites"].([]any)
	require.Len(t, sites, 2)
	first := sites[0].(map[string]any)
	assert.Equal(t, "lovebird", first["name"])
	assert.Equal(t, "https://lovebird.example", first["url"])
}

func TestGetConfigActiveURL(t *testing.T) {
	srv, db := setupServer(t, nil)
	seedAccessKey(t, db, "KEY-1")
	seedSite(t, db, "matchpoint", "https://matchpoint.example")

	w, resp := postJSON(t, srv, "/api/get_config", gin.H{
		"access_key": "KEY-1", "active_url": "https://app.matchpoint.example/browse",
	})

	require.Equal(t, http.StatusOK, w.Code)
	site := resp["config"].(map[string]any)
	assert.Equal(t, "matchpoint", site["name"])
	assert.Equal(t, ".profile-card", site["profile_selector"])
	sounds := site["sounds"].(map[string]any)
	assert.Equal(t, "/sounds/ding.mp3", sounds["success"])
}

func TestGetConfigUnsupportedDomain(t *testing.T) {
	srv, db := setupServer(t, nil)
	seedAccessKey(t, db, "KEY-1")

	w, _ := postJSON(t, srv, "/api/get_config", gin.H{
		"access_key": "KEY-1", "active_url": "https://unsupported.example/",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetConfigRequestsAreAudited(t *testing.T) {
	srv, db := setupServer(t, nil)
	seedAccessKey(t, db, "KEY-1")
	seedSite(t, db, "lovebird", "https://lovebird.example")
	ctx := context.Background()

	w, _ := postJSON(t, srv, "/api/get_config", gin.H{
		"access_key": "KEY-1", "request_type": "dating_sites",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = postJSON(t, srv, "/api/get_config", gin.H{
		"access_key": "KEY-1", "active_url": "https://lovebird.example/browse",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = postJSON(t, srv, "/api/get_config", gin.H{
		"access_key": "KEY-1", "active_url": "https://unknown.example/",
	})
	require.Equal(t, http.StatusNotFound, w.Code)

	entries, err := db.ListUsageLogs(ctx, database.UsageLogFilters{ActionType: "config_request", Limit: 100})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	details := make([]string, 0, len(entries))
	for _, entry := range entries {
		require.NotNil(t, entry.Details)
		details = append(details, *entry.Details)
	}
	assert.Contains(t, details, "type=dating_sites_list")
	assert.Contains(t, details, "site=lovebird")
	assert.Contains(t, details, "status=site_not_supported")

	// Per-URL requests record the URL they were asked about.
	for _, entry := range entries {
		if *entry.Details == "status=site_not_supported" {
			require.NotNil(t, entry.SiteURL)
			assert.Equal(t, "https://unknown.example/", *entry.SiteURL)
		}
	}
}

func TestGetConfigNeitherMode(t *testing.T) {
	srv, db := setupServer(t, nil)
	seedAccessKey(t, db, "KEY-1")

	w, _ := postJSON(t, srv, "/api/get_config", gin.H{"access_key": "KEY-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetConfigInvalidKey(t *testing.T) {
	srv, _ := setupServer(t, nil)

	w, _ := postJSON(t, srv, "/api/get_config", gin.H{
		"access_key": "NOPE", "request_type": "dating_sites",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdateUsage(t *testing.T) {
	srv, db := setupServer(t, nil)
	seedAccessKey(t, db, "KEY-1")
	seeded := seedUser(t, db, "alice", "hunter2", 10)

	w, resp := postJSON(t, srv, "/api/update_usage", gin.H{
		"access_key": "KEY-1", "username": "alice", "type": "likes", "count": 3,
	})

	require.Equal(t, http.StatusOK, w.Code)
	user := resp["user"].(map[string]any)
	assert.Equal(t, float64(3), user["total_likes"])
	assert.Equal(t, float64(7), user["credits_left"])

	// The action landed in the audit trail, attributed to the account id.
	entries, err := db.ListUsageLogs(context.Background(), database.UsageLogFilters{Username: "alice", ActionType: "like"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 3, entries[0].Count)
	require.NotNil(t, entries[0].UserID)
	assert.Equal(t, seeded.ID, *entries[0].UserID)
}

func TestUpdateUsageCreditsExhaustedStillCounts(t *testing.T) {
	srv, db := setupServer(t, nil)
	seedAccessKey(t, db, "KEY-1")
	seedUser(t, db, "alice", "hunter2", 2)

	w, resp := postJSON(t, srv, "/api/update_usage", gin.H{
		"access_key": "KEY-1", "username": "alice", "type": "messages", "count": 5,
	})
	require.Equal(t, http.StatusOK, w.Code)
	user := resp["user"].(map[string]any)
	assert.Equal(t, float64(5), user["total_messages"])
	assert.Equal(t, float64(0), user["credits_left"])

	// Zero credits never block further accounting.
	w, resp = postJSON(t, srv, "/api/update_usage", gin.H{
		"access_key": "KEY-1", "username": "alice", "type": "messages", "count": 1,
	})
	require.Equal(t, http.StatusOK, w.Code)
	user = resp["user"].(map[string]any)
	assert.Equal(t, float64(6), user["total_messages"])
	assert.Equal(t, float64(0), user["credits_left"])
}

func TestUpdateUsageValidation(t *testing.T) {
	srv, db := setupServer(t, nil)
	seedAccessKey(t, db, "KEY-1")
	seedUser(t, db, "alice", "hunter2", 10)

	w, _ := postJSON(t, srv, "/api/update_usage", gin.H{
		"access_key": "KEY-1", "username": "alice", "type": "pokes", "count": 1,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = postJSON(t, srv, "/api/update_usage", gin.H{
		"access_key": "KEY-1", "username": "alice", "type": "likes", "count": 0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = postJSON(t, srv, "/api/update_usage", gin.H{
		"access_key": "KEY-1", "username": "ghost", "type": "likes", "count": 1,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = postJSON(t, srv, "/api/update_usage", gin.H{
		"access_key": "BAD", "username": "alice", "type": "likes", "count": 1,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogError(t *testing.T) {
	srv, db := setupServer(t, nil)
	seedAccessKey(t, db, "KEY-1")

	w, resp := postJSON(t, srv, "/api/log_error", gin.H{
		"access_key":    "KEY-1",
		"user":          "alice",
		"context":       "profile-scan",
		"error_message": "selector not found",
		"stack_trace":   "at scan()",
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])

	var count int
	require.NoError(t, db.DB().QueryRow(`SELECT COUNT(*) FROM error_logs`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestLogErrorRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.ErrorLogRateLimit = 3
	srv, db := setupServer(t, cfg)
	seedAccessKey(t, db, "KEY-1")

	body := gin.H{"access_key": "KEY-1", "context": "c", "error_message": "m"}
	for i := 0; i < 3; i++ {
		w, _ := postJSON(t, srv, "/api/log_error", body)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w, _ := postJSON(t, srv, "/api/log_error", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestCORSPreflightOnAPI(t *testing.T) {
	srv, _ := setupServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/login", nil)
	req.Header.Set("Origin", "chrome-extension://abcdef")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "chrome-extension://abcdef", w.Header().Get("Access-Control-Allow-Origin"))
}

func adminLogin(t *testing.T, srv *Server, token string) []*http.Cookie {
	t.Helper()
	w, _ := postJSON(t, srv, "/admin/login", gin.H{"management_token": token})
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func TestAdminLogin(t *testing.T) {
	srv, _ := setupServer(t, nil)

	w, _ := postJSON(t, srv, "/admin/login", gin.H{"management_token": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	cookies := adminLogin(t, srv, "test-management-token")
	assert.NotEmpty(t, cookies)
}

func TestAdminRequiresSession(t *testing.T) {
	srv, _ := setupServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminCreateKeyAndUserFlow(t *testing.T) {
	srv, db := setupServer(t, nil)
	cookies := adminLogin(t, srv, "test-management-token")

	w, resp := postJSON(t, srv, "/admin/keys", gin.H{"name": "batch one", "max_users": 1}, cookies...)
	require.Equal(t, http.StatusCreated, w.Code)
	key := resp["key"].(map[string]any)
	keyValue := key["key_value"].(string)
	require.NotEmpty(t, keyValue)

	w, resp = postJSON(t, srv, "/admin/users", gin.H{
		"username": "alice", "password": "hunter2", "access_key": keyValue,
	}, cookies...)
	require.Equal(t, http.StatusCreated, w.Code)
	created := resp["user"].(map[string]any)
	assert.Equal(t, float64(1000), created["credits_left"])

	// Binding consumed the key's only slot.
	stored, err := db.GetAccessKeyByValue(context.Background(), keyValue)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentUsers)

	w, _ = postJSON(t, srv, "/admin/users", gin.H{
		"username": "bob", "password": "secret", "access_key": keyValue,
	}, cookies...)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Duplicate usernames are rejected.
	w, _ = postJSON(t, srv, "/admin/users", gin.H{
		"username": "alice", "password": "other",
	}, cookies...)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAdminListUsersIncludesAggregates(t *testing.T) {
	srv, db := setupServer(t, nil)
	seedAccessKey(t, db, "KEY-1")
	seedUser(t, db, "alice", "hunter2", 100)

	// One login session and one accounted like.
	w, _ := postJSON(t, srv, "/api/login", gin.H{
		"username": "alice", "password": "hunter2", "access_key": "KEY-1",
	})
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = postJSON(t, srv, "/api/update_usage", gin.H{
		"access_key": "KEY-1", "username": "alice", "type": "likes", "count": 2,
	})
	require.Equal(t, http.StatusOK, w.Code)

	cookies := adminLogin(t, srv, "test-management-token")
	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	users := resp["users"].([]any)
	require.Len(t, users, 1)
	entry := users[0].(map[string]any)
	assert.Equal(t, "alice", entry["username"])
	assert.Equal(t, float64(1), entry["sessions"])
	actions := entry["logged_actions"].(map[string]any)
	assert.Equal(t, float64(2), actions["like"])
	assert.Equal(t, float64(1), actions["login"])
}

func TestAdminListLogsFilters(t *testing.T) {
	srv, db := setupServer(t, nil)
	seedAccessKey(t, db, "KEY-1")
	seedUser(t, db, "alice", "hunter2", 100)
	seedUser(t, db, "bob", "hunter2", 100)

	for _, username := range []string{"alice", "alice", "bob"} {
		w, _ := postJSON(t, srv, "/api/update_usage", gin.H{
			"access_key": "KEY-1", "username": username, "type": "likes", "count": 1,
		})
		require.Equal(t, http.StatusOK, w.Code)
	}

	cookies := adminLogin(t, srv, "test-management-token")
	req := httptest.NewRequest(http.MethodGet, "/admin/logs?username=alice", nil)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	logs := resp["logs"].([]any)
	assert.Len(t, logs, 2)
}

func TestAdminLogout(t *testing.T) {
	srv, _ := setupServer(t, nil)
	cookies := adminLogin(t, srv, "test-management-token")

	w, _ := postJSON(t, srv, "/admin/logout", gin.H{}, cookies...)
	require.Equal(t, http.StatusOK, w.Code)

	// The cleared cookie no longer grants access.
	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	for _, cookie := range w.Result().Cookies() {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, nil, nil)
	assert.Error(t, err)

	db, err := database.New(database.Config{Path: ":memory:", MaxOpenConns: 1, MaxIdleConns: 1, ConnMaxLifetime: time.Hour})
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = New(testConfig(), nil, nil)
	assert.Error(t, err)

	srv, err := New(testConfig(), db, nil)
	require.NoError(t, err)
	assert.NotNil(t, srv.Handler())
}


