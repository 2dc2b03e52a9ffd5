package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/swipeflow/swipeflow/internal/accesskey"
	"github.com/swipeflow/swipeflow/internal/database"
	"github.com/swipeflow/swipeflow/internal/password"
)

const adminSessionKey = "authenticated"

type adminLoginRequest struct {
	ManagementToken string `json:"management_token"`
}

// handleAdminLogin exchanges the management token for an admin cookie
// session.
func (s *Server) handleAdminLogin(c *gin.Context) {
	var req adminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ManagementToken == "" {
		respondError(c, http.StatusBadRequest, "management_token is required")
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.ManagementToken), []byte(s.config.ManagementToken)) != 1 {
		s.logger.Warn("admin login failed", zap.String("client_ip", c.ClientIP()))
		respondError(c, http.StatusUnauthorized, "Invalid management token")
		return
	}

	sess := sessions.Default(c)
	sess.Set(adminSessionKey, true)
	sess.Options(sessions.Options{
		MaxAge:   8 * 60 * 60,
		Path:     "/",
		HttpOnly: true,
	})
	if err := sess.Save(); err != nil {
		s.respondInternal(c, "admin_login_session", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged in"})
}

// handleAdminLogout clears the admin cookie session. Extension sessions
// are untouched; the public API has no revocation endpoint.
func (s *Server) handleAdminLogout(c *gin.Context) {
	sess := sessions.Default(c)
	sess.Clear()
	sess.Options(sessions.Options{MaxAge: -1, Path: "/"})
	if err := sess.Save(); err != nil {
		s.respondInternal(c, "admin_logout_session", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out"})
}

// adminAuth requires an authenticated admin cookie session.
func (s *Server) adminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		if authed, ok := sess.Get(adminSessionKey).(bool); !ok || !authed {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Admin authentication required",
			})
			return
		}
		c.Next()
	}
}

// handleAdminListUsers lists all accounts with their session counts and
// per-action audit totals.
func (s *Server) handleAdminListUsers(c *gin.Context) {
	ctx := c.Request.Context()

	users, err := s.db.ListUsers(ctx)
	if err != nil {
		s.respondInternal(c, "admin_list_users", err)
		return
	}

	list := make([]gin.H, 0, len(users))
	for _, user := range users {
		sessionCount, err := s.db.CountSessionsByUser(ctx, user.ID)
		if err != nil {
			s.respondInternal(c, "admin_list_users", err)
			return
		}
		totals, err := s.db.CountUsageLogsByUser(ctx, user.Username)
		if err != nil {
			s.respondInternal(c, "admin_list_users", err)
			return
		}

		entry := gin.H{
			"id":             user.ID,
			"username":       user.Username,
			"email":          user.Email,
			"status":         user.Status,
			"total_likes":    user.TotalLikes,
			"total_messages": user.TotalMessages,
			"credits_left":   user.CreditsLeft,
			"sessions":       sessionCount,
			"logged_actions": totals,
			"created_at":     user.CreatedAt.UTC().Format(time.RFC3339),
		}
		if user.ExpiresAt != nil {
			entry["expires_at"] = user.ExpiresAt.UTC().Format(time.RFC3339)
		}
		list = append(list, entry)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "users": list})
}

type adminCreateUserRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Email     string `json:"email"`
	AccessKey string `json:"access_key"`
	Credits   *int   `json:"credits"`
	ExpiresAt string `json:"expires_at"` // RFC3339, optional
}

// handleAdminCreateUser creates an account. When an access key is given
// its capacity is enforced and its bound-user count incremented.
func (s *Server) handleAdminCreateUser(c *gin.Context) {
	var req adminCreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		respondError(c, http.StatusBadRequest, "username and password are required")
		return
	}

	var expiresAt *time.Time
	if req.ExpiresAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			respondError(c, http.StatusBadRequest, "expires_at must be RFC3339")
			return
		}
		expiresAt = &parsed
	}

	ctx := c.Request.Context()

	exists, err := s.db.UserExists(ctx, req.Username)
	if err != nil {
		s.respondInternal(c, "admin_create_user", err)
		return
	}
	if exists {
		respondError(c, http.StatusConflict, "Username is already taken")
		return
	}

	var boundKey *database.AccessKey
	if req.AccessKey != "" {
		if _, err := s.validator.Inspect(ctx, req.AccessKey); err != nil {
			switch {
			case errors.Is(err, accesskey.ErrKeyNotFound), errors.Is(err, accesskey.ErrKeyExpired):
				respondError(c, http.StatusUnauthorized, "Invalid access key")
			case errors.Is(err, accesskey.ErrKeyCapacity):
				respondError(c, http.StatusUnauthorized, "Access key has reached its user limit")
			default:
				s.respondInternal(c, "admin_create_user", err)
			}
			return
		}

		key, err := s.db.GetAccessKeyByValue(ctx, req.AccessKey)
		if err != nil {
			s.respondInternal(c, "admin_create_user", err)
			return
		}
		boundKey = &key
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		s.respondInternal(c, "admin_create_user", err)
		return
	}

	credits := s.config.DefaultCredits
	if req.Credits != nil && *req.Credits >= 0 {
		credits = *req.Credits
	}

	user := database.User{
		ID:               uuid.New().String(),
		Username:         req.Username,
		Email:            req.Email,
		PasswordHash:     hash,
		Status:           database.UserStatusActive,
		ExpiresAt:        expiresAt,
		CreditsLeft:      credits,
		MaxDailyLikes:    s.config.MaxDailyLikes,
		MaxDailyMessages: s.config.MaxDailyMessages,
		CreatedAt:        time.Now().UTC(),
	}

	if boundKey != nil {
		// The capacity claim and the insert commit together, so racing
		// creates against the same key cannot exceed max_users.
		err = s.db.CreateUserWithKey(ctx, user, boundKey.ID)
		if errors.Is(err, database.ErrAccessKeyCapacity) {
			respondError(c, http.StatusUnauthorized, "Access key has reached its user limit")
			return
		}
	} else {
		err = s.db.CreateUser(ctx, user)
	}
	if err != nil {
		s.respondInternal(c, "admin_create_user", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"user": gin.H{
			"id":           user.ID,
			"username":     user.Username,
			"credits_left": user.CreditsLeft,
		},
	})
}

// handleAdminListKeys lists all access keys including their secret values.
// This endpoint is management-token gated; operators hand the values out.
func (s *Server) handleAdminListKeys(c *gin.Context) {
	keys, err := s.db.ListAccessKeys(c.Request.Context())
	if err != nil {
		s.respondInternal(c, "admin_list_keys", err)
		return
	}

	list := make([]gin.H, 0, len(keys))
	for _, key := range keys {
		entry := gin.H{
			"id":            key.ID,
			"name":          key.Name,
			"key_value":     key.KeyValue,
			"status":        key.Status,
			"max_users":     key.MaxUsers,
			"current_users": key.CurrentUsers,
			"created_at":    key.CreatedAt.UTC().Format(time.RFC3339),
		}
		if key.ExpiresAt != nil {
			entry["expires_at"] = key.ExpiresAt.UTC().Format(time.RFC3339)
		}
		list = append(list, entry)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "keys": list})
}

type adminCreateKeyRequest struct {
	Name      string `json:"name"`
	KeyValue  string `json:"key_value"`
	MaxUsers  *int   `json:"max_users"`
	ExpiresAt string `json:"expires_at"` // RFC3339, optional
}

// handleAdminCreateKey provisions an access key. A missing key_value is
// generated from a UUID.
func (s *Server) handleAdminCreateKey(c *gin.Context) {
	var req adminCreateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		respondError(c, http.StatusBadRequest, "name is required")
		return
	}

	var expiresAt *time.Time
	if req.ExpiresAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			respondError(c, http.StatusBadRequest, "expires_at must be RFC3339")
			return
		}
		expiresAt = &parsed
	}

	keyValue := req.KeyValue
	if keyValue == "" {
		keyValue = "AK-" + uuid.New().String()
	}

	maxUsers := -1
	if req.MaxUsers != nil {
		maxUsers = *req.MaxUsers
	}

	key := database.AccessKey{
		ID:        uuid.New().String(),
		Name:      req.Name,
		KeyValue:  keyValue,
		Status:    database.KeyStatusActive,
		ExpiresAt: expiresAt,
		MaxUsers:  maxUsers,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.db.CreateAccessKey(c.Request.Context(), key); err != nil {
		s.respondInternal(c, "admin_create_key", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"key": gin.H{
			"id":        key.ID,
			"name":      key.Name,
			"key_value": key.KeyValue,
			"max_users": key.MaxUsers,
		},
	})
}

// handleAdminListLogs lists usage log entries, filterable by username,
// action type and time range.
func (s *Server) handleAdminListLogs(c *gin.Context) {
	filters := database.UsageLogFilters{
		Username:   c.Query("username"),
		ActionType: c.Query("action_type"),
		Limit:      100,
	}
	if limit := c.Query("limit"); limit != "" {
		if parsed, err := strconv.Atoi(limit); err == nil && parsed > 0 {
			filters.Limit = parsed
		}
	}
	if offset := c.Query("offset"); offset != "" {
		if parsed, err := strconv.Atoi(offset); err == nil && parsed > 0 {
			filters.Offset = parsed
		}
	}
	if start := c.Query("start_time"); start != "" {
		filters.StartTime = &start
	}
	if end := c.Query("end_time"); end != "" {
		filters.EndTime = &end
	}

	entries, err := s.db.ListUsageLogs(c.Request.Context(), filters)
	if err != nil {
		s.respondInternal(c, "admin_list_logs", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "logs": entries})
}
