package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/swipeflow/swipeflow/internal/accesskey"
	"github.com/swipeflow/swipeflow/internal/auditlog"
	"github.com/swipeflow/swipeflow/internal/database"
	"github.com/swipeflow/swipeflow/internal/password"
	"github.com/swipeflow/swipeflow/internal/session"
	"github.com/swipeflow/swipeflow/internal/usage"
)

// invalidCredentialsMessage is deliberately identical for unknown users
// and wrong passwords so responses don't leak which usernames exist.
const invalidCredentialsMessage = "Invalid username or password"

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

// respondInternal hides the failure behind a generic message and records
// it in both the process log and the error audit trail.
func (s *Server) respondInternal(c *gin.Context, operation string, err error) {
	s.logger.Error("internal error",
		zap.String("operation", operation),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))
	s.audit.LogError(c.Request.Context(), auditlog.ErrorEntry{
		Context:      operation,
		ErrorMessage: err.Error(),
		URL:          c.Request.URL.Path,
		IPAddress:    c.ClientIP(),
		UserAgent:    c.Request.UserAgent(),
	})
	respondError(c, http.StatusInternalServerError, "An internal error occurred. Please try again later.")
}

// checkAccessKey validates the shared access key and writes the 401
// response itself when the key is unusable.
func (s *Server) checkAccessKey(c *gin.Context, keyValue string) bool {
	err := s.validator.Validate(c.Request.Context(), keyValue)
	if err == nil {
		return true
	}
	switch {
	case errors.Is(err, accesskey.ErrKeyNotFound), errors.Is(err, accesskey.ErrKeyExpired):
		respondError(c, http.StatusUnauthorized, "Invalid access key")
	default:
		s.respondInternal(c, "access_key_check", err)
	}
	return false
}

type loginRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	AccessKey string `json:"access_key"`
}

// auditLogin records a login attempt, successful or not. The status lands
// in the details column so failed attempts stay visible in the admin log
// listing.
func (s *Server) auditLogin(c *gin.Context, userID, username, status string) {
	s.audit.LogUsage(c.Request.Context(), auditlog.UsageEntry{
		UserID:     userID,
		Username:   username,
		ActionType: "login",
		Details:    "status=" + status,
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})
}

// handleLogin authenticates a user and issues a session token.
func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" || req.AccessKey == "" {
		respondError(c, http.StatusBadRequest, "username, password and access_key are required")
		return
	}

	ctx := c.Request.Context()

	if err := s.validator.Validate(ctx, req.AccessKey); err != nil {
		switch {
		case errors.Is(err, accesskey.ErrKeyNotFound), errors.Is(err, accesskey.ErrKeyExpired):
			s.auditLogin(c, "", req.Username, "invalid_access_key")
			respondError(c, http.StatusUnauthorized, "Invalid access key")
		default:
			s.respondInternal(c, "login_key_check", err)
		}
		return
	}

	user, err := s.db.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			// Burn comparable time so unknown users are not distinguishable
			// from wrong passwords by response latency.
			_, _ = password.Hash(req.Password)
			s.auditLogin(c, "", req.Username, "user_not_found")
			respondError(c, http.StatusUnauthorized, invalidCredentialsMessage)
			return
		}
		s.respondInternal(c, "login_lookup", err)
		return
	}

	if err := password.Verify(user.PasswordHash, req.Password); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			s.auditLogin(c, user.ID, req.Username, "invalid_password")
			respondError(c, http.StatusUnauthorized, invalidCredentialsMessage)
			return
		}
		s.respondInternal(c, "login_verify", err)
		return
	}

	if user.IsExpired() {
		s.auditLogin(c, user.ID, req.Username, "account_expired")
		respondError(c, http.StatusUnauthorized, "Account has expired")
		return
	}

	token, err := s.sessions.Create(ctx, user.ID, session.Meta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		s.respondInternal(c, "login_session", err)
		return
	}

	s.auditLogin(c, user.ID, user.Username, "success")

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
		"token":   token,
		"user": gin.H{
			"username":           user.Username,
			"total_likes":        user.TotalLikes,
			"total_messages":     user.TotalMessages,
			"credits_left":       user.CreditsLeft,
			"max_daily_likes":    user.MaxDailyLikes,
			"max_daily_messages": user.MaxDailyMessages,
		},
	})
}

type validateKeyRequest struct {
	AccessKey string `json:"access_key"`
}

// handleValidateKey inspects an access key for the extension's onboarding
// flow. Soft failures (unknown, expired, full) come back as 200 with
// valid:false so the extension can show the reason without treating it as
// a transport error.
func (s *Server) handleValidateKey(c *gin.Context) {
	var req validateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.AccessKey == "" {
		respondError(c, http.StatusBadRequest, "access_key is required")
		return
	}

	inspection, err := s.validator.Inspect(c.Request.Context(), req.AccessKey)
	if err != nil {
		switch {
		case errors.Is(err, accesskey.ErrKeyNotFound):
			c.JSON(http.StatusOK, gin.H{"success": false, "valid": false, "message": "Invalid access key"})
		case errors.Is(err, accesskey.ErrKeyExpired):
			c.JSON(http.StatusOK, gin.H{"success": false, "valid": false, "message": "Access key has expired"})
		case errors.Is(err, accesskey.ErrKeyCapacity):
			c.JSON(http.StatusOK, gin.H{"success": false, "valid": false, "message": "Access key has reached its user limit"})
		default:
			s.respondInternal(c, "validate_key", err)
		}
		return
	}

	resp := gin.H{
		"success":  true,
		"valid":    true,
		"key_name": inspection.KeyName,
	}
	if inspection.ExpiresAt != nil {
		resp["expires_at"] = inspection.ExpiresAt.UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

type getConfigRequest struct {
	AccessKey   string `json:"access_key"`
	RequestType string `json:"request_type"`
	ActiveURL   string `json:"active_url"`
}

// handleGetConfig serves either the list of supported dating sites or the
// automation config for the site matching the caller's active tab URL.
func (s *Server) handleGetConfig(c *gin.Context) {
	var req getConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !s.checkAccessKey(c, req.AccessKey) {
		return
	}

	ctx := c.Request.Context()

	switch {
	case req.RequestType == "dating_sites":
		sites, err := s.db.ListActiveSites(ctx)
		if err != nil {
			s.respondInternal(c, "get_config_sites", err)
			return
		}
		list := make([]gin.H, 0, len(sites))
		for _, site := range sites {
			list = append(list, gin.H{
				"name": site.Name,
				"url":  site.BaseURL,
				"logo": site.LogoURL,
			})
		}

		s.audit.LogUsage(ctx, auditlog.UsageEntry{
			ActionType: "config_request",
			Details:    "type=dating_sites_list",
			IPAddress:  c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
		})

		c.JSON(http.StatusOK, gin.H{"success": true, "sites": list})

	case req.ActiveURL != "":
		site, err := s.db.GetSiteConfigForURL(ctx, req.ActiveURL)
		if err != nil {
			if errors.Is(err, database.ErrSiteNotFound) {
				s.audit.LogUsage(ctx, auditlog.UsageEntry{
					ActionType: "config_request",
					SiteURL:    req.ActiveURL,
					Details:    "status=site_not_supported",
					IPAddress:  c.ClientIP(),
					UserAgent:  c.Request.UserAgent(),
				})
				respondError(c, http.StatusNotFound, "No configuration for this site")
				return
			}
			s.respondInternal(c, "get_config_site", err)
			return
		}

		s.audit.LogUsage(ctx, auditlog.UsageEntry{
			ActionType: "config_request",
			SiteURL:    req.ActiveURL,
			Details:    "site=" + site.Name,
			IPAddress:  c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
		})

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"config": gin.H{
				"name":                     site.Name,
				"base_url":                 site.BaseURL,
				"logo_url":                 site.LogoURL,
				"profile_selector":         site.ProfileSelector,
				"pagination_selector":      site.PaginationSelector,
				"like_endpoint":            site.LikeEndpoint,
				"message_endpoint":         site.MessageEndpoint,
				"profile_details_endpoint": site.ProfileDetailsEndpoint,
				"member_id_field":          site.MemberIDField,
				"message_field":            site.MessageField,
				"additional_fields":        site.AdditionalFields,
				"sounds": gin.H{
					"success":   site.SoundSuccessURL,
					"duplicate": site.SoundDuplicateURL,
					"failure":   site.SoundFailureURL,
				},
			},
		})

	default:
		respondError(c, http.StatusBadRequest, "request_type or active_url is required")
	}
}

type updateUsageRequest struct {
	AccessKey string `json:"access_key"`
	Username  string `json:"username"`
	Type      string `json:"type"`
	Count     int    `json:"count"`
	SiteURL   string `json:"site_url"`
	Details   string `json:"details"`
}

// handleUpdateUsage records likes or messages against a user account.
func (s *Server) handleUpdateUsage(c *gin.Context) {
	var req updateUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" {
		respondError(c, http.StatusBadRequest, "username is required")
		return
	}

	kind := database.UsageKind(req.Type)
	if !kind.Valid() {
		respondError(c, http.StatusBadRequest, "type must be 'likes' or 'messages'")
		return
	}
	if req.Count <= 0 {
		respondError(c, http.StatusBadRequest, "count must be a positive integer")
		return
	}

	if !s.checkAccessKey(c, req.AccessKey) {
		return
	}

	ctx := c.Request.Context()

	receipt, err := s.accountant.Record(ctx, req.Username, kind, req.Count)
	if err != nil {
		switch {
		case errors.Is(err, usage.ErrUserNotFound):
			respondError(c, http.StatusNotFound, "User not found")
		case errors.Is(err, usage.ErrInvalidKind), errors.Is(err, usage.ErrInvalidCount):
			respondError(c, http.StatusBadRequest, err.Error())
		default:
			s.respondInternal(c, "update_usage", err)
		}
		return
	}

	actionType := "like"
	if kind == database.UsageKindMessages {
		actionType = "message"
	}
	s.audit.LogUsage(ctx, auditlog.UsageEntry{
		UserID:     receipt.UserID,
		Username:   req.Username,
		ActionType: actionType,
		SiteURL:    req.SiteURL,
		Details:    req.Details,
		Count:      req.Count,
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user": gin.H{
			"total_likes":    receipt.Counters.TotalLikes,
			"total_messages": receipt.Counters.TotalMessages,
			"credits_left":   receipt.Counters.CreditsLeft,
		},
	})
}

type logErrorRequest struct {
	AccessKey        string `json:"access_key"`
	User             string `json:"user"`
	Context          string `json:"context"`
	ErrorMessage     string `json:"error_message"`
	StackTrace       string `json:"stack_trace"`
	ExtensionVersion string `json:"extension_version"`
	URL              string `json:"url"`
}

// handleLogError accepts error reports from the extension.
func (s *Server) handleLogError(c *gin.Context) {
	var req logErrorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Context == "" || req.ErrorMessage == "" {
		respondError(c, http.StatusBadRequest, "context and error_message are required")
		return
	}

	if !s.checkAccessKey(c, req.AccessKey) {
		return
	}

	s.audit.LogError(c.Request.Context(), auditlog.ErrorEntry{
		Username:         req.User,
		Context:          req.Context,
		ErrorMessage:     req.ErrorMessage,
		StackTrace:       req.StackTrace,
		ExtensionVersion: req.ExtensionVersion,
		URL:              req.URL,
		IPAddress:        c.ClientIP(),
		UserAgent:        c.Request.UserAgent(),
	})

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Error logged"})
}
