package server

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/boxoffice/internal/audit/domain"
	obscontext "github.com/smallbiznis/boxoffice/internal/observability/context"
)

const (
	HeaderUserID      = "X-User-ID"
	HeaderFingerprint = "X-Client-Fingerprint"

	contextUserIDKey      = "user_id"
	contextFingerprintKey = "fingerprint"
)

// Principal reads the caller identity forwarded by the gateway. Anonymous
// callers are identified by their fingerprint header or, failing that, a
// hash of the client address.
func Principal() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if userID != "" {
			c.Set(contextUserIDKey, userID)
			c.Request = c.Request.WithContext(obscontext.WithActor(c.Request.Context(), "user", userID))
		}

		fingerprint := strings.TrimSpace(c.GetHeader(HeaderFingerprint))
		if fingerprint == "" {
			sum := sha256.Sum256([]byte(c.ClientIP()))
			fingerprint = "ip:" + hex.EncodeToString(sum[:8])
		}
		c.Set(contextFingerprintKey, fingerprint)
		c.Request = c.Request.WithContext(auditdomain.WithClient(c.Request.Context(), auditdomain.Client{
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}))
		c.Next()
	}
}

func (s *Server) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userIDFromContext(c) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

// authorize checks the caller against the RBAC policy and aborts on denial.
func (s *Server) authorize(c *gin.Context, object, action string) bool {
	if err := s.authzSvc.Authorize(c.Request.Context(), userIDFromContext(c), object, action); err != nil {
		AbortWithError(c, err)
		return false
	}
	return true
}

func (s *Server) isStaff(c *gin.Context) bool {
	userID := userIDFromContext(c)
	if userID == "" {
		return false
	}
	staff, err := s.authzSvc.IsStaff(c.Request.Context(), userID)
	if err != nil {
		return false
	}
	return staff
}

func userIDFromContext(c *gin.Context) string {
	return c.GetString(contextUserIDKey)
}

func optionalUserID(c *gin.Context) *string {
	userID := userIDFromContext(c)
	if userID == "" {
		return nil
	}
	return &userID
}

func fingerprintFromContext(c *gin.Context) string {
	return c.GetString(contextFingerprintKey)
}

// ownedBy reports whether the caller matches the recorded owner: the user id
// when one was recorded, otherwise the fingerprint.
func ownedBy(c *gin.Context, ownerUserID *string, ownerFingerprint string) bool {
	if ownerUserID != nil && *ownerUserID != "" {
		return userIDFromContext(c) == *ownerUserID
	}
	return ownerFingerprint != "" && fingerprintFromContext(c) == ownerFingerprint
}
