// Package visitor resolves the durable anonymous identity of each request
// and exposes the per-visitor session context: the anon id, the
// one-submission flag, and the page cursors of paginated views. All of it
// lives in an encrypted browser cookie, so the server keeps no session
// table and the identity survives across sessions.
package visitor

import (
	"crypto/sha256"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/resolutionwall/backend/internal/resolutions"
)

const (
	contextKey          = "resolutions_visitor"
	sessionKeyAnonID    = "anon_id"
	sessionKeySubmitted = "has_submitted"
	cursorKeyPrefix     = "page:"

	// Identities are never rotated; keep the cookie for a year and refresh
	// it on every visit.
	cookieMaxAgeSeconds = 365 * 24 * 60 * 60
)

// SessionMiddleware builds the encrypted cookie session layer. Both the
// authentication and the AES encryption key are derived from the configured
// secret with distinct labels, so the cookie payload is unreadable and
// untamperable by the browser.
func SessionMiddleware(secret, cookieName string) gin.HandlerFunc {
	store := cookie.NewStore(deriveKey(secret, "auth"), deriveKey(secret, "encrypt"))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cookieMaxAgeSeconds,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sessions.Sessions(cookieName, store)
}

func deriveKey(secret, label string) []byte {
	sum := sha256.Sum256([]byte(label + ":" + secret))
	return sum[:]
}

// IdentityMiddleware resolves the stable anonymous id for the request,
// minting and persisting one on first visit. No identity means no further
// rendering is safe: a session that cannot be saved aborts the request
// before any handler runs.
func IdentityMiddleware(idProvider resolutions.IDProvider, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		session := sessions.Default(c)

		anonID, _ := session.Get(sessionKeyAnonID).(string)
		isNew := false
		if strings.TrimSpace(anonID) == "" {
			minted, err := idProvider.NewID()
			if err != nil {
				logger.Error("failed to mint anonymous id", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "identity_unavailable"})
				return
			}
			anonID = minted
			isNew = true
			session.Set(sessionKeyAnonID, anonID)
			if err := session.Save(); err != nil {
				logger.Error("failed to persist anonymous id", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "identity_unavailable"})
				return
			}
		}

		c.Set(contextKey, &Context{
			AnonID:  anonID,
			IsNew:   isNew,
			session: session,
		})
		c.Next()
	}
}

// Context is the per-visitor session state passed into component calls.
// One instance exists per request; mutations are buffered in the session
// and become durable on Save.
type Context struct {
	AnonID string
	IsNew  bool

	session sessions.Session
}

// FromContext extracts the visitor context placed by IdentityMiddleware.
func FromContext(c *gin.Context) (*Context, bool) {
	value, exists := c.Get(contextKey)
	if !exists {
		return nil, false
	}
	visitorContext, ok := value.(*Context)
	return visitorContext, ok
}

// Cursor returns the stored zero-based page index for a paginated view,
// zero when the view has not been visited yet.
func (v *Context) Cursor(viewKey string) int {
	page, _ := v.session.Get(cursorKeyPrefix + viewKey).(int)
	return page
}

// SetCursor buffers a new page index for a paginated view.
func (v *Context) SetCursor(viewKey string, page int) {
	v.session.Set(cursorKeyPrefix+viewKey, page)
}

// HasSubmitted reports the session's one-submission flag. The flag is a
// fast path: a false value still requires a store probe, since the cookie
// may be newer than the record.
func (v *Context) HasSubmitted() bool {
	submitted, _ := v.session.Get(sessionKeySubmitted).(bool)
	return submitted
}

// MarkSubmitted buffers the one-submission flag.
func (v *Context) MarkSubmitted() {
	v.session.Set(sessionKeySubmitted, true)
}

// Save makes all buffered session mutations durable in the cookie.
func (v *Context) Save() error {
	return v.session.Save()
}
