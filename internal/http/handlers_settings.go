package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"budgetbuddy/internal/auth"
	"budgetbuddy/internal/core"
	"budgetbuddy/internal/log"
)

type preferencesView struct {
	core.Preferences
	Symbol string `json:"symbol"`
}

func viewOf(p core.Preferences) preferencesView {
	return preferencesView{Preferences: p, Symbol: p.Currency.Symbol()}
}

func (s *Server) handleGetPreferences(c *gin.Context) {
	Success(c, viewOf(s.deps.Ledger.Snapshot().Preferences))
}

// preferencesUpdate changes only the fields present in the body.
type preferencesUpdate struct {
	Currency             *core.Currency `json:"currency"`
	NotificationsEnabled *bool          `json:"notificationsEnabled"`
}

func (s *Server) handleUpdatePreferences(c *gin.Context) {
	var req preferencesUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	p := s.deps.Ledger.Snapshot().Preferences
	if req.Currency != nil {
		p.Currency = *req.Currency
	}
	if req.NotificationsEnabled != nil {
		p.NotificationsEnabled = *req.NotificationsEnabled
	}
	if err := s.deps.Ledger.UpdatePreferences(c.Request.Context(), p); err != nil {
		Fail(c, err)
		return
	}
	Success(c, viewOf(p))
}

func (s *Server) handleGetSession(c *gin.Context) {
	id, ok := s.deps.Session.Current()
	if !ok {
		Success(c, gin.H{"signedIn": false})
		return
	}
	Success(c, gin.H{"signedIn": true, "identity": id})
}

type loginRequest struct {
	Token string `json:"token"`
}

// handleLogin signs in with an identity token from the body or, failing
// that, from the Authorization header, query or cookie.
func (s *Server) handleLogin(c *gin.Context) {
	if s.deps.Tokens == nil {
		Fail(c, auth.ErrNoSecret)
		return
	}
	var req loginRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, "invalid request body: "+err.Error())
			return
		}
	}
	token := req.Token
	if token == "" {
		token = tokenFromRequest(c)
	}
	if token == "" {
		Error(c, http.StatusUnauthorized, CodeAuth, "missing identity token")
		return
	}

	id, err := s.deps.Tokens.Verify(token)
	if err != nil {
		if !errors.Is(err, auth.ErrNoSecret) {
			s.logger.WarnContext(c.Request.Context(), "Rejected identity token", log.FieldError, err)
		}
		Fail(c, err)
		return
	}
	s.deps.Session.Login(id)
	s.logger.InfoContext(c.Request.Context(), "Signed in", log.FieldUserID, id.UserID)
	Success(c, gin.H{"signedIn": true, "identity": id})
}

func (s *Server) handleLogout(c *gin.Context) {
	s.deps.Session.Logout()
	Success(c, gin.H{"signedIn": false})
}

func (s *Server) handleBackup(c *gin.Context) {
	if s.deps.Sync == nil {
		Fail(c, ErrSyncDisabled)
		return
	}
	res, err := s.deps.Sync.Push(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, res)
}

// handleRestore pulls the backup and reloads the ledger from the restored keys.
func (s *Server) handleRestore(c *gin.Context) {
	if s.deps.Sync == nil {
		Fail(c, ErrSyncDisabled)
		return
	}
	ctx := c.Request.Context()
	res, err := s.deps.Sync.Pull(ctx)
	if err != nil {
		Fail(c, err)
		return
	}
	if err := s.deps.Ledger.Refresh(ctx); err != nil {
		Fail(c, err)
		return
	}
	Success(c, res)
}

func (s *Server) handleClearData(c *gin.Context) {
	if err := s.deps.Ledger.ClearLocalData(c.Request.Context()); err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"cleared": true})
}
