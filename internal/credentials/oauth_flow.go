package credentials

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/fegerV/arplatform/internal/models"
	"github.com/fegerV/arplatform/pkg/response"
)

const (
	oauthStatePrefix = "oidc_state:"
	oauthStateTTL    = 10 * time.Minute
)

// pendingConnection is the state-nonce payload in Redis: which
// StorageConnection to create once the authorization-code exchange
// succeeds, since the provider callback carries nothing but code/state.
type pendingConnection struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
	BasePath string `json:"base_path"`
}

// Flow implements C2's cloud-disk OAuth authorization-code handshake,
// grounded on wisbric-nightowl/internal/auth/oidc_flow.go's
// oidc_state:<state> Redis-TTL nonce store (HandleLogin/HandleCallback),
// generalized from identity login to storage-provider authorization.
type Flow struct {
	repo     *Repository
	oauthCfg *oauth2.Config
	redis    *redis.Client
	logger   *zap.Logger
}

// NewFlow builds an OAuth Flow.
func NewFlow(repo *Repository, oauthCfg *oauth2.Config, rdb *redis.Client, logger *zap.Logger) *Flow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flow{repo: repo, oauthCfg: oauthCfg, redis: rdb, logger: logger}
}

// AuthorizeRequest is the body for POST /admin/storage-connections/oauth/authorize,
// naming the StorageConnection to create once the handshake completes.
type AuthorizeRequest struct {
	Name     string `json:"name" binding:"required"`
	Provider string `json:"provider" binding:"required"`
	BasePath string `json:"base_path"`
}

// Authorize mints a state nonce, stashes the pending connection under it in
// Redis with a 10 minute TTL, and returns the provider's consent URL for
// the admin UI to redirect the browser to.
func (f *Flow) Authorize(c *gin.Context) {
	var req AuthorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	state, err := randomState()
	if err != nil {
		response.Internal(c, "failed to generate state")
		return
	}
	payload, err := json.Marshal(pendingConnection{Name: req.Name, Provider: req.Provider, BasePath: req.BasePath})
	if err != nil {
		response.Internal(c, "failed to encode pending connection")
		return
	}
	if err := f.redis.Set(c.Request.Context(), oauthStatePrefix+state, payload, oauthStateTTL).Err(); err != nil {
		f.logger.Error("oauth: store state failed", zap.Error(err))
		response.Internal(c, "failed to store state")
		return
	}
	response.OK(c, gin.H{"auth_url": f.oauthCfg.AuthCodeURL(state)})
}

// Callback handles GET /oauth/{provider}/callback?code&state: validates
// state against the server-issued nonce (single use — GetDel consumes it),
// exchanges code for tokens, creates the pending StorageConnection, and
// notifies the admin UI via window.postMessage per spec.md §6.
func (f *Flow) Callback(c *gin.Context) {
	ctx := c.Request.Context()

	state := c.Query("state")
	if state == "" {
		f.postMessageError(c, "missing state parameter")
		return
	}
	raw, err := f.redis.GetDel(ctx, oauthStatePrefix+state).Result()
	if err != nil || raw == "" {
		f.postMessageError(c, "invalid or expired state")
		return
	}
	var pending pendingConnection
	if err := json.Unmarshal([]byte(raw), &pending); err != nil {
		f.postMessageError(c, "corrupt pending connection")
		return
	}

	if errParam := c.Query("error"); errParam != "" {
		f.logger.Warn("oauth: provider returned error", zap.String("error", errParam))
		f.postMessageError(c, "authorization failed: "+errParam)
		return
	}
	code := c.Query("code")
	if code == "" {
		f.postMessageError(c, "missing code parameter")
		return
	}

	token, err := f.oauthCfg.Exchange(ctx, code)
	if err != nil {
		f.logger.Error("oauth: code exchange failed", zap.Error(err))
		f.postMessageError(c, "code exchange failed")
		return
	}

	conn, err := f.repo.Create(ctx, models.StorageConnection{
		Name:     pending.Name,
		Provider: models.Provider(pending.Provider),
		BasePath: pending.BasePath,
		IsActive: true,
	})
	if err != nil {
		f.logger.Error("oauth: create storage connection failed", zap.Error(err))
		f.postMessageError(c, "failed to create storage connection")
		return
	}
	if err := f.repo.UpsertTokens(ctx, conn.ID, OAuthTokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}); err != nil {
		f.logger.Error("oauth: store tokens failed", zap.Error(err))
		f.postMessageError(c, "failed to store tokens")
		return
	}

	f.postMessageSuccess(c, conn.ID)
}

// postMessageShell is the HTML the OAuth popup window serves back to
// itself: it posts the handshake outcome to window.opener and closes.
// No example repo in the source corpus serves server-rendered HTML (see
// the viewer shell in internal/resolution), so this uses html/template
// directly here too.
var postMessageShell = template.Must(template.New("oauth-callback").Parse(`<!DOCTYPE html>
<html>
<head><title>Storage connection</title></head>
<body>
<script>
window.opener && window.opener.postMessage({{.}}, "*");
window.close();
</script>
</body>
</html>`))

type postMessagePayload struct {
	Type          string `json:"type"`
	StorageConnID int64  `json:"storage_connection_id,omitempty"`
	Error         string `json:"error,omitempty"`
}

func (f *Flow) postMessageSuccess(c *gin.Context, connectionID int64) {
	f.writePostMessage(c, postMessagePayload{Type: "storage_oauth_success", StorageConnID: connectionID})
}

func (f *Flow) postMessageError(c *gin.Context, reason string) {
	f.writePostMessage(c, postMessagePayload{Type: "storage_oauth_error", Error: reason})
}

func (f *Flow) writePostMessage(c *gin.Context, payload postMessagePayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	// body is already valid JSON, so it is also a valid JS expression to
	// embed inside the inline script via the template's {{.}}.
	postMessageShell.Execute(c.Writer, template.JS(body))
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
