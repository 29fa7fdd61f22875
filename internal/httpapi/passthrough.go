package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"traceability-explorer/internal/audit"
	"traceability-explorer/internal/credentials"
	"traceability-explorer/internal/domino"
)

// Users proxies GET /api/users to /v4/users, query included.
func (h Handlers) Users(c *gin.Context) {
	h.passthrough(c, "users", domino.PathUsers, c.Request.URL.Query(), "Users")
}

// Me proxies GET /api/me to /v4/users/self.
func (h Handlers) Me(c *gin.Context) {
	h.passthrough(c, "me", domino.PathSelf, nil, "Me")
}

func (h Handlers) passthrough(c *gin.Context, target, path string, query url.Values, label string) {
	if h.DominoHost == "" || h.Domino == nil {
		respondError(c, ErrDominoHostNotConfigured)
		return
	}
	creds, ok := requestCredentials(c)
	if !ok {
		return
	}

	resp, err := h.Domino.Get(c.Request.Context(), creds, domino.Request{
		Target:  target,
		Host:    h.DominoHost,
		Path:    path,
		Query:   query,
		Timeout: h.Timeout,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if !resp.OK() {
		respondErrorStatus(c, resp.Status, errors.New(upstreamMessage(label, resp)))
		return
	}
	if json.Valid(resp.Body) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", resp.Body)
		return
	}
	c.JSON(http.StatusOK, string(resp.Body))
}

func upstreamMessage(label string, resp domino.Response) string {
	if strings.TrimSpace(string(resp.Body)) == "" {
		return fmt.Sprintf("%s API returned %d", label, resp.Status)
	}
	return domino.SanitizeError(resp.Status, string(resp.Body))
}

// check is the outcome of one diagnostic call.
type check struct {
	OK      bool              `json:"ok"`
	Status  int               `json:"status,omitempty"`
	ActorID string            `json:"actorId,omitempty"`
	Params  map[string]string `json:"params,omitempty"`
	Data    any               `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	MeData  any               `json:"me_data,omitempty"`
}

const diagnosticWindow = 7 * 24 * time.Hour

// Diagnostics serves GET /api/test: it calls every upstream API the app
// depends on (me, users, audit, audit filtered by the caller's actorId) and
// reports each outcome with the raw payload.
func (h Handlers) Diagnostics(c *gin.Context) {
	if h.DominoHost == "" || h.Domino == nil {
		respondError(c, ErrDominoHostNotConfigured)
		return
	}
	creds, ok := requestCredentials(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	now := h.now()
	params := url.Values{}
	params.Set("startTimestamp", strconv.FormatInt(now.Add(-diagnosticWindow).UnixMilli(), 10))
	params.Set("endTimestamp", strconv.FormatInt(now.UnixMilli(), 10))
	params.Set("limit", "10")

	results := map[string]check{
		"me":    h.probe(ctx, creds, "me", h.DominoHost, domino.PathSelf, nil),
		"users": h.probe(ctx, creds, "users", h.DominoHost, domino.PathUsers, nil),
	}

	auditHost := h.AuditHost
	if auditHost == "" {
		auditHost = h.DominoHost
	}
	if len(h.AuditPaths) == 0 {
		results["audit"] = check{Error: "no audit paths configured"}
		results["audit_with_actorId"] = check{Error: "no audit paths configured"}
		c.JSON(http.StatusOK, gin.H{"results": results})
		return
	}
	auditPath := h.AuditPaths[0]
	results["audit"] = h.probe(ctx, creds, "audit", auditHost, auditPath, params)

	me := results["me"].Data
	actorID := actorOf(me)
	if actorID == "" {
		results["audit_with_actorId"] = check{Error: "No actorId from /me", MeData: me}
	} else {
		withActor := url.Values{}
		for k, v := range params {
			withActor[k] = v
		}
		withActor.Set("actorId", actorID)
		r := h.probe(ctx, creds, "audit", auditHost, auditPath, withActor)
		r.ActorID = actorID
		results["audit_with_actorId"] = r
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h Handlers) probe(ctx context.Context, creds credentials.Credentials, target, host, path string, query url.Values) check {
	out := check{Params: flatten(query)}
	resp, err := h.Domino.Get(ctx, creds, domino.Request{
		Target:  target,
		Host:    host,
		Path:    path,
		Query:   query,
		Timeout: h.Timeout,
	})
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.OK = resp.OK()
	out.Status = resp.Status
	if resp.IsJSON() {
		out.Data = resp.Payload()
	} else {
		out.Data = string(resp.Body)
	}
	return out
}

// actorOf picks the caller's id from a /v4/users/self payload.
func actorOf(me any) string {
	m, ok := me.(map[string]any)
	if !ok {
		return ""
	}
	for _, k := range []string{"id", "userId", "userName"} {
		if id, ok := audit.Ident(m[k]); ok {
			return id
		}
	}
	return ""
}

func flatten(q url.Values) map[string]string {
	if len(q) == 0 {
		return nil
	}
	out := make(map[string]string, len(q))
	for k := range q {
		out[k] = q.Get(k)
	}
	return out
}
