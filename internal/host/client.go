package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sheetbridge.dev/internal/errs"
)

// Client is the HTTP side of the host connection. Each call carries its own
// bounded timeout; transport failures surface as HostUnreachable so the
// reconciler can treat them uniformly as "assume disconnected".
type Client struct {
	baseURL string
	http    *http.Client

	requestTimeout time.Duration
	loginTimeout   time.Duration
}

func NewClient(baseURL string, requestTimeout, loginTimeout time.Duration) *Client {
	if requestTimeout <= 0 {
		requestTimeout = 4 * time.Second
	}
	if loginTimeout <= 0 {
		loginTimeout = 45 * time.Second
	}
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &http.Client{},
		requestTimeout: requestTimeout,
		loginTimeout:   loginTimeout,
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// SocketURL derives the websocket endpoint from the HTTP base.
func (c *Client) SocketURL() string {
	u := c.baseURL
	u = strings.Replace(u, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	return u + "/socket"
}

type loginReply struct {
	Status  string `json:"status"`
	UserID  string `json:"userId"`
	Message string `json:"message,omitempty"`
}

// Login establishes a host session. The host may take several seconds to
// stand its own session up, so this call runs under the longer login budget
// rather than the per-request timeout.
func (c *Client) Login(ctx context.Context, username, password string) (Credential, error) {
	ctx, cancel := context.WithTimeout(ctx, c.loginTimeout)
	defer cancel()

	body, _ := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/join", bytes.NewReader(body))
	if err != nil {
		return Credential{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Credential{}, errs.Wrap(errs.HostUnreachable, "login", err)
	}
	defer resp.Body.Close()

	var reply loginReply
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&reply); err != nil {
		return Credential{}, errs.Wrap(errs.HostUnreachable, "login: decode", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || reply.Status == "failed" {
		msg := reply.Message
		if msg == "" {
			msg = "host rejected credentials"
		}
		return Credential{}, errs.E(errs.Auth, "%s", msg)
	}
	if resp.StatusCode != http.StatusOK {
		return Credential{}, errs.E(errs.HostUnreachable, "login: host returned %d", resp.StatusCode)
	}

	cookie := ""
	for _, ck := range resp.Cookies() {
		if ck.Name == "session" {
			cookie = ck.Value
		}
	}
	if cookie == "" {
		return Credential{}, errs.E(errs.Auth, "host returned no session cookie")
	}
	return Credential{Cookie: cookie, UserID: reply.UserID}, nil
}

func (c *Client) Status(ctx context.Context) (WorldStatus, error) {
	var st WorldStatus
	err := c.getJSON(ctx, Credential{}, "/api/status", nil, &st)
	return st, err
}

func (c *Client) Users(ctx context.Context, cred Credential) ([]UserInfo, error) {
	var users []UserInfo
	err := c.getJSON(ctx, cred, "/api/users", nil, &users)
	return users, err
}

func (c *Client) Actors(ctx context.Context, cred Credential) ([]RawActor, error) {
	var actors []RawActor
	err := c.getJSON(ctx, cred, "/api/actors", nil, &actors)
	return actors, err
}

func (c *Client) Actor(ctx context.Context, cred Credential, id string) (*RawActor, error) {
	var a RawActor
	if err := c.getJSON(ctx, cred, "/api/actors/"+url.PathEscape(id), nil, &a); err != nil {
		return nil, err
	}
	if a.ID == "" {
		return nil, errs.E(errs.NotFound, "actor %s", id)
	}
	return &a, nil
}

func (c *Client) DeleteActor(ctx context.Context, cred Credential, id string) error {
	return c.do(ctx, cred, http.MethodDelete, "/api/actors/"+url.PathEscape(id), nil, nil)
}

// UpdateActorField applies a single dotted-path scalar update to the actor's
// raw document, e.g. {"system.attributes.hp.value": 7}.
func (c *Client) UpdateActorField(ctx context.Context, cred Credential, id, path string, value any) error {
	body, err := json.Marshal(map[string]any{path: value})
	if err != nil {
		return errs.Wrap(errs.Validation, "update field", err)
	}
	return c.do(ctx, cred, http.MethodPatch, "/api/actors/"+url.PathEscape(id), body, nil)
}

// ModifyDocument drives the generic sub-document mutation protocol. The reply
// is the host's view of the touched document(s), passed through untouched.
func (c *Client) ModifyDocument(ctx context.Context, cred Credential, req ModifyRequest) (json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errs.Wrap(errs.Validation, "modify document", err)
	}
	var out json.RawMessage
	if err := c.do(ctx, cred, http.MethodPost, "/api/modify-document", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ChatLog(ctx context.Context, cred Credential, limit int) ([]ChatMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var msgs []ChatMessage
	err := c.getJSON(ctx, cred, "/api/chat", q, &msgs)
	return msgs, err
}

func (c *Client) PostChat(ctx context.Context, cred Credential, content string) error {
	body, _ := json.Marshal(map[string]string{"content": content})
	return c.do(ctx, cred, http.MethodPost, "/api/chat", body, nil)
}

func (c *Client) Combat(ctx context.Context, cred Credential) (*CombatState, error) {
	var cs CombatState
	if err := c.getJSON(ctx, cred, "/api/combat", nil, &cs); err != nil {
		return nil, err
	}
	if cs.ID == "" {
		return nil, nil // no active combat
	}
	return &cs, nil
}

func (c *Client) Journals(ctx context.Context, cred Credential) ([]Journal, error) {
	var js []Journal
	err := c.getJSON(ctx, cred, "/api/journals", nil, &js)
	return js, err
}

func (c *Client) Journal(ctx context.Context, cred Credential, id string) (*Journal, error) {
	var j Journal
	if err := c.getJSON(ctx, cred, "/api/journals/"+url.PathEscape(id), nil, &j); err != nil {
		return nil, err
	}
	if j.ID == "" {
		return nil, errs.E(errs.NotFound, "journal %s", id)
	}
	return &j, nil
}

func (c *Client) CreateJournal(ctx context.Context, cred Credential, j Journal) (*Journal, error) {
	body, _ := json.Marshal(j)
	var out Journal
	if err := c.do(ctx, cred, http.MethodPost, "/api/journals", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateJournal(ctx context.Context, cred Credential, id string, patch map[string]any) error {
	body, err := json.Marshal(patch)
	if err != nil {
		return errs.Wrap(errs.Validation, "journal patch", err)
	}
	return c.do(ctx, cred, http.MethodPatch, "/api/journals/"+url.PathEscape(id), body, nil)
}

func (c *Client) DeleteJournal(ctx context.Context, cred Credential, id string) error {
	return c.do(ctx, cred, http.MethodDelete, "/api/journals/"+url.PathEscape(id), nil, nil)
}

// LaunchWorld and ShutdownWorld relay to the host's management surface; only
// the admin listener exposes them.
func (c *Client) LaunchWorld(ctx context.Context, worldID string) error {
	body, _ := json.Marshal(map[string]string{"world": worldID})
	return c.do(ctx, Credential{}, http.MethodPost, "/api/setup/launch", body, nil)
}

func (c *Client) ShutdownWorld(ctx context.Context) error {
	return c.do(ctx, Credential{}, http.MethodPost, "/api/setup/shutdown", nil, nil)
}

func (c *Client) getJSON(ctx context.Context, cred Credential, path string, q url.Values, out any) error {
	p := path
	if len(q) > 0 {
		p += "?" + q.Encode()
	}
	return c.do(ctx, cred, http.MethodGet, p, nil, out)
}

func (c *Client) do(ctx context.Context, cred Credential, method, path string, body []byte, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cred.Cookie != "" {
		req.AddCookie(&http.Cookie{Name: "session", Value: cred.Cookie})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errs.Wrap(errs.HostUnreachable, method+" "+path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errs.E(errs.Auth, "host denied %s %s", method, path)
	case resp.StatusCode == http.StatusNotFound:
		return errs.E(errs.NotFound, "%s", path)
	case resp.StatusCode >= 500:
		return errs.E(errs.HostUnreachable, "host returned %d for %s", resp.StatusCode, path)
	case resp.StatusCode >= 400:
		return errs.E(errs.Validation, "host returned %d for %s", resp.StatusCode, path)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 16<<20)).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
