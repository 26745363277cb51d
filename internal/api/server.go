// Package api is the bridge's HTTP boundary. Thin by design: handlers
// validate the token and the payload, then delegate to the session store,
// adapter registry, dispatcher and reconciler snapshot.
package api

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	"sheetbridge.dev/internal/adapter"
	"sheetbridge.dev/internal/dispatch"
	"sheetbridge.dev/internal/errs"
	"sheetbridge.dev/internal/host"
	"sheetbridge.dev/internal/reconcile"
	"sheetbridge.dev/internal/session"
)

// hostClient is the slice of the host client the API calls directly; the
// dispatcher carries its own.
type hostClient interface {
	Login(ctx context.Context, username, password string) (host.Credential, error)
	Actors(ctx context.Context, cred host.Credential) ([]host.RawActor, error)
	Actor(ctx context.Context, cred host.Credential, id string) (*host.RawActor, error)
	DeleteActor(ctx context.Context, cred host.Credential, id string) error
	UpdateActorField(ctx context.Context, cred host.Credential, id, path string, value any) error
	PostChat(ctx context.Context, cred host.Credential, content string) error
	Journals(ctx context.Context, cred host.Credential) ([]host.Journal, error)
	Journal(ctx context.Context, cred host.Credential, id string) (*host.Journal, error)
	CreateJournal(ctx context.Context, cred host.Credential, j host.Journal) (*host.Journal, error)
	UpdateJournal(ctx context.Context, cred host.Credential, id string, patch map[string]any) error
	DeleteJournal(ctx context.Context, cred host.Credential, id string) error
}

type socketHub interface {
	Open(token string, cred host.Credential)
	Close(token string)
	Authenticated(token string) bool
}

type Server struct {
	host     hostClient
	sessions *session.Store
	registry *adapter.Registry
	dispatch *dispatch.Dispatcher
	sockets  socketHub
	snapshot func() *reconcile.Snapshot

	debugLevel string
	log        *log.Logger
	schemas    *schemas
}

func NewServer(h hostClient, sessions *session.Store, registry *adapter.Registry, d *dispatch.Dispatcher, sockets socketHub, snapshot func() *reconcile.Snapshot, debugLevel string, logger *log.Logger) *Server {
	return &Server{
		host:       h,
		sessions:   sessions,
		registry:   registry,
		dispatch:   d,
		sockets:    sockets,
		snapshot:   snapshot,
		debugLevel: debugLevel,
		log:        logger,
		schemas:    compileSchemas(),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)
	mux.HandleFunc("GET /status", s.handleStatus)

	mux.HandleFunc("GET /actors", s.handleActors)
	mux.HandleFunc("GET /actors/{id}", s.handleActor)
	mux.HandleFunc("DELETE /actors/{id}", s.handleActorDelete)
	mux.HandleFunc("POST /actors/{id}/roll", s.handleRoll)
	mux.HandleFunc("POST /actors/{id}/update", s.handleActorUpdate)

	mux.HandleFunc("GET /actors/{id}/items", s.handleItemsGet)
	mux.HandleFunc("POST /actors/{id}/items", s.mutationHandler(dispatch.KindItem, dispatch.OpCreate))
	mux.HandleFunc("PUT /actors/{id}/items", s.mutationHandler(dispatch.KindItem, dispatch.OpUpdate))
	mux.HandleFunc("DELETE /actors/{id}/items", s.handleItemDelete)

	mux.HandleFunc("POST /actors/{id}/effects", s.mutationHandler(dispatch.KindEffect, dispatch.OpCreate))
	mux.HandleFunc("PUT /actors/{id}/effects", s.mutationHandler(dispatch.KindEffect, dispatch.OpUpdate))
	mux.HandleFunc("DELETE /actors/{id}/effects", s.handleEffectDelete)
	mux.HandleFunc("POST /actors/{id}/effects/toggle", s.handleEffectToggle)

	mux.HandleFunc("GET /journals", s.handleJournals)
	mux.HandleFunc("POST /journals", s.handleJournalCreate)
	mux.HandleFunc("GET /journals/{id}", s.handleJournal)
	mux.HandleFunc("PATCH /journals/{id}", s.handleJournalUpdate)
	mux.HandleFunc("DELETE /journals/{id}", s.handleJournalDelete)

	return mux
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

func (s *Server) requireSession(r *http.Request) (*session.Session, error) {
	return s.sessions.Validate(bearer(r))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeErr(w http.ResponseWriter, err error) {
	writeJSON(w, errs.HTTPStatus(err), map[string]any{
		"success": false,
		"error":   err.Error(),
	})
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, 1<<20))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.writeErr(w, errs.Wrap(errs.Validation, "read body", err))
		return
	}
	if err := validateBody(s.schemas.login, body); err != nil {
		s.writeErr(w, err)
		return
	}
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	_ = json.Unmarshal(body, &req)

	cred, err := s.host.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		// The host's own rejection reason goes back verbatim; the client
		// clears the password field on its side.
		s.writeErr(w, err)
		return
	}

	snap := s.snapshot()
	token, err := s.sessions.Create(cred, cred.UserID, snap.WorldID)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.sockets.Open(token, cred)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearer(r)
	if token != "" {
		s.sockets.Close(token)
		s.sessions.Revoke(token)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleStatus works without a token; isAuthenticated then simply reads
// false. Reads only the snapshot, never the host.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot()

	authed := false
	if token := bearer(r); token != "" {
		if _, err := s.sessions.Validate(token); err == nil {
			authed = s.sockets.Authenticated(token)
		}
	}

	status := "inactive"
	if snap.Active {
		status = "active"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"connected": snap.Active,
		"step":      snap.Step,
		"system": map[string]any{
			"status":     status,
			"world":      snap.WorldID,
			"worldTitle": snap.WorldTitle,
			"systemId":   snap.SystemID,
		},
		"users":           snap.Users,
		"isAuthenticated": authed,
		"appVersion":      snap.AppVersion,
		"shutdown":        snap.ShutdownDetected,
		"debug":           map[string]any{"level": s.debugLevel},
	})
}

func (s *Server) adapterFor() adapter.Adapter {
	return s.registry.For(s.snapshot().SystemID)
}

func (s *Server) handleActors(w http.ResponseWriter, r *http.Request) {
	sess, err := s.requireSession(r)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	raw, err := s.host.Actors(r.Context(), sess.Credential)
	if err != nil {
		// A 401 here happens naturally while the host is still confirming
		// the session; report an empty list, not an error.
		if errs.Is(err, errs.Auth) {
			writeJSON(w, http.StatusOK, []any{})
			return
		}
		s.writeErr(w, err)
		return
	}

	a := s.adapterFor()
	sheets := make([]*adapter.ActorSheet, 0, len(raw))
	for i := range raw {
		sheet, err := a.NormalizeActor(&raw[i])
		if err != nil {
			continue // corrupt record; skip, keep the list usable
		}
		sheets = append(sheets, sheet)
	}
	writeJSON(w, http.StatusOK, sheets)
}

func (s *Server) handleActor(w http.ResponseWriter, r *http.Request) {
	sess, err := s.requireSession(r)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	raw, err := s.host.Actor(r.Context(), sess.Credential, r.PathValue("id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	sheet, err := s.adapterFor().NormalizeActor(raw)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sheet)
}

func (s *Server) handleActorDelete(w http.ResponseWriter, r *http.Request) {
	sess, err := s.requireSession(r)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if err := s.host.DeleteActor(r.Context(), sess.Credential, r.PathValue("id")); err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleRoll(w http.ResponseWriter, r *http.Request) {
	sess, err := s.requireSession(r)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	body, err := readBody(r)
	if err != nil {
		s.writeErr(w, errs.Wrap(errs.Validation, "read body", err))
		return
	}
	if err := validateBody(s.schemas.roll, body); err != nil {
		s.writeErr(w, err)
		return
	}
	var req struct {
		Type    adapter.RollKind    `json:"type"`
		Key     string              `json:"key"`
		Options adapter.RollOptions `json:"options"`
	}
	_ = json.Unmarshal(body, &req)

	raw, err := s.host.Actor(r.Context(), sess.Credential, r.PathValue("id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	spec := s.adapterFor().ComputeRoll(raw, req.Type, req.Key, req.Options)
	if spec == nil {
		// Unresolvable ability/item means "no roll possible", not a failure.
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "roll not possible"})
		return
	}

	// Echo the roll into the host's chat; losing the echo does not fail the
	// roll itself.
	if err := s.host.PostChat(r.Context(), sess.Credential, spec.Label+": "+spec.Formula); err != nil && s.log != nil {
		s.log.Printf("roll chat echo: %v", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"label":   spec.Label,
		"result":  spec.Formula,
	})
}

func (s *Server) handleActorUpdate(w http.ResponseWriter, r *http.Request) {
	sess, err := s.requireSession(r)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	body, err := readBody(r)
	if err != nil {
		s.writeErr(w, errs.Wrap(errs.Validation, "read body", err))
		return
	}
	if err := validateBody(s.schemas.fieldUpdate, body); err != nil {
		s.writeErr(w, err)
		return
	}
	var patch map[string]any
	_ = json.Unmarshal(body, &patch)
	for path, value := range patch {
		if err := s.host.UpdateActorField(r.Context(), sess.Credential, r.PathValue("id"), path, value); err != nil {
			s.writeErr(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleItemsGet(w http.ResponseWriter, r *http.Request) {
	sess, err := s.requireSession(r)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	raw, err := s.host.Actor(r.Context(), sess.Credential, r.PathValue("id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	sheet, err := s.adapterFor().NormalizeActor(raw)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sheet.Items)
}

// mutationHandler builds a handler that schema-checks the body and hands it
// to the dispatcher.
func (s *Server) mutationHandler(kind dispatch.DocKind, op dispatch.Op) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.requireSession(r)
		if err != nil {
			s.writeErr(w, err)
			return
		}
		body, err := readBody(r)
		if err != nil {
			s.writeErr(w, errs.Wrap(errs.Validation, "read body", err))
			return
		}
		schema := s.schemas.item
		if kind == dispatch.KindEffect {
			schema = s.schemas.effect
		}
		if err := validateBody(schema, body); err != nil {
			s.writeErr(w, err)
			return
		}
		out, err := s.dispatch.Mutate(r.Context(), sess.Credential, r.PathValue("id"), kind, op, body)
		if err != nil {
			s.writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": out})
	}
}

func (s *Server) handleItemDelete(w http.ResponseWriter, r *http.Request) {
	s.deleteByQuery(w, r, dispatch.KindItem, "itemId")
}

func (s *Server) handleEffectDelete(w http.ResponseWriter, r *http.Request) {
	s.deleteByQuery(w, r, dispatch.KindEffect, "effectId")
}

func (s *Server) deleteByQuery(w http.ResponseWriter, r *http.Request, kind dispatch.DocKind, param string) {
	sess, err := s.requireSession(r)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	id := r.URL.Query().Get(param)
	if id == "" {
		s.writeErr(w, errs.E(errs.Validation, "missing %s query param", param))
		return
	}
	payload, _ := json.Marshal(map[string]string{"id": id})
	out, err := s.dispatch.Mutate(r.Context(), sess.Credential, r.PathValue("id"), kind, dispatch.OpDelete, payload)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": out})
}

func (s *Server) handleEffectToggle(w http.ResponseWriter, r *http.Request) {
	sess, err := s.requireSession(r)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	body, err := readBody(r)
	if err != nil {
		s.writeErr(w, errs.Wrap(errs.Validation, "read body", err))
		return
	}
	if err := validateBody(s.schemas.effect, body); err != nil {
		s.writeErr(w, err)
		return
	}
	out, err := s.dispatch.Mutate(r.Context(), sess.Credential, r.PathValue("id"), dispatch.KindEffect, dispatch.OpToggle, body)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": out})
}

func (s *Server) isGM(userID string) bool {
	for _, u := range s.snapshot().Users {
		if u.ID == userID {
			return u.IsGM()
		}
	}
	return false
}

func canRead(j *host.Journal, userID string, gm bool) bool {
	if gm || len(j.Ownership) == 0 {
		return true
	}
	if lvl, ok := j.Ownership[userID]; ok {
		return lvl >= host.OwnershipObserver
	}
	return j.Ownership["default"] >= host.OwnershipObserver
}

func canWrite(j *host.Journal, userID string, gm bool) bool {
	if gm {
		return true
	}
	if lvl, ok := j.Ownership[userID]; ok {
		return lvl >= host.OwnershipOwner
	}
	return j.Ownership["default"] >= host.OwnershipOwner
}

func (s *Server) handleJournals(w http.ResponseWriter, r *http.Request) {
	sess, err := s.requireSession(r)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	all, err := s.host.Journals(r.Context(), sess.Credential)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	gm := s.isGM(sess.UserID)
	visible := make([]host.Journal, 0, len(all))
	for i := range all {
		if canRead(&all[i], sess.UserID, gm) {
			visible = append(visible, all[i])
		}
	}
	writeJSON(w, http.StatusOK, visible)
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	sess, err := s.requireSession(r)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	j, err := s.host.Journal(r.Context(), sess.Credential, r.PathValue("id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if !canRead(j, sess.UserID, s.isGM(sess.UserID)) {
		s.writeErr(w, errs.E(errs.NotFound, "journal %s", j.ID))
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (s *Server) handleJournalCreate(w http.ResponseWriter, r *http.Request) {
	sess, err := s.requireSession(r)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	body, err := readBody(r)
	if err != nil {
		s.writeErr(w, errs.Wrap(errs.Validation, "read body", err))
		return
	}
	if err := validateBody(s.schemas.journal, body); err != nil {
		s.writeErr(w, err)
		return
	}
	var j host.Journal
	_ = json.Unmarshal(body, &j)
	if j.Ownership == nil {
		j.Ownership = map[string]int{sess.UserID: host.OwnershipOwner}
	}
	out, err := s.host.CreateJournal(r.Context(), sess.Credential, j)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleJournalUpdate(w http.ResponseWriter, r *http.Request) {
	sess, err := s.requireSession(r)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	j, err := s.host.Journal(r.Context(), sess.Credential, r.PathValue("id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if !canWrite(j, sess.UserID, s.isGM(sess.UserID)) {
		s.writeErr(w, errs.E(errs.Auth, "not an owner of journal %s", j.ID))
		return
	}
	body, err := readBody(r)
	if err != nil {
		s.writeErr(w, errs.Wrap(errs.Validation, "read body", err))
		return
	}
	var patch map[string]any
	if err := json.Unmarshal(body, &patch); err != nil {
		s.writeErr(w, errs.Wrap(errs.Validation, "body is not JSON", err))
		return
	}
	if err := s.host.UpdateJournal(r.Context(), sess.Credential, j.ID, patch); err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleJournalDelete(w http.ResponseWriter, r *http.Request) {
	sess, err := s.requireSession(r)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	j, err := s.host.Journal(r.Context(), sess.Credential, r.PathValue("id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if !canWrite(j, sess.UserID, s.isGM(sess.UserID)) {
		s.writeErr(w, errs.E(errs.Auth, "not an owner of journal %s", j.ID))
		return
	}
	if err := s.host.DeleteJournal(r.Context(), sess.Credential, j.ID); err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
