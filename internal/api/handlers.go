package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-lag/internal/chat"
	"github.com/npezzotti/go-lag/internal/database"
	"github.com/npezzotti/go-lag/internal/server"
	"github.com/npezzotti/go-lag/internal/store"
	"github.com/npezzotti/go-lag/internal/types"
)

type PushResponse struct {
	Key string `json:"key"`
}

func (s *GoChatApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *GoChatApp) writeError(w http.ResponseWriter, err error) {
	var errResp *ApiError
	switch {
	case errors.Is(err, database.ErrNotFound):
		errResp = NewNotFoundError()
	case errors.Is(err, database.ErrConflict):
		errResp = NewConflictError()
	case errors.Is(err, store.ErrInvalidPath), errors.Is(err, server.ErrEmptyMessage):
		errResp = NewBadRequestError()
	default:
		s.log.Printf("request failed: %v", err)
		errResp = NewInternalServerError(err)
	}

	s.writeJson(w, errResp.StatusCode, errResp)
}

func (s *GoChatApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.health.Ping(r.Context()); err != nil {
		s.log.Printf("health check: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *GoChatApp) getUserByUsername(w http.ResponseWriter, r *http.Request) {
	profile, err := s.profiles.GetProfileByUsername(r.Context(), r.PathValue("username"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, profile.User())
}

// listUsers returns the profiles named by ?ids=, or every profile except the
// caller's.
func (s *GoChatApp) listUsers(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var (
		profiles []database.Profile
		err      error
	)
	if r.URL.Query().Has("ids") {
		profiles, err = s.profiles.GetProfilesByIds(r.Context(), splitIds(r.URL.Query().Get("ids")))
	} else {
		profiles, err = s.profiles.ListProfiles(r.Context(), userId)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	users := make([]types.User, 0, len(profiles))
	for _, p := range profiles {
		users = append(users, p.User())
	}

	s.writeJson(w, http.StatusOK, users)
}

func (s *GoChatApp) putUser(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())
	if r.PathValue("id") != userId {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var u types.User
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil || u.Name == "" || u.Username == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	u.UserId = userId

	// profiles are written once, right after sign-up
	existing, err := s.profiles.GetProfilesByIds(r.Context(), []string{userId})
	if err != nil {
		s.writeError(w, err)
		return
	}
	if len(existing) > 0 {
		errResp := NewConflictError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.profiles.PutProfile(r.Context(), database.ProfileFromUser(u)); err != nil {
		s.writeError(w, err)
		return
	}

	s.cs.ProfilesChanged()
	w.WriteHeader(http.StatusNoContent)
}

func (s *GoChatApp) listChats(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	snap, err := s.cs.Snapshot(r.Context(), store.ChatsPath)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, snap.Filter(func(c store.Child) bool {
		return chat.IsParticipant(c.Key, userId)
	}))
}

// roomPath validates the {room} path value against the caller and returns
// the realtime path of the room.
func (s *GoChatApp) roomPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	userId, _ := UserId(r.Context())
	room := r.PathValue("room")

	if !chat.Canonical(room) {
		errResp := NewNotFoundError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return "", false
	}
	if !chat.IsParticipant(room, userId) {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return "", false
	}

	return store.RoomPath(room), true
}

func (s *GoChatApp) getChat(w http.ResponseWriter, r *http.Request) {
	path, ok := s.roomPath(w, r)
	if !ok {
		return
	}

	snap, err := s.cs.Snapshot(r.Context(), path)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, snap)
}

func (s *GoChatApp) pushMessage(w http.ResponseWriter, r *http.Request) {
	path, ok := s.roomPath(w, r)
	if !ok {
		return
	}
	userId, _ := UserId(r.Context())
	peer, ok := chat.Peer(r.PathValue("room"), userId)
	if !ok {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var msg types.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil ||
		msg.Content == "" || msg.SenderId != userId || msg.ReceiverId != peer {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = types.NowMillis()
	}

	key, err := s.cs.Push(r.Context(), path, msg)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusCreated, PushResponse{Key: key})
}

func (s *GoChatApp) deleteChat(w http.ResponseWriter, r *http.Request) {
	path, ok := s.roomPath(w, r)
	if !ok {
		return
	}

	if err := s.cs.Remove(r.Context(), path); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *GoChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(userId, conn, s.cs, s.log)
	go client.Serve()
}

func splitIds(raw string) []string {
	ids := make([]string, 0)
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}
