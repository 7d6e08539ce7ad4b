package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-lag/internal/database"
	"github.com/npezzotti/go-lag/internal/server"
	"github.com/npezzotti/go-lag/internal/store"
	"github.com/npezzotti/go-lag/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck(t *testing.T) {
	tcases := []struct {
		name         string
		pingErr      error
		expectedCode int
		expectedBody string
	}{
		{name: "healthy", expectedCode: http.StatusOK, expectedBody: "OK"},
		{name: "unhealthy", pingErr: errors.New("connection refused"), expectedCode: http.StatusInternalServerError},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(t, nil)
			app.db.On("Ping").Return(tc.pingErr).Once()

			rr := app.do(http.MethodGet, "/healthz", nil, false)
			assert.Equal(t, tc.expectedCode, rr.Code)
			assert.Equal(t, tc.expectedBody, rr.Body.String())
		})
	}
}

func TestGetUserByUsername(t *testing.T) {
	tcases := []struct {
		name         string
		profile      database.Profile
		mockErr      error
		expectedCode int
	}{
		{
			name:         "found",
			profile:      database.Profile{UserId: "b", Name: "Bob", Username: "bob", Email: "bob@example.com"},
			expectedCode: http.StatusOK,
		},
		{name: "not found", mockErr: database.ErrNotFound, expectedCode: http.StatusNotFound},
		{name: "backend failure", mockErr: errors.New("boom"), expectedCode: http.StatusInternalServerError},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(t, nil)
			app.db.On("GetProfileByUsername", "bob").Return(tc.profile, tc.mockErr).Once()

			rr := app.do(http.MethodGet, "/api/users/by-username/bob", nil, false)
			assert.Equal(t, tc.expectedCode, rr.Code)

			if tc.expectedCode == http.StatusOK {
				var u types.User
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&u))
				assert.Equal(t, tc.profile.User(), u)
			}
		})
	}
}

func TestListUsers(t *testing.T) {
	bob := database.Profile{UserId: "b", Name: "Bob", Username: "bob"}
	carol := database.Profile{UserId: "c", Name: "Carol", Username: "carol"}

	t.Run("excludes caller", func(t *testing.T) {
		app := newTestApp(t, nil)
		app.db.On("ListProfiles", "a").Return([]database.Profile{bob, carol}, nil).Once()

		rr := app.do(http.MethodGet, "/api/users", nil, true)
		require.Equal(t, http.StatusOK, rr.Code)

		var users []types.User
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&users))
		assert.Equal(t, []types.User{bob.User(), carol.User()}, users)
	})

	t.Run("by ids", func(t *testing.T) {
		app := newTestApp(t, nil)
		app.db.On("GetProfilesByIds", []string{"c", "b"}).Return([]database.Profile{carol, bob}, nil).Once()

		rr := app.do(http.MethodGet, "/api/users?ids=c,b,,c", nil, true)
		require.Equal(t, http.StatusOK, rr.Code)

		var users []types.User
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&users))
		assert.Len(t, users, 2)
		app.db.AssertExpectations(t)
	})

	t.Run("empty list encodes as array", func(t *testing.T) {
		app := newTestApp(t, nil)
		app.db.On("ListProfiles", "a").Return(nil, nil).Once()

		rr := app.do(http.MethodGet, "/api/users", nil, true)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "[]\n", rr.Body.String())
	})

	t.Run("requires auth", func(t *testing.T) {
		app := newTestApp(t, nil)

		rr := app.do(http.MethodGet, "/api/users", nil, false)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestPutUser(t *testing.T) {
	tcases := []struct {
		name         string
		path         string
		body         any
		callsBackend bool
		existing     []database.Profile
		lookupErr    error
		mockErr      error
		expectedCode int
	}{
		{
			name:         "writes own profile",
			path:         "/api/users/a",
			body:         types.User{Name: "Alice", Username: "alice", Email: "alice@example.com"},
			callsBackend: true,
			expectedCode: http.StatusNoContent,
		},
		{
			name:         "username taken",
			path:         "/api/users/a",
			body:         types.User{Name: "Alice", Username: "alice", Email: "alice@example.com"},
			callsBackend: true,
			mockErr:      database.ErrConflict,
			expectedCode: http.StatusConflict,
		},
		{
			name:         "profile already exists",
			path:         "/api/users/a",
			body:         types.User{Name: "Alice", Username: "alice2"},
			existing:     []database.Profile{{UserId: "a", Name: "Alice", Username: "alice"}},
			expectedCode: http.StatusConflict,
		},
		{
			name:         "lookup failure",
			path:         "/api/users/a",
			body:         types.User{Name: "Alice", Username: "alice"},
			lookupErr:    errors.New("connection refused"),
			expectedCode: http.StatusInternalServerError,
		},
		{
			name:         "other user's profile",
			path:         "/api/users/b",
			body:         types.User{Name: "Alice", Username: "alice"},
			expectedCode: http.StatusForbidden,
		},
		{
			name:         "missing username",
			path:         "/api/users/a",
			body:         types.User{Name: "Alice"},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "invalid json",
			path:         "/api/users/a",
			body:         "{",
			expectedCode: http.StatusBadRequest,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(t, nil)
			if tc.callsBackend || tc.existing != nil || tc.lookupErr != nil {
				app.db.On("GetProfilesByIds", []string{"a"}).Return(tc.existing, tc.lookupErr).Once()
			}
			if tc.callsBackend {
				app.db.On("PutProfile", database.Profile{
					UserId:   "a",
					Name:     "Alice",
					Username: "alice",
					Email:    "alice@example.com",
				}).Return(tc.mockErr).Once()
			}

			rr := app.do(http.MethodPut, tc.path, tc.body, true)
			assert.Equal(t, tc.expectedCode, rr.Code)
			app.db.AssertExpectations(t)
		})
	}
}

func TestListChats_FiltersByParticipant(t *testing.T) {
	app := newTestApp(t, nil)
	app.db.On("ListRooms").Return([]string{"a-b", "b-c", "a-c"}, nil).Once()

	rr := app.do(http.MethodGet, "/api/chats", nil, true)
	require.Equal(t, http.StatusOK, rr.Code)

	var snap store.Snapshot
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&snap))
	assert.Equal(t, store.ChatsPath, snap.Path)
	assert.Equal(t, []string{"a-b", "a-c"}, snap.Keys())
}

func TestGetChat(t *testing.T) {
	tcases := []struct {
		name         string
		room         string
		expectedCode int
	}{
		{name: "participant", room: "a-b", expectedCode: http.StatusOK},
		{name: "not a participant", room: "b-c", expectedCode: http.StatusForbidden},
		{name: "malformed room", room: "abc", expectedCode: http.StatusNotFound},
		{name: "reversed room", room: "b-a", expectedCode: http.StatusNotFound},
		{name: "self room", room: "a-a", expectedCode: http.StatusNotFound},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(t, nil)
			app.db.On("GetMessages", "a-b").Return([]database.Message{
				{Key: "k1", RoomId: "a-b", SenderId: "a", ReceiverId: "b", Content: "hi", Timestamp: 1},
			}, nil).Maybe()

			rr := app.do(http.MethodGet, "/api/chats/"+tc.room, nil, true)
			assert.Equal(t, tc.expectedCode, rr.Code)

			if tc.expectedCode == http.StatusOK {
				var snap store.Snapshot
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&snap))
				assert.Equal(t, store.RoomPath("a-b"), snap.Path)
				assert.Equal(t, []string{"k1"}, snap.Keys())
				assert.Equal(t, "hi", snap.Messages()[0].Content)
			}
		})
	}
}

func TestPushMessage(t *testing.T) {
	valid := types.Message{SenderId: "a", ReceiverId: "b", Content: "hello", Timestamp: 42}

	tcases := []struct {
		name         string
		room         string
		body         any
		callsBackend bool
		mockErr      error
		expectedCode int
	}{
		{name: "stores message", room: "a-b", body: valid, callsBackend: true, expectedCode: http.StatusCreated},
		{name: "write failure", room: "a-b", body: valid, callsBackend: true, mockErr: errors.New("disk full"), expectedCode: http.StatusInternalServerError},
		{name: "empty content", room: "a-b", body: types.Message{SenderId: "a", ReceiverId: "b"}, expectedCode: http.StatusBadRequest},
		{name: "spoofed sender", room: "a-b", body: types.Message{SenderId: "b", ReceiverId: "a", Content: "x"}, expectedCode: http.StatusBadRequest},
		{name: "wrong receiver", room: "a-b", body: types.Message{SenderId: "a", ReceiverId: "c", Content: "x"}, expectedCode: http.StatusBadRequest},
		{name: "foreign room", room: "b-c", body: valid, expectedCode: http.StatusForbidden},
		{name: "reversed room", room: "z-a", body: types.Message{SenderId: "a", ReceiverId: "z", Content: "x"}, expectedCode: http.StatusNotFound},
		{name: "self room", room: "a-a", body: types.Message{SenderId: "a", ReceiverId: "a", Content: "x"}, expectedCode: http.StatusNotFound},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(t, nil)
			if tc.callsBackend {
				app.db.On("CreateMessage", mock.MatchedBy(func(m database.Message) bool {
					return m.RoomId == "a-b" && m.Content == "hello" && m.Timestamp == 42 && m.Key != ""
				})).Return(tc.mockErr).Once()
			}

			rr := app.do(http.MethodPost, "/api/chats/"+tc.room, tc.body, true)
			assert.Equal(t, tc.expectedCode, rr.Code)
			app.db.AssertExpectations(t)

			if tc.expectedCode == http.StatusCreated {
				var resp PushResponse
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
				assert.NotEmpty(t, resp.Key)
			}
		})
	}
}

func TestPushMessage_DefaultsTimestamp(t *testing.T) {
	app := newTestApp(t, nil)
	before := types.NowMillis()
	app.db.On("CreateMessage", mock.MatchedBy(func(m database.Message) bool {
		return m.Timestamp >= before
	})).Return(nil).Once()

	rr := app.do(http.MethodPost, "/api/chats/a-b", types.Message{SenderId: "a", ReceiverId: "b", Content: "hi"}, true)
	assert.Equal(t, http.StatusCreated, rr.Code)
	app.db.AssertExpectations(t)
}

func TestDeleteChat(t *testing.T) {
	app := newTestApp(t, nil)
	app.db.On("DeleteRoom", "a-b").Return(nil).Once()

	rr := app.do(http.MethodDelete, "/api/chats/a-b", nil, true)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = app.do(http.MethodDelete, "/api/chats/b-c", nil, true)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = app.do(http.MethodDelete, "/api/chats/b-a", nil, true)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	app.db.AssertExpectations(t)
}

func Test_splitIds(t *testing.T) {
	tcases := []struct {
		raw      string
		expected []string
	}{
		{raw: "", expected: []string{}},
		{raw: "a", expected: []string{"a"}},
		{raw: "a, b,,a", expected: []string{"a", "b"}},
	}

	for _, tc := range tcases {
		assert.Equal(t, tc.expected, splitIds(tc.raw), "splitIds(%q)", tc.raw)
	}
}

func TestServeWs_SubscribeChats(t *testing.T) {
	app := newTestApp(t, nil)
	app.db.On("ListRooms").Return([]string{"a-b", "b-c"}, nil)
	app.runChatServer(t)

	srv := httptest.NewServer(app.Handler())
	t.Cleanup(srv.Close)

	header := http.Header{}
	header.Set(authorizationHeader, bearerPrefix+testToken)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.WriteJSON(server.ClientMessage{
		BaseMessage: server.BaseMessage{Id: 7},
		Subscribe:   &server.Subscribe{Path: store.ChatsPath},
	}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var ack server.ServerMessage
	require.NoError(t, conn.ReadJSON(&ack))
	require.NotNil(t, ack.Response)
	assert.Equal(t, 7, ack.Id)
	assert.Equal(t, http.StatusOK, ack.Response.ResponseCode)

	var snap server.ServerMessage
	require.NoError(t, conn.ReadJSON(&snap))
	require.NotNil(t, snap.Snapshot)
	assert.Equal(t, []string{"a-b"}, snap.Snapshot.Keys())
}

func TestServeWs_RequiresAuth(t *testing.T) {
	app := newTestApp(t, nil)

	srv := httptest.NewServer(app.Handler())
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
