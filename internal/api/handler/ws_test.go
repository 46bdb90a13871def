package handler

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"storechat/backend/internal/chathub"
	"storechat/backend/internal/models"
	"storechat/backend/internal/storage/storagetest"
)

func wsTestServer(t *testing.T, store *storagetest.MockStorage) (*Handler, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := newTestHandler(store)
	h.Hub = chathub.NewManagerService(store, zerolog.Nop())
	go h.Hub.Run()

	router := gin.New()
	router.GET("/ws", h.ServeWebSocket)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return h, srv
}

func dialWS(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	assert.NoError(t, err)
	return conn
}

func TestServeWebSocket_InitialSnapshotFirst(t *testing.T) {
	store := new(storagetest.MockStorage)
	store.On("GetUserByID", "u1").Return(&models.User{ID: "u1", Username: "u1"}, nil)
	store.On("CountConversationsForUser", "u1").Return(int64(1), nil)
	store.On("ListConversationsForUser", "u1").Return([]models.Conversation{{ID: "a_u1"}}, nil)
	store.On("TotalUnread", "u1").Return(2, nil)
	store.On("UpsertPresence", "u1", mock.Anything).Return(nil)

	h, srv := wsTestServer(t, store)
	token, err := h.issueJWT("u1")
	assert.NoError(t, err)

	conn := dialWS(t, srv, token)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first models.Emission
	assert.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "conversations", first.Type)
	assert.Equal(t, 2, first.TotalUnread)
	assert.Len(t, first.Conversations, 1)
}

// An immediate client disconnect must tear the session down cleanly; the
// handler goroutine still holds the send channel at that point and must not
// write to it once the hub has closed it.
func TestServeWebSocket_ImmediateDisconnect(t *testing.T) {
	store := new(storagetest.MockStorage)
	store.On("GetUserByID", "u1").Return(&models.User{ID: "u1", Username: "u1"}, nil)
	store.On("CountConversationsForUser", "u1").Return(int64(1), nil)
	store.On("ListConversationsForUser", "u1").Return([]models.Conversation{}, nil)
	store.On("TotalUnread", "u1").Return(0, nil)
	store.On("UpsertPresence", "u1", mock.Anything).Return(nil)

	h, srv := wsTestServer(t, store)
	token, err := h.issueJWT("u1")
	assert.NoError(t, err)

	conn := dialWS(t, srv, token)
	conn.Close()

	// Give the unregister/teardown path time to run; a write to the closed
	// send channel would panic and fail the run.
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, h.Hub.Clients["u1"])
}

func TestServeWebSocket_RejectsMissingToken(t *testing.T) {
	store := new(storagetest.MockStorage)
	_, srv := wsTestServer(t, store)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	assert.Error(t, err)
	if assert.NotNil(t, resp) {
		assert.Equal(t, 401, resp.StatusCode)
	}
}
