package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkaras/huddle/internal/app"
	"github.com/dkaras/huddle/internal/config"
	"github.com/dkaras/huddle/internal/core"
	"github.com/dkaras/huddle/internal/domain"
)

func testRouter(t *testing.T, dir *core.Directory, cfg *config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if cfg == nil {
		cfg = &config.Config{Mode: "test", StaticPath: "./web", Secret: "test-secret"}
	}
	coord := app.NewCoordinator(dir)
	return SetupRouter(context.Background(), cfg, coord, dir)
}

func getJSON(t *testing.T, r *gin.Engine, path string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestRoomExistsUnknownRoom(t *testing.T) {
	dir := core.NewDirectory()
	r := testRouter(t, dir, nil)

	code, body := getJSON(t, r, "/api/room-exists/nope")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"roomExists": false}, body)
}

func TestRoomExistsNotFull(t *testing.T) {
	dir := core.NewDirectory()
	p := dir.CreateRoom("alice", "conn-1")
	r := testRouter(t, dir, nil)

	code, body := getJSON(t, r, "/api/room-exists/"+string(p.RoomID))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"roomExists": true, "full": false}, body)
}

func TestRoomExistsFull(t *testing.T) {
	dir := core.NewDirectory()
	p := dir.CreateRoom("p0", "conn-0")
	for i := 1; i < core.MaxRoomMembers; i++ {
		_, err := dir.Join(p.RoomID, "p", domain.ConnectionID(fmt.Sprintf("conn-%d", i)))
		require.NoError(t, err)
	}
	r := testRouter(t, dir, nil)

	code, body := getJSON(t, r, "/api/room-exists/"+string(p.RoomID))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"roomExists": true, "full": true}, body)
}

func TestRoomExistsReflectsRemoval(t *testing.T) {
	dir := core.NewDirectory()
	p := dir.CreateRoom("alice", "conn-1")
	r := testRouter(t, dir, nil)

	_, ok := dir.RemoveByConn("conn-1")
	require.True(t, ok)

	code, body := getJSON(t, r, "/api/room-exists/"+string(p.RoomID))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"roomExists": false}, body)
}

func TestICEServersHandout(t *testing.T) {
	dir := core.NewDirectory()
	cfg := &config.Config{
		Mode:       "test",
		StaticPath: "./web",
		Secret:     "test-secret",
		ICEServers: []config.ICEServer{
			{URLs: []string{"stun:stun.example.org:3478"}},
			{URLs: []string{"turn:turn.example.org:3478"}, Username: "u", Credential: "c"},
		},
	}
	r := testRouter(t, dir, cfg)

	code, body := getJSON(t, r, "/api/ice-servers")
	assert.Equal(t, http.StatusOK, code)
	servers := body["iceServers"].([]any)
	require.Len(t, servers, 2)
	first := servers[0].(map[string]any)
	assert.Equal(t, []any{"stun:stun.example.org:3478"}, first["urls"])
	second := servers[1].(map[string]any)
	assert.Equal(t, "u", second["username"])
	assert.Equal(t, "c", second["credential"])
}
