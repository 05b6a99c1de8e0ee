package signal_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkaras/huddle/internal/adapters/signal"
	"github.com/dkaras/huddle/internal/app"
	"github.com/dkaras/huddle/internal/config"
	"github.com/dkaras/huddle/internal/core"
)

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func newSignalServer(t *testing.T) (*httptest.Server, *core.Directory) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := core.NewDirectory()
	coord := app.NewCoordinator(dir)
	ctrl := signal.NewSignalWSController(coord, &config.Config{ReadLimit: 32768})

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		ctrl.HandleSignal(context.Background(), c)
	})
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts, dir
}

func dial(t *testing.T, ts *httptest.Server) *wsClient {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(v any) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(v))
}

func (c *wsClient) recv() map[string]any {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := c.conn.ReadMessage()
	require.NoError(c.t, err)

	var m map[string]any
	require.NoError(c.t, json.Unmarshal(data, &m))
	return m
}

func (c *wsClient) recvType(typ string) map[string]any {
	c.t.Helper()
	ev := c.recv()
	require.Equal(c.t, typ, ev["type"], "unexpected event %v", ev)
	return ev
}

// connect dials and consumes the welcome event, returning the
// server-assigned connection id.
func connect(t *testing.T, ts *httptest.Server) (*wsClient, string) {
	t.Helper()
	c := dial(t, ts)
	ev := c.recvType("connected")
	id, ok := ev["connectionId"].(string)
	require.True(t, ok)
	require.NotEmpty(t, id)
	return c, id
}

func TestPingPong(t *testing.T) {
	ts, _ := newSignalServer(t)
	c, _ := connect(t, ts)

	c.send(map[string]any{"type": "ping"})
	c.recvType("pong")
}

func TestCreateAndJoinFlow(t *testing.T) {
	ts, dir := newSignalServer(t)

	host, _ := connect(t, ts)
	host.send(map[string]any{"type": "create-room", "identity": "alice"})
	roomID := host.recvType("room-id")["roomId"].(string)
	update := host.recvType("room-update")
	require.Len(t, update["members"].([]any), 1)

	guest, guestID := connect(t, ts)
	guest.send(map[string]any{"type": "join-room", "identity": "bob", "roomId": roomID})

	prepare := host.recvType("peer-prepare")
	assert.Equal(t, guestID, prepare["connectionId"])
	hostUpdate := host.recvType("room-update")
	assert.Len(t, hostUpdate["members"].([]any), 2)

	guestUpdate := guest.recvType("room-update")
	members := guestUpdate["members"].([]any)
	require.Len(t, members, 2)
	identities := []string{
		members[0].(map[string]any)["identity"].(string),
		members[1].(map[string]any)["identity"].(string),
	}
	assert.Equal(t, []string{"alice", "bob"}, identities)

	assert.Equal(t, 1, dir.RoomCount())
}

func TestSignalRelayRoundTrip(t *testing.T) {
	ts, _ := newSignalServer(t)

	host, hostID := connect(t, ts)
	host.send(map[string]any{"type": "create-room", "identity": "alice"})
	roomID := host.recvType("room-id")["roomId"].(string)
	host.recvType("room-update")

	guest, guestID := connect(t, ts)
	guest.send(map[string]any{"type": "join-room", "identity": "bob", "roomId": roomID})
	host.recvType("peer-prepare")
	host.recvType("room-update")
	guest.recvType("room-update")

	// Pre-existing member tells the joiner to initiate.
	host.send(map[string]any{"type": "init-connection", "targetConnectionId": guestID})
	begin := guest.recvType("begin-handshake")
	assert.Equal(t, hostID, begin["connectionId"])

	// Joiner sends an opaque offer back; it must arrive verbatim.
	offer := map[string]any{"kind": "offer", "sdp": "v=0 o=- 46117 2"}
	guest.send(map[string]any{
		"type":               "relay-signal",
		"targetConnectionId": hostID,
		"signal":             offer,
	})
	received := host.recvType("signal-received")
	assert.Equal(t, guestID, received["connectionId"])
	assert.Equal(t, offer, received["signal"])
}

func TestDisconnectBroadcastsUpdate(t *testing.T) {
	ts, dir := newSignalServer(t)

	host, _ := connect(t, ts)
	host.send(map[string]any{"type": "create-room", "identity": "alice"})
	roomID := host.recvType("room-id")["roomId"].(string)
	host.recvType("room-update")

	guest, _ := connect(t, ts)
	guest.send(map[string]any{"type": "join-room", "identity": "bob", "roomId": roomID})
	host.recvType("peer-prepare")
	host.recvType("room-update")
	guest.recvType("room-update")

	require.NoError(t, guest.conn.Close())

	update := host.recvType("room-update")
	members := update["members"].([]any)
	require.Len(t, members, 1)
	assert.Equal(t, "alice", members[0].(map[string]any)["identity"])

	// The guest's teardown already ran; the room stays with one member.
	assert.Equal(t, 1, dir.RoomCount())
}

func TestLeaveRoomClosesConnection(t *testing.T) {
	ts, dir := newSignalServer(t)

	host, _ := connect(t, ts)
	host.send(map[string]any{"type": "create-room", "identity": "alice"})
	host.recvType("room-id")
	host.recvType("room-update")

	host.send(map[string]any{"type": "leave-room"})

	// The server tears the socket down after an explicit leave.
	require.NoError(t, host.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, _, err := host.conn.ReadMessage(); err != nil {
			break
		}
	}

	require.Eventually(t, func() bool { return dir.RoomCount() == 0 }, 3*time.Second, 10*time.Millisecond)
}
