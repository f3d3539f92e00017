package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"huddle/internal/bootstrap"
	"huddle/internal/config"
	"huddle/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type harness struct {
	t   *testing.T
	db  *gorm.DB
	mr  *miniredis.Miniredis
	rdb *redis.Client
	rt  *bootstrap.Runtime
	app *fiber.App
}

func testConfig() *config.Config {
	return &config.Config{
		Port:           "0",
		Env:            "test",
		JWTSecret:      "test-secret-that-is-long-enough-123",
		JWTIssuer:      "huddle-api",
		JWTAudience:    "huddle-client",
		TokenTTLHours:  1,
		WSSendBuffer:   64,
		WSInboundRPS:   50,
		WSInboundBurst: 50,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	rt, err := bootstrap.Wire(testConfig(), db, rdb)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Notifier.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, rt.StartBackground(ctx))

	return &harness{t: t, db: db, mr: mr, rdb: rdb, rt: rt, app: rt.Server.App()}
}

func (h *harness) token(userID uint) string {
	h.t.Helper()
	tok, err := h.rt.Tokens.Sign(userID)
	require.NoError(h.t, err)
	return tok
}

// do sends a request with an optional JSON body and bearer token and
// decodes a JSON response into out when out is non-nil.
func (h *harness) do(method, path string, body any, token string, out any) *http.Response {
	h.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)
	if out != nil {
		defer resp.Body.Close()
		require.NoError(h.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

// listen serves the app on a loopback port and returns its address.
func (h *harness) listen() string {
	h.t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(h.t, err)
	go func() { _ = h.app.Listener(ln) }()
	h.t.Cleanup(func() { _ = h.app.ShutdownWithTimeout(time.Second) })
	return ln.Addr().String()
}

func (h *harness) dial(addr, token string) *websocket.Conn {
	h.t.Helper()
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/api/ws", header)
	require.NoError(h.t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	h.t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func sendFrame(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}
