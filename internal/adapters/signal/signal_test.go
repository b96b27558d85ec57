package signal

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Trio/internal/app"
	"github.com/dkeye/Trio/internal/config"
	"github.com/dkeye/Trio/internal/envelope"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func testConfig() *config.Config {
	return &config.Config{
		ReadLimit:  65536,
		PingPeriod: time.Second,
		PongWait:   2 * time.Second,
		WriteWait:  time.Second,
		SendBuffer: 16,
		JoinRate:   config.JoinRateConfig{Limit: 2, Interval: time.Minute},
	}
}

func startServer(t *testing.T) (*app.Router, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := app.NewRouter(app.NewRegistry(), app.NewRoomManager())
	ctl := NewSignalWSController(router, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	engine := gin.New()
	engine.GET("/ws", func(c *gin.Context) { ctl.HandleSignal(ctx, c) })
	srv := httptest.NewServer(engine)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return router, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, raw string) {
	t.Helper()
	if err := ws.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func next(t *testing.T, ws *websocket.Conn) *envelope.Envelope {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	env, err := envelope.Decode(data)
	if err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return env
}

func TestSignalDiscardsMalformedAndKeepsConnection(t *testing.T) {
	_, url := startServer(t)
	ws := dial(t, url)

	send(t, ws, `not json`)
	send(t, ws, `{"type":"teleport"}`)
	send(t, ws, `{"type":"offer","description":{}}`)
	send(t, ws, `{"type":"join","roomId":"r","displayName":"alice"}`)

	if e := next(t, ws); e.Type != envelope.KindJoined || e.RoomID != "r" {
		t.Fatalf("got %+v", e)
	}
	if e := next(t, ws); e.Type != envelope.KindExistingMembers {
		t.Fatalf("got %+v", e)
	}
}

func TestSignalInvalidJoinAnswersError(t *testing.T) {
	_, url := startServer(t)
	ws := dial(t, url)

	send(t, ws, `{"type":"join","roomId":""}`)
	if e := next(t, ws); e.Type != envelope.KindError || e.Message == "" {
		t.Fatalf("got %+v", e)
	}
}

func TestSignalJoinRateLimit(t *testing.T) {
	_, url := startServer(t)
	ws := dial(t, url)

	send(t, ws, `{"type":"join","roomId":"one"}`)
	next(t, ws)
	next(t, ws)
	send(t, ws, `{"type":"join","roomId":"two"}`)
	next(t, ws)
	next(t, ws)
	send(t, ws, `{"type":"join","roomId":"three"}`)
	if e := next(t, ws); e.Type != envelope.KindError {
		t.Fatalf("got %+v", e)
	}
}

func TestSignalDisconnectLeavesRoom(t *testing.T) {
	router, url := startServer(t)
	a := dial(t, url)
	b := dial(t, url)

	send(t, a, `{"type":"join","roomId":"r","displayName":"alice"}`)
	next(t, a)
	next(t, a)
	send(t, b, `{"type":"join","roomId":"r","displayName":"bob"}`)
	next(t, b)
	existing := next(t, b)
	if len(existing.Members) != 1 || existing.Members[0].DisplayName != "alice" {
		t.Fatalf("existing %+v", existing.Members)
	}
	joined := next(t, a)
	if joined.Type != envelope.KindMemberJoined || joined.DisplayName != "bob" {
		t.Fatalf("got %+v", joined)
	}

	a.Close()
	left := next(t, b)
	if left.Type != envelope.KindMemberLeft || left.ID != existing.Members[0].ID {
		t.Fatalf("got %+v", left)
	}

	deadline := time.Now().Add(2 * time.Second)
	for router.Registry.Count() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("registry holds %d sessions", router.Registry.Count())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSignalKickedSessionIsDisconnected(t *testing.T) {
	router, url := startServer(t)
	ws := dial(t, url)
	send(t, ws, `{"type":"join","roomId":"r"}`)
	next(t, ws)
	next(t, ws)

	if n := router.Registry.CancelAll(); n != 1 {
		t.Fatalf("canceled %d sessions", n)
	}
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := ws.ReadMessage(); err == nil {
		t.Fatal("connection survived cancel")
	}
}
