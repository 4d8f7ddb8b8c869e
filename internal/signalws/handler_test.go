package signalws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	ws "nhooyr.io/websocket"

	"handoff/signal/internal/signaling"
)

func newTestServer(t *testing.T) (*httptest.Server, *signaling.Coordinator) {
	t.Helper()
	coord := signaling.New(signaling.Options{Shards: 2})
	srv := &Server{Coord: coord, ReadLimit: 4096, SendQueue: 8, WriteTimeout: time.Second}
	hs := httptest.NewServer(http.HandlerFunc(srv.HandleSignalWS))
	t.Cleanup(func() {
		hs.Close()
		coord.Close()
	})
	return hs, coord
}

func wsURL(hs *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(hs.URL, "http") + "/?" + query
}

func dial(t *testing.T, hs *httptest.Server, code, role string) *ws.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, _, err := ws.Dial(ctx, wsURL(hs, "code="+code+"&role="+role), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(ws.StatusNormalClosure, "test done") })
	return c
}

func send(t *testing.T, c *ws.Conn, frame string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, ws.MessageText, []byte(frame)))
}

func recv(t *testing.T, c *ws.Conn) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := c.Read(ctx)
	require.NoError(t, err)
	var m signaling.Message
	require.NoError(t, json.Unmarshal(data, &m))
	b, err := json.Marshal(m)
	require.NoError(t, err)
	return string(b)
}

func TestRejectsBadRequests(t *testing.T) {
	hs, _ := newTestServer(t)

	resp, err := http.Get(hs.URL + "/?role=creator")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(hs.URL + "/?code=ABC&role=creator")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode, "plain GET without upgrade")

	for _, q := range []string{"code=ABC", "code=ABC&role=admin"} {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, resp, err := ws.Dial(ctx, wsURL(hs, q), nil)
		cancel()
		require.Error(t, err, q)
		require.NotNil(t, resp, q)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestHandshakeOverWebSocket(t *testing.T) {
	hs, _ := newTestServer(t)

	creator := dial(t, hs, "ABC123", "creator")
	send(t, creator, `{"type":"offer","offer":"sdp-1"}`)
	require.Equal(t, `{"type":"offer-stored","code":"ABC123"}`, recv(t, creator))

	joiner := dial(t, hs, "ABC123", "joiner")
	require.Equal(t, `{"type":"offer","offer":"sdp-1"}`, recv(t, joiner))

	send(t, joiner, `{"type":"answer","answer":"sdp-2"}`)
	require.Equal(t, `{"type":"answer-stored"}`, recv(t, joiner))
	require.Equal(t, `{"type":"answer","answer":"sdp-2"}`, recv(t, creator))

	send(t, joiner, `{"type":"ping"}`)
	require.Equal(t, `{"type":"pong"}`, recv(t, joiner))
}

func TestJoinerBeforeCreatorGetsNotice(t *testing.T) {
	hs, _ := newTestServer(t)
	joiner := dial(t, hs, "EMPTY", "joiner")
	require.Equal(t, `{"type":"error","message":"Session not found or offer not yet available"}`, recv(t, joiner))
}

func TestSupersededSocketIsClosedNormally(t *testing.T) {
	hs, _ := newTestServer(t)
	first := dial(t, hs, "DUP", "creator")
	send(t, first, `{"type":"ping"}`)
	require.Equal(t, `{"type":"pong"}`, recv(t, first))

	second := dial(t, hs, "DUP", "creator")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := first.Read(ctx)
	var ce ws.CloseError
	require.True(t, errors.As(err, &ce), "expected close error, got %v", err)
	require.Equal(t, ws.StatusNormalClosure, ce.Code)
	require.Equal(t, "new connection from creator", ce.Reason)

	send(t, second, `{"type":"ping"}`)
	require.Equal(t, `{"type":"pong"}`, recv(t, second))
}

func TestMalformedFrameKeepsSocketOpen(t *testing.T) {
	hs, _ := newTestServer(t)
	creator := dial(t, hs, "BAD", "creator")

	send(t, creator, `{{{`)
	require.Equal(t, `{"type":"error","message":"Invalid message format"}`, recv(t, creator))
	send(t, creator, `{"type":"hello"}`)
	require.Equal(t, `{"type":"error","message":"Unknown message type"}`, recv(t, creator))
	send(t, creator, `{"type":"ping"}`)
	require.Equal(t, `{"type":"pong"}`, recv(t, creator))
}

func TestOfferSurvivesCreatorDisconnect(t *testing.T) {
	hs, coord := newTestServer(t)
	creator := dial(t, hs, "LATE", "creator")
	send(t, creator, `{"type":"offer","offer":{"type":"offer","sdp":"v=0"}}`)
	require.Equal(t, `{"type":"offer-stored","code":"LATE"}`, recv(t, creator))
	require.NoError(t, creator.Close(ws.StatusNormalClosure, "bye"))

	require.Eventually(t, func() bool {
		info, ok, err := coord.Inspect(context.Background(), "LATE")
		return err == nil && ok && !info.CreatorConnected
	}, 2*time.Second, 10*time.Millisecond)

	joiner := dial(t, hs, "LATE", "joiner")
	require.Equal(t, `{"type":"offer","offer":{"type":"offer","sdp":"v=0"}}`, recv(t, joiner))
}

func TestSweepClosesLiveSockets(t *testing.T) {
	clk := time.Now()
	now := func() time.Time { return clk }
	coord := signaling.New(signaling.Options{Shards: 1, MaxAge: time.Hour, Now: now})
	srv := &Server{Coord: coord}
	hs := httptest.NewServer(http.HandlerFunc(srv.HandleSignalWS))
	t.Cleanup(func() {
		hs.Close()
		coord.Close()
	})

	creator := dial(t, hs, "OLD", "creator")
	send(t, creator, `{"type":"ping"}`)
	require.Equal(t, `{"type":"pong"}`, recv(t, creator))
	joiner := dial(t, hs, "OLD", "joiner")
	require.Equal(t, `{"type":"error","message":"Session not found or offer not yet available"}`, recv(t, joiner))

	clk = clk.Add(2 * time.Hour)
	n, err := coord.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	for _, c := range []*ws.Conn{creator, joiner} {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, _, err := c.Read(ctx)
		cancel()
		var ce ws.CloseError
		require.True(t, errors.As(err, &ce), "expected close error, got %v", err)
		require.Equal(t, ws.StatusNormalClosure, ce.Code)
		require.Equal(t, "session expired", ce.Reason)
	}
}
