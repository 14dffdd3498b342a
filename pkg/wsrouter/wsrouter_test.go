package wsrouter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/whiteboard/pkg/wsutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ping struct {
	Text string `json:"text"`
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, s)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func serve(t *testing.T, router *WSRouter) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		router.ServeConn(r.Context(), wsutils.NewThreadSafeWriter(conn))
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func TestServeConnDispatchesInOrder(t *testing.T) {
	rec := &recorder{}
	router := New()
	router.Use(func(next HandlerFunc[any]) HandlerFunc[any] {
		return func(ctx context.Context, conn *wsutils.ThreadSafeWriter, input any) error {
			rec.add("mw:" + GetMessageTypeFromCtx(ctx))
			return next(ctx, conn, input)
		}
	})
	Handle(router, "ping", func(ctx context.Context, conn *wsutils.ThreadSafeWriter, input ping) error {
		rec.add("ping:" + input.Text)
		return nil
	})
	Handle(router, "fail", func(ctx context.Context, conn *wsutils.ThreadSafeWriter, input ping) error {
		return errors.New("boom")
	})
	router.OnError(func(ctx context.Context, conn *wsutils.ThreadSafeWriter, err error) {
		rec.add("err:" + err.Error())
	})

	conn := serve(t, router)
	for _, msg := range []string{
		`{"type":"ping","payload":{"text":"a"}}`,
		`{"type":"nope","payload":{}}`,
		`not json`,
		`{"type":"fail","payload":{}}`,
		`{"type":"ping","payload":{"text":"b"}}`,
	} {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
	}

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 8 }, time.Second, 5*time.Millisecond)

	events := rec.snapshot()
	assert.Equal(t, "mw:ping", events[0])
	assert.Equal(t, "ping:a", events[1])
	assert.Contains(t, events[2], ErrUnknownMessageType.Error())
	assert.Contains(t, events[3], ErrInvalidMessage.Error())
	assert.Equal(t, "mw:fail", events[4])
	assert.Equal(t, "err:boom", events[5])
	assert.Equal(t, "mw:ping", events[6])
	assert.Equal(t, "ping:b", events[7])
}
