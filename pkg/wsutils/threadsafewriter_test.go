package wsutils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteMessageTimesOutOnStalledPeer(t *testing.T) {
	release := make(chan struct{})
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		// never reads
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	w := NewThreadSafeWriter(conn)
	w.SetWriteWait(100 * time.Millisecond)

	payload := make([]byte, 1<<20)
	start := time.Now()
	for i := 0; i < 1024 && err == nil; i++ {
		err = w.WriteMessage(websocket.BinaryMessage, payload)
	}

	require.Error(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
}
