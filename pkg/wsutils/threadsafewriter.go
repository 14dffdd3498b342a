package wsutils

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	closeWriteWait = 5 * time.Second
	// DefaultWriteWait bounds a single data write.
	DefaultWriteWait = 10 * time.Second
)

// ThreadSafeWriter serializes writes to a websocket connection. Reads are not
// guarded and must stay on a single goroutine.
type ThreadSafeWriter struct {
	*websocket.Conn
	sync.Mutex
	writeWait time.Duration
}

func NewThreadSafeWriter(conn *websocket.Conn) *ThreadSafeWriter {
	return &ThreadSafeWriter{
		Conn:      conn,
		writeWait: DefaultWriteWait,
	}
}

// SetWriteWait changes the deadline applied to each following write.
func (t *ThreadSafeWriter) SetWriteWait(d time.Duration) {
	t.Lock()
	defer t.Unlock()

	t.writeWait = d
}

func (t *ThreadSafeWriter) WriteJSON(val any) error {
	t.Lock()
	defer t.Unlock()

	if err := t.setDeadline(); err != nil {
		return err
	}

	return t.Conn.WriteJSON(val)
}

// WriteMessage fails once the peer has not accepted data for the write wait.
func (t *ThreadSafeWriter) WriteMessage(messageType int, data []byte) error {
	t.Lock()
	defer t.Unlock()

	if err := t.setDeadline(); err != nil {
		return err
	}

	return t.Conn.WriteMessage(messageType, data)
}

func (t *ThreadSafeWriter) setDeadline() error {
	if t.writeWait <= 0 {
		return t.Conn.SetWriteDeadline(time.Time{})
	}

	return t.Conn.SetWriteDeadline(time.Now().Add(t.writeWait))
}

// WriteClose sends a close frame with code and reason.
func (t *ThreadSafeWriter) WriteClose(code int, reason string) error {
	t.Lock()
	defer t.Unlock()

	return t.Conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(closeWriteWait))
}

func (t *ThreadSafeWriter) Close() error {
	return t.Conn.Close()
}
