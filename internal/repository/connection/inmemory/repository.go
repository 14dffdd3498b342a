package inmemory

import (
	"log/slog"
	"sync"

	"github.com/sharetube/whiteboard/internal/repository/connection"
	"github.com/sharetube/whiteboard/pkg/wsutils"
	"golang.org/x/exp/maps"
)

// repo maps live websocket connections to participant ids and back.
type repo struct {
	connList map[*wsutils.ThreadSafeWriter]string
	idList   map[string]*wsutils.ThreadSafeWriter
	mu       sync.RWMutex
	logger   *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		connList: make(map[*wsutils.ThreadSafeWriter]string),
		idList:   make(map[string]*wsutils.ThreadSafeWriter),
		logger:   logger.With("component", "connection.inmemory"),
	}
}

func (r *repo) Add(conn *wsutils.ThreadSafeWriter, participantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug("Add", "participant_id", participantID)
	if r.connList[conn] != "" || r.idList[participantID] != nil {
		r.logger.Info("Add", "error", connection.ErrAlreadyExists)
		return connection.ErrAlreadyExists
	}

	r.connList[conn] = participantID
	r.idList[participantID] = conn

	return nil
}

// RemoveByConn forgets conn and returns the participant it belonged to. The
// connection itself is left open.
func (r *repo) RemoveByConn(conn *wsutils.ThreadSafeWriter) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	participantID, ok := r.connList[conn]
	if !ok {
		r.logger.Debug("RemoveByConn", "error", connection.ErrNotFound)
		return "", connection.ErrNotFound
	}

	delete(r.connList, conn)
	delete(r.idList, participantID)

	r.logger.Debug("RemoveByConn", "participant_id", participantID)
	return participantID, nil
}

func (r *repo) GetConn(participantID string) (*wsutils.ThreadSafeWriter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.idList[participantID]
	if !ok {
		return nil, connection.ErrNotFound
	}

	return conn, nil
}

// Conns returns every registered connection, in no particular order.
func (r *repo) Conns() []*wsutils.ThreadSafeWriter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return maps.Keys(r.connList)
}

func (r *repo) ParticipantIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return maps.Keys(r.idList)
}
