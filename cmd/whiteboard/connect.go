package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/spf13/viper"

	"github.com/sharetube/whiteboard/internal/client"
	"github.com/sharetube/whiteboard/internal/session"
)

// wsEndpoint derives the websocket URL from the server base URL.
func wsEndpoint(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server scheme %q", u.Scheme)
	}

	return u.JoinPath("api", "v1", "ws").String(), nil
}

// joinSession connects, joins roomKey and waits for the participant id.
func joinSession(ctx context.Context, logger *slog.Logger, roomKey string, width, height int) (*session.Session, error) {
	endpoint, err := wsEndpoint(viper.GetString(keyServer))
	if err != nil {
		return nil, err
	}

	ch, err := client.Connect(ctx, endpoint, client.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	s, err := session.New(ch, session.Config{
		RoomKey: roomKey,
		Name:    viper.GetString(keyName),
		Contact: viper.GetString(keyContact),
		Width:   width,
		Height:  height,
		Logger:  logger,
	})
	if err != nil {
		ch.Close()
		return nil, err
	}

	if err := s.Join(); err != nil {
		s.Close()
		return nil, err
	}

	id, err := s.WaitJoined(ctx)
	if err != nil {
		s.Close()
		return nil, err
	}
	logger.Debug("joined room", "room_key", roomKey, "participant_id", id)

	return s, nil
}
