package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sharetube/whiteboard/internal/protocol"
	"github.com/sharetube/whiteboard/internal/service/whiteboard"
	"github.com/sharetube/whiteboard/pkg/ctxlogger"
	"github.com/sharetube/whiteboard/pkg/wsutils"
)

func (c controller) joinedState(ctx context.Context) (*connState, error) {
	state := c.getConnStateFromCtx(ctx)
	if !state.joined() {
		return nil, ErrNotJoined
	}

	return state, nil
}

func (c controller) handleJoinRoom(ctx context.Context, conn *wsutils.ThreadSafeWriter, input protocol.JoinRoom) error {
	state := c.getConnStateFromCtx(ctx)
	if state.joined() {
		return ErrAlreadyJoined
	}

	if err := c.validate.Check(input); err != nil {
		return err
	}

	joinRoomResp, err := c.whiteboardService.JoinRoom(ctx, &whiteboard.JoinRoomParams{
		Conn:                conn,
		RoomKey:             input.RoomKey,
		Name:                input.ParticipantName,
		Contact:             input.ParticipantContact,
		ResumeParticipantID: input.ResumeParticipantID,
	})
	if err != nil {
		return fmt.Errorf("failed to join room: %w", err)
	}

	state.participantID = joinRoomResp.ParticipantID
	state.roomKey = input.RoomKey

	c.logger.InfoContext(ctx, "participant joined",
		"room_key", input.RoomKey,
		"participant_id", joinRoomResp.ParticipantID,
		"resumed", joinRoomResp.Resumed,
	)

	if err := c.writeToConn(ctx, conn, protocol.UserCreated{ParticipantID: joinRoomResp.ParticipantID}); err != nil {
		return fmt.Errorf("failed to write user created: %w", err)
	}

	return nil
}

func (c controller) handleDraw(ctx context.Context, _ *wsutils.ThreadSafeWriter, input protocol.Draw) error {
	state, err := c.joinedState(ctx)
	if err != nil {
		return err
	}

	if err := c.validate.Check(input); err != nil {
		return err
	}

	drawResp, err := c.whiteboardService.Draw(ctx, &whiteboard.DrawParams{
		SenderID:      state.participantID,
		JoinedRoomKey: state.roomKey,
		Stroke:        input.StrokeEvent(),
	})
	if err != nil {
		if errors.Is(err, whiteboard.ErrRoomMismatch) {
			c.logger.DebugContext(ctx, "dropping draw for another room", "room_key", input.RoomKey)
			return nil
		}
		return fmt.Errorf("failed to draw: %w", err)
	}

	input.ParticipantID = state.participantID

	return c.broadcast(ctx, drawResp.Conns, input)
}

func (c controller) handleEndStroke(ctx context.Context, _ *wsutils.ThreadSafeWriter, input protocol.EndStroke) error {
	state, err := c.joinedState(ctx)
	if err != nil {
		return err
	}

	endStrokeResp, err := c.whiteboardService.EndStroke(ctx, &whiteboard.EndStrokeParams{
		SenderID:      state.participantID,
		JoinedRoomKey: state.roomKey,
		RoomKey:       input.RoomKey,
	})
	if err != nil {
		if errors.Is(err, whiteboard.ErrRoomMismatch) {
			c.logger.DebugContext(ctx, "dropping end of stroke for another room", "room_key", input.RoomKey)
			return nil
		}
		return fmt.Errorf("failed to end stroke: %w", err)
	}

	input.ParticipantID = state.participantID

	return c.broadcast(ctx, endStrokeResp.Conns, input)
}

func (c controller) handleClearWhiteboard(ctx context.Context, _ *wsutils.ThreadSafeWriter, input protocol.ClearWhiteboard) error {
	state, err := c.joinedState(ctx)
	if err != nil {
		return err
	}

	clearResp, err := c.whiteboardService.ClearWhiteboard(ctx, &whiteboard.ClearWhiteboardParams{
		SenderID:      state.participantID,
		JoinedRoomKey: state.roomKey,
		RoomKey:       input.RoomKey,
	})
	if err != nil {
		if errors.Is(err, whiteboard.ErrRoomMismatch) {
			c.logger.DebugContext(ctx, "dropping clear for another room", "room_key", input.RoomKey)
			return nil
		}
		return fmt.Errorf("failed to clear whiteboard: %w", err)
	}

	return c.broadcast(ctx, clearResp.Conns, input)
}

// handleSaveWhiteboard always answers the sender, with whiteboardSaved or
// whiteboardSaveError.
func (c controller) handleSaveWhiteboard(ctx context.Context, conn *wsutils.ThreadSafeWriter, input protocol.SaveWhiteboard) error {
	state, err := c.joinedState(ctx)
	if err != nil {
		return err
	}

	if err := c.validate.Check(input); err != nil {
		return c.writeToConn(ctx, conn, protocol.WhiteboardSaveError{Error: c.publicError(err)})
	}

	saveResp, err := c.whiteboardService.SaveWhiteboard(ctx, &whiteboard.SaveWhiteboardParams{
		SenderID:      state.participantID,
		JoinedRoomKey: state.roomKey,
		RoomKey:       input.RoomKey,
		Name:          input.Name,
		EncodedImage:  input.EncodedImage,
	})
	if err != nil {
		c.logger.InfoContext(ctx, "failed to save whiteboard", "error", err)
		return c.writeToConn(ctx, conn, protocol.WhiteboardSaveError{Error: c.publicError(err)})
	}
	c.metrics.snapshotBytes.Observe(float64(len(input.EncodedImage)))

	ctx = ctxlogger.AppendCtx(ctx, slog.String("snapshot_id", saveResp.SnapshotID))
	c.logger.InfoContext(ctx, "whiteboard saved", "name", input.Name)

	return c.writeToConn(ctx, conn, protocol.WhiteboardSaved{SnapshotID: saveResp.SnapshotID})
}

// handleLoadWhiteboard delivers the snapshot to the whole room, requester
// included. Failures are reported to the requester only.
func (c controller) handleLoadWhiteboard(ctx context.Context, conn *wsutils.ThreadSafeWriter, input protocol.LoadWhiteboardRequest) error {
	state, err := c.joinedState(ctx)
	if err != nil {
		return err
	}

	if err := c.validate.Check(input); err != nil {
		return c.writeToConn(ctx, conn, protocol.LoadWhiteboardError{
			SnapshotID: input.SnapshotID,
			Error:      c.publicError(err),
		})
	}

	loadResp, err := c.whiteboardService.LoadWhiteboard(ctx, &whiteboard.LoadWhiteboardParams{
		SenderID:      state.participantID,
		JoinedRoomKey: state.roomKey,
		RoomKey:       input.RoomKey,
		SnapshotID:    input.SnapshotID,
	})
	if err != nil {
		c.logger.InfoContext(ctx, "failed to load whiteboard", "snapshot_id", input.SnapshotID, "error", err)
		return c.writeToConn(ctx, conn, protocol.LoadWhiteboardError{
			SnapshotID: input.SnapshotID,
			Error:      c.publicError(err),
		})
	}

	return c.broadcast(ctx, loadResp.Conns, protocol.LoadWhiteboardDelivery{
		RoomKey:      state.roomKey,
		SnapshotID:   input.SnapshotID,
		EncodedImage: loadResp.EncodedImage,
	})
}
