// Package protocol defines the whiteboard message catalog exchanged over the
// event channel.
//
// Every frame is a JSON envelope {"type": <kind>, "payload": {...}}. Frames are
// decoded once into one of the concrete Event types below; callers dispatch on
// the Go type, never on the kind string.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sharetube/whiteboard/internal/domain"
)

type Kind string

const (
	KindJoinRoom               Kind = "joinRoom"
	KindUserCreated            Kind = "userCreated"
	KindDraw                   Kind = "draw"
	KindEndStroke              Kind = "endStroke"
	KindClearWhiteboard        Kind = "clearWhiteboard"
	KindSaveWhiteboard         Kind = "saveWhiteboard"
	KindWhiteboardSaved        Kind = "whiteboardSaved"
	KindWhiteboardSaveError    Kind = "whiteboardSaveError"
	KindLoadWhiteboardRequest  Kind = "loadWhiteboardRequest"
	KindLoadWhiteboardDelivery Kind = "loadWhiteboardDelivery"
	KindLoadWhiteboardError    Kind = "loadWhiteboardError"
	KindError                  Kind = "error"
)

var (
	ErrUnknownKind      = errors.New("unknown message kind")
	ErrMalformedMessage = errors.New("malformed message")
)

// Event is the closed set of messages. Only types in this package implement it.
type Event interface {
	Kind() Kind
	isEvent()
}

type Envelope struct {
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type JoinRoom struct {
	RoomKey             string `json:"roomKey" validate:"required,max=64"`
	ParticipantName     string `json:"participantName" validate:"required,min=2,max=64"`
	ParticipantContact  string `json:"participantContact" validate:"required,max=254"`
	ResumeParticipantID string `json:"resumeParticipantId,omitempty" validate:"omitempty,uuid"`
}

type UserCreated struct {
	ParticipantID string `json:"participantId"`
}

type Draw struct {
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Color         string  `json:"color" validate:"omitempty,hexcolor"`
	BrushSize     float64 `json:"brushSize" validate:"gt=0,lte=512"`
	IsEraser      bool    `json:"isEraser"`
	RoomKey       string  `json:"roomKey" validate:"required"`
	ParticipantID string  `json:"participantId,omitempty"`
}

// EndStroke marks a pen-up of the sender so receivers drop its last point.
type EndStroke struct {
	RoomKey       string `json:"roomKey" validate:"required"`
	ParticipantID string `json:"participantId,omitempty"`
}

type ClearWhiteboard struct {
	RoomKey string `json:"roomKey" validate:"required"`
}

type SaveWhiteboard struct {
	RoomKey       string `json:"roomKey" validate:"required"`
	EncodedImage  string `json:"encodedImage" validate:"required"`
	Name          string `json:"name" validate:"required,max=128"`
	ParticipantID string `json:"participantId"`
}

type WhiteboardSaved struct {
	SnapshotID string `json:"snapshotId"`
}

type WhiteboardSaveError struct {
	Error string `json:"error"`
}

type LoadWhiteboardRequest struct {
	SnapshotID string `json:"snapshotId" validate:"required"`
	RoomKey    string `json:"roomKey" validate:"required"`
}

type LoadWhiteboardDelivery struct {
	RoomKey      string `json:"roomKey"`
	SnapshotID   string `json:"snapshotId"`
	EncodedImage string `json:"encodedImage"`
}

type LoadWhiteboardError struct {
	SnapshotID string `json:"snapshotId"`
	Error      string `json:"error"`
}

type Error struct {
	Message string `json:"message"`
}

func (JoinRoom) Kind() Kind               { return KindJoinRoom }
func (UserCreated) Kind() Kind            { return KindUserCreated }
func (Draw) Kind() Kind                   { return KindDraw }
func (EndStroke) Kind() Kind              { return KindEndStroke }
func (ClearWhiteboard) Kind() Kind        { return KindClearWhiteboard }
func (SaveWhiteboard) Kind() Kind         { return KindSaveWhiteboard }
func (WhiteboardSaved) Kind() Kind        { return KindWhiteboardSaved }
func (WhiteboardSaveError) Kind() Kind    { return KindWhiteboardSaveError }
func (LoadWhiteboardRequest) Kind() Kind  { return KindLoadWhiteboardRequest }
func (LoadWhiteboardDelivery) Kind() Kind { return KindLoadWhiteboardDelivery }
func (LoadWhiteboardError) Kind() Kind    { return KindLoadWhiteboardError }
func (Error) Kind() Kind                  { return KindError }

func (JoinRoom) isEvent()               {}
func (UserCreated) isEvent()            {}
func (Draw) isEvent()                   {}
func (EndStroke) isEvent()              {}
func (ClearWhiteboard) isEvent()        {}
func (SaveWhiteboard) isEvent()         {}
func (WhiteboardSaved) isEvent()        {}
func (WhiteboardSaveError) isEvent()    {}
func (LoadWhiteboardRequest) isEvent()  {}
func (LoadWhiteboardDelivery) isEvent() {}
func (LoadWhiteboardError) isEvent()    {}
func (Error) isEvent()                  {}

func NewDraw(e domain.StrokeEvent) Draw {
	return Draw{
		X:         e.X,
		Y:         e.Y,
		Color:     e.Color,
		BrushSize: e.BrushSize,
		IsEraser:  e.IsEraser,
		RoomKey:   e.RoomKey,
	}
}

func (d Draw) StrokeEvent() domain.StrokeEvent {
	return domain.StrokeEvent{
		Point:     domain.Point{X: d.X, Y: d.Y},
		Color:     d.Color,
		BrushSize: d.BrushSize,
		IsEraser:  d.IsEraser,
		RoomKey:   d.RoomKey,
	}
}

func Encode(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", ev.Kind(), err)
	}

	return json.Marshal(Envelope{Type: ev.Kind(), Payload: payload})
}

func Decode(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	return DecodeEnvelope(env)
}

func DecodeEnvelope(env Envelope) (Event, error) {
	switch env.Type {
	case KindJoinRoom:
		return decodePayload[JoinRoom](env)
	case KindUserCreated:
		return decodePayload[UserCreated](env)
	case KindDraw:
		return decodePayload[Draw](env)
	case KindEndStroke:
		return decodePayload[EndStroke](env)
	case KindClearWhiteboard:
		return decodePayload[ClearWhiteboard](env)
	case KindSaveWhiteboard:
		return decodePayload[SaveWhiteboard](env)
	case KindWhiteboardSaved:
		return decodePayload[WhiteboardSaved](env)
	case KindWhiteboardSaveError:
		return decodePayload[WhiteboardSaveError](env)
	case KindLoadWhiteboardRequest:
		return decodePayload[LoadWhiteboardRequest](env)
	case KindLoadWhiteboardDelivery:
		return decodePayload[LoadWhiteboardDelivery](env)
	case KindLoadWhiteboardError:
		return decodePayload[LoadWhiteboardError](env)
	case KindError:
		return decodePayload[Error](env)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}
}

func decodePayload[T Event](env Envelope) (Event, error) {
	var v T
	if len(env.Payload) == 0 {
		return nil, fmt.Errorf("%w: %s without payload", ErrMalformedMessage, env.Type)
	}

	if err := json.Unmarshal(env.Payload, &v); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedMessage, env.Type, err)
	}

	return v, nil
}
