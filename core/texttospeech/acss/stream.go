package acss

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bytedance/sonic/ast"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-acss/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
)

const (
	pathTurnStart     = "turn.start"
	pathTurnEnd       = "turn.end"
	pathAudio         = "audio"
	pathAudioMetadata = "audio.metadata"
	pathResponse      = "response"

	metadataWordBoundary     = "WordBoundary"
	metadataSentenceBoundary = "SentenceBoundary"
	metadataViseme           = "Viseme"

	// Offsets and durations are given in ticks of 100ns
	ticksPerMillisecond = 10_000
)

// UtteranceStream is the server side of a single synthesis request. It owns
// the connection and closes it once the events are consumed, abandoned or
// fail.
type UtteranceStream struct {
	requestID string
	streamID  string
	conn      Conn

	consumed  bool
	closeOnce sync.Once
	closeErr  error
}

func newUtteranceStream(requestID string, conn Conn) *UtteranceStream {
	return &UtteranceStream{requestID: requestID, conn: conn}
}

func (s *UtteranceStream) RequestID() string { return s.requestID }

// StreamID is the audio stream id assigned by the service, empty until the
// service announces it.
func (s *UtteranceStream) StreamID() string { return s.streamID }

// Close closes the underlying connection. It is safe to call repeatedly.
func (s *UtteranceStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// Events returns a single pass iterator over the utterance events in the order
// the service sent them. Iteration ends after the turn ends, on the first
// error, or when the consumer stops early; in every case the connection is
// closed. Cancelling ctx closes the connection and yields ctx.Err().
func (s *UtteranceStream) Events(ctx context.Context) func(func(texttospeech.UtteranceEvent, error) bool) {
	return func(yield func(texttospeech.UtteranceEvent, error) bool) {
		if s.consumed {
			yield(nil, ErrStreamConsumed)
			return
		}
		s.consumed = true

		ctx, span := tracer.Start(ctx, "utterance stream")
		defer span.End()
		defer s.Close()
		stop := context.AfterFunc(ctx, func() { _ = s.Close() })
		defer stop()

		span.SetAttributes(attribute.String("request.id", s.requestID))
		emitted := 0
		defer func() {
			span.SetAttributes(
				attribute.Int("response.events", emitted),
				attribute.String("response.stream_id", s.streamID),
			)
		}()

		for {
			messageType, data, err := s.conn.ReadMessage()
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					yield(nil, ctxErr)
					return
				}

				var closeErr *websocket.CloseError
				if errors.As(err, &closeErr) {
					logger.ErrorContext(ctx, "received unexpected close frame",
						"code", closeErr.Code, "text", closeErr.Text, "request_id", s.requestID)
					span.AddEvent("unexpected close")
					return
				}

				err = fmt.Errorf("failed to read from websocket: %w", err)
				span.RecordError(err)
				yield(nil, err)
				return
			}
			if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
				continue
			}
			framesReceived.Add(ctx, 1)

			msg, err := ParseWebsocketMessage(messageType, data)
			if err != nil {
				span.RecordError(err)
				yield(nil, err)
				return
			}

			event, done, err := s.decode(ctx, msg)
			if err != nil {
				span.RecordError(err)
				yield(nil, err)
				return
			}
			if done {
				span.AddEvent("turn ended")
				return
			}
			if event == nil {
				continue
			}

			emitted++
			eventsEmitted.Add(ctx, 1)
			if !yield(event, nil) {
				return
			}
		}
	}
}

// decode turns one message into at most one event. done reports the end of
// the turn.
func (s *UtteranceStream) decode(ctx context.Context, msg *Message) (event texttospeech.UtteranceEvent, done bool, err error) {
	if !strings.EqualFold(msg.RequestID(), s.requestID) {
		logger.ErrorContext(ctx, "received message for another request",
			"expected", s.requestID, "got", msg.RequestID(), "path", msg.Path())
		return nil, false, fmt.Errorf("%w: expected %s, got %s", ErrRequestIDMismatch, s.requestID, msg.RequestID())
	}

	switch msg.Path() {
	case pathTurnStart:
		return nil, false, nil
	case pathTurnEnd:
		return nil, true, nil
	case pathAudio:
		data, ok := msg.Binary()
		if !ok {
			return nil, false, fmt.Errorf("%w: `%s`", ErrExpectedBinary, pathAudio)
		}
		audioBytes.Add(ctx, int64(len(data)))
		return texttospeech.AudioChunk{Audio: data}, false, nil
	case pathAudioMetadata:
		event, err := decodeMetadata(msg)
		return event, false, err
	case pathResponse:
		return nil, false, s.trackStream(ctx, msg)
	default:
		logger.WarnContext(ctx, "unhandled event", "path", msg.Path(), "request_id", s.requestID)
		return nil, false, nil
	}
}

func (s *UtteranceStream) trackStream(ctx context.Context, msg *Message) error {
	root, err := msg.JSON()
	if err != nil {
		return err
	}

	const event = "`response` event"
	audioType, err := stringField(root, event, "audio", "type")
	if err != nil {
		return err
	}
	if audioType != "inline" {
		logger.WarnContext(ctx, "unexpected audio type", "type", audioType, "request_id", s.requestID)
	}

	streamID, err := stringField(root, event, "audio", "streamId")
	if err != nil {
		return err
	}
	if s.streamID == "" {
		s.streamID = streamID
		return nil
	}
	if s.streamID != streamID {
		return fmt.Errorf("%w: %s and %s", ErrUnexpectedMultipleStreams, s.streamID, streamID)
	}
	return nil
}

func decodeMetadata(msg *Message) (texttospeech.UtteranceEvent, error) {
	root, err := msg.JSON()
	if err != nil {
		return nil, err
	}

	const event = "`audio.metadata` event"
	metadata := field(root, "Metadata", 0)
	if metadata == nil {
		return nil, fmt.Errorf("%w: Metadata in %s", ErrMissingField, event)
	}
	metaType, err := stringField(metadata, event, "Type")
	if err != nil {
		return nil, err
	}
	data := field(metadata, "Data")
	if data == nil {
		return nil, fmt.Errorf("%w: Data in %s", ErrMissingField, event)
	}

	switch metaType {
	case metadataWordBoundary, metadataSentenceBoundary:
		fromMs, toMs, text, err := decodeBoundary(data, event)
		if err != nil {
			return nil, err
		}
		if metaType == metadataWordBoundary {
			return texttospeech.WordBoundary{FromMs: fromMs, ToMs: toMs, Text: text}, nil
		}
		return texttospeech.SentenceBoundary{FromMs: fromMs, ToMs: toMs, Text: text}, nil
	case metadataViseme:
		raw, err := stringField(data, event, "AnimationChunk")
		if err != nil {
			return nil, err
		}
		chunk, err := decodeAnimationChunk(raw)
		if err != nil {
			return nil, err
		}
		return chunk, nil
	default:
		return nil, fmt.Errorf("%w: audio.metadata type %q", ErrUnimplemented, metaType)
	}
}

func decodeBoundary(data *ast.Node, event string) (fromMs, toMs float64, text string, err error) {
	offset, err := numberField(data, event, "Offset")
	if err != nil {
		return 0, 0, "", err
	}
	duration, err := numberField(data, event, "Duration")
	if err != nil {
		return 0, 0, "", err
	}
	if text, err = stringField(data, event, "text", "Text"); err != nil {
		return 0, 0, "", err
	}

	fromMs = offset / ticksPerMillisecond
	toMs = fromMs + duration/ticksPerMillisecond
	return fromMs, toMs, text, nil
}

// field walks a JSON path of object keys and array indexes, nil if any step
// is missing.
func field(node *ast.Node, path ...any) *ast.Node {
	for _, step := range path {
		if node == nil || !node.Exists() {
			return nil
		}
		switch step := step.(type) {
		case string:
			node = node.Get(step)
		case int:
			node = node.Index(step)
		default:
			return nil
		}
	}
	if node == nil || !node.Exists() {
		return nil
	}
	return node
}

func stringField(node *ast.Node, event string, path ...any) (string, error) {
	value := field(node, path...)
	if value == nil {
		return "", missingField(event, path)
	}
	s, err := value.String()
	if err != nil {
		return "", missingField(event, path)
	}
	return s, nil
}

func numberField(node *ast.Node, event string, path ...any) (float64, error) {
	value := field(node, path...)
	if value == nil {
		return 0, missingField(event, path)
	}
	n, err := value.Float64()
	if err != nil {
		return 0, missingField(event, path)
	}
	return n, nil
}

func missingField(event string, path []any) error {
	return fmt.Errorf("%w: %v in %s", ErrMissingField, path[len(path)-1], event)
}
