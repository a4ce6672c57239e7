package acss

import (
	"context"
	"errors"
	"math"
	"net"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-acss/core/texttospeech"
)

type fakeFrame struct {
	messageType int
	data        []byte
}

// fakeConn replays scripted frames. Once drained it either reports a normal
// close frame or blocks until closed.
type fakeConn struct {
	mu      sync.Mutex
	frames  []fakeFrame
	written []fakeFrame
	reads   int

	blockWhenDrained bool
	closed           bool
	closeCalls       int
	closedCh         chan struct{}
}

func newFakeConn(frames ...fakeFrame) *fakeConn {
	return &fakeConn{frames: frames, closedCh: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, nil, net.ErrClosed
	}
	if len(c.frames) == 0 {
		block := c.blockWhenDrained
		c.mu.Unlock()
		if !block {
			return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
		}
		<-c.closedCh
		return 0, nil, net.ErrClosed
	}
	frame := c.frames[0]
	c.frames = c.frames[1:]
	c.reads++
	c.mu.Unlock()
	return frame.messageType, frame.data, nil
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return net.ErrClosed
	}
	c.written = append(c.written, fakeFrame{messageType: messageType, data: data})
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCalls++
	if !c.closed {
		c.closed = true
		close(c.closedCh)
	}
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

const testRequestID = "0123456789abcdef0123456789abcdef"

func textFrame(t *testing.T, path, requestID, body string) fakeFrame {
	t.Helper()
	msg := mustMessage(t, path, requestID, TextBody(body), WithContentType(ContentTypeJSON))
	messageType, data, err := msg.WebsocketMessage()
	if err != nil {
		t.Fatalf("unexpected error serializing %s: %v", path, err)
	}
	return fakeFrame{messageType: messageType, data: data}
}

func binaryFrame(t *testing.T, path, requestID string, body []byte) fakeFrame {
	t.Helper()
	msg := mustMessage(t, path, requestID, BinaryBody(body), WithContentType("audio/x-wav"))
	messageType, data, err := msg.WebsocketMessage()
	if err != nil {
		t.Fatalf("unexpected error serializing %s: %v", path, err)
	}
	return fakeFrame{messageType: messageType, data: data}
}

func metadataJSON(t *testing.T, metaType string, data map[string]any) string {
	t.Helper()
	body, err := sonic.MarshalString(map[string]any{
		"Metadata": []any{map[string]any{"Type": metaType, "Data": data}},
	})
	if err != nil {
		t.Fatalf("unexpected error marshalling metadata: %v", err)
	}
	return body
}

func boundaryJSON(t *testing.T, metaType string, offset, duration int64, text string) string {
	return metadataJSON(t, metaType, map[string]any{
		"Offset":   offset,
		"Duration": duration,
		"text":     map[string]any{"Text": text, "Length": len(text), "BoundaryType": metaType},
	})
}

func visemeJSON(t *testing.T, frameIndex int, rows [][]float32) string {
	t.Helper()
	chunk, err := sonic.MarshalString(map[string]any{"FrameIndex": frameIndex, "BlendShapes": rows})
	if err != nil {
		t.Fatalf("unexpected error marshalling animation chunk: %v", err)
	}
	return metadataJSON(t, "Viseme", map[string]any{"Offset": 0, "VisemeId": 0, "AnimationChunk": chunk})
}

func responseJSON(streamID string) string {
	return `{"context":{"serviceTag":"abc"},"audio":{"type":"inline","streamId":"` + streamID + `"}}`
}

func collect(ctx context.Context, stream *UtteranceStream) ([]texttospeech.UtteranceEvent, error) {
	var events []texttospeech.UtteranceEvent
	for event, err := range stream.Events(ctx) {
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
	return events, nil
}

func TestEventsDecodesTurn(t *testing.T) {
	audio := []byte{0x01, 0x02, 0x03}
	conn := newFakeConn(
		textFrame(t, "turn.start", testRequestID, `{"context":{"serviceTag":"abc"}}`),
		binaryFrame(t, "audio", testRequestID, audio),
		textFrame(t, "audio.metadata", testRequestID, boundaryJSON(t, "WordBoundary", 0, 5_000_000, "hi")),
		textFrame(t, "turn.end", testRequestID, "{}"),
		binaryFrame(t, "audio", testRequestID, []byte{0xff}),
	)
	stream := newUtteranceStream(testRequestID, conn)

	events, err := collect(context.Background(), stream)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []texttospeech.UtteranceEvent{
		texttospeech.AudioChunk{Audio: audio},
		texttospeech.WordBoundary{FromMs: 0, ToMs: 500, Text: "hi"},
	}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("expected %#v, got %#v", want, events)
	}
	if !conn.isClosed() {
		t.Fatalf("expected connection to be closed after turn end")
	}
	if got := conn.remaining(); got != 1 {
		t.Fatalf("expected frames after turn end to stay unread, %d remaining", got)
	}
}

func TestEventsConvertsTicksToMilliseconds(t *testing.T) {
	conn := newFakeConn(
		textFrame(t, "audio.metadata", testRequestID, boundaryJSON(t, "SentenceBoundary", 50_000, 20_000, "Hello there.")),
		textFrame(t, "turn.end", testRequestID, "{}"),
	)

	events, err := collect(context.Background(), newUtteranceStream(testRequestID, conn))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	boundary, ok := events[0].(texttospeech.SentenceBoundary)
	if !ok {
		t.Fatalf("expected sentence boundary, got %T", events[0])
	}
	if boundary.FromMs != 5.0 || boundary.ToMs != 7.0 || boundary.Text != "Hello there." {
		t.Fatalf("expected 5ms-7ms \"Hello there.\", got %+v", boundary)
	}
}

func TestEventsDecodesVisemeFrames(t *testing.T) {
	first := []float32{0.1, 0.2, 0.3}
	second := make([]float32, 55)
	for i := range second {
		second[i] = float32(i) / 100
	}
	conn := newFakeConn(
		textFrame(t, "audio.metadata", testRequestID, visemeJSON(t, 3, [][]float32{first, second})),
		textFrame(t, "turn.end", testRequestID, "{}"),
	)

	events, err := collect(context.Background(), newUtteranceStream(testRequestID, conn))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	chunk, ok := events[0].(texttospeech.BlendShapeVisemesChunk)
	if !ok {
		t.Fatalf("expected blendshape chunk, got %T", events[0])
	}
	if len(chunk.Frames) != 2 {
		t.Fatalf("expected two frames, got %d", len(chunk.Frames))
	}

	const tick = 1000.0 / 60.0
	for i, wantOffset := range []float64{3 * tick, 4 * tick} {
		if got := chunk.Frames[i].OffsetMs; math.Abs(got-wantOffset) > 1e-9 {
			t.Fatalf("frame %d: expected offset %v, got %v", i, wantOffset, got)
		}
	}

	keys := BlendShapeKeys()
	if got := len(chunk.Frames[0].BlendShapes); got != len(first) {
		t.Fatalf("expected %d blendshapes in first frame, got %d", len(first), got)
	}
	for i, shape := range chunk.Frames[0].BlendShapes {
		if shape.Key != keys[i] || shape.Weight != first[i] {
			t.Fatalf("first frame shape %d: expected %s=%v, got %s=%v", i, keys[i], first[i], shape.Key, shape.Weight)
		}
	}
	last := chunk.Frames[1].BlendShapes[54]
	if last.Key != "rightEyeRoll" || last.Weight != second[54] {
		t.Fatalf("expected last shape rightEyeRoll=%v, got %s=%v", second[54], last.Key, last.Weight)
	}
}

func TestEventsRejectsMultipleStreams(t *testing.T) {
	conn := newFakeConn(
		textFrame(t, "response", testRequestID, responseJSON("stream-a")),
		binaryFrame(t, "audio", testRequestID, []byte{0x01}),
		textFrame(t, "response", testRequestID, responseJSON("stream-a")),
		textFrame(t, "response", testRequestID, responseJSON("stream-b")),
		binaryFrame(t, "audio", testRequestID, []byte{0x02}),
		textFrame(t, "turn.end", testRequestID, "{}"),
	)
	stream := newUtteranceStream(testRequestID, conn)

	events, err := collect(context.Background(), stream)
	if !errors.Is(err, ErrUnexpectedMultipleStreams) {
		t.Fatalf("expected ErrUnexpectedMultipleStreams, got %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected only the audio before the second stream, got %#v", events)
	}
	if stream.StreamID() != "stream-a" {
		t.Fatalf("expected first stream id to be kept, got %q", stream.StreamID())
	}
	if !conn.isClosed() {
		t.Fatalf("expected connection to be closed after error")
	}
}

func TestEventsFatalErrors(t *testing.T) {
	cases := []struct {
		name  string
		frame func(t *testing.T) fakeFrame
		want  error
	}{
		{
			name:  "text audio",
			frame: func(t *testing.T) fakeFrame { return textFrame(t, "audio", testRequestID, "not audio") },
			want:  ErrExpectedBinary,
		},
		{
			name: "unknown metadata type",
			frame: func(t *testing.T) fakeFrame {
				return textFrame(t, "audio.metadata", testRequestID, metadataJSON(t, "SessionEnd", map[string]any{"Offset": 0}))
			},
			want: ErrUnimplemented,
		},
		{
			name: "missing text",
			frame: func(t *testing.T) fakeFrame {
				return textFrame(t, "audio.metadata", testRequestID, metadataJSON(t, "WordBoundary", map[string]any{"Offset": 0, "Duration": 1}))
			},
			want: ErrMissingField,
		},
		{
			name:  "missing metadata",
			frame: func(t *testing.T) fakeFrame { return textFrame(t, "audio.metadata", testRequestID, `{"Metadata":[]}`) },
			want:  ErrMissingField,
		},
		{
			name:  "missing stream id",
			frame: func(t *testing.T) fakeFrame { return textFrame(t, "response", testRequestID, `{"audio":{"type":"inline"}}`) },
			want:  ErrMissingField,
		},
		{
			name:  "invalid json",
			frame: func(t *testing.T) fakeFrame { return textFrame(t, "response", testRequestID, `{"audio":`) },
			want:  ErrParseJSON,
		},
		{
			name:  "binary metadata",
			frame: func(t *testing.T) fakeFrame { return binaryFrame(t, "audio.metadata", testRequestID, []byte("{}")) },
			want:  ErrParseBinary,
		},
		{
			name: "too many blendshapes",
			frame: func(t *testing.T) fakeFrame {
				return textFrame(t, "audio.metadata", testRequestID, visemeJSON(t, 0, [][]float32{make([]float32, 56)}))
			},
			want: ErrBlendShapeOverflow,
		},
		{
			name:  "other request",
			frame: func(t *testing.T) fakeFrame { return textFrame(t, "turn.start", "ffffffffffffffffffffffffffffffff", "{}") },
			want:  ErrRequestIDMismatch,
		},
		{
			name:  "malformed frame",
			frame: func(*testing.T) fakeFrame { return fakeFrame{messageType: websocket.TextMessage, data: []byte("Path: audio")} },
			want:  ErrMalformedHeaderSection,
		},
	}

	for _, tc := range cases {
		conn := newFakeConn(
			tc.frame(t),
			binaryFrame(t, "audio", testRequestID, []byte{0x01}),
			textFrame(t, "turn.end", testRequestID, "{}"),
		)

		events, err := collect(context.Background(), newUtteranceStream(testRequestID, conn))
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
		if len(events) != 0 {
			t.Fatalf("%s: expected no events before the error, got %#v", tc.name, events)
		}
		if !conn.isClosed() {
			t.Fatalf("%s: expected connection to be closed", tc.name)
		}
	}
}

func TestEventsSkipsUnknownPaths(t *testing.T) {
	conn := newFakeConn(
		textFrame(t, "turn.start", testRequestID, "{}"),
		textFrame(t, "some.future.path", testRequestID, "{}"),
		binaryFrame(t, "audio", testRequestID, []byte{0x07}),
		textFrame(t, "turn.end", testRequestID, "{}"),
	)

	events, err := collect(context.Background(), newUtteranceStream(testRequestID, conn))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Kind() != texttospeech.KindAudioChunk {
		t.Fatalf("expected a single audio chunk, got %#v", events)
	}
}

func TestEventsEndsOnUnexpectedClose(t *testing.T) {
	conn := newFakeConn(
		binaryFrame(t, "audio", testRequestID, []byte{0x01}),
	)

	events, err := collect(context.Background(), newUtteranceStream(testRequestID, conn))
	if err != nil {
		t.Fatalf("expected close frame to end the stream without error, got %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected the audio before the close, got %#v", events)
	}
	if !conn.isClosed() {
		t.Fatalf("expected connection to be closed")
	}
}

func TestEventsClosesConnectionWhenAbandoned(t *testing.T) {
	conn := newFakeConn(
		binaryFrame(t, "audio", testRequestID, []byte{0x01}),
		binaryFrame(t, "audio", testRequestID, []byte{0x02}),
		textFrame(t, "turn.end", testRequestID, "{}"),
	)
	stream := newUtteranceStream(testRequestID, conn)

	for event, err := range stream.Events(context.Background()) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if event.Kind() != texttospeech.KindAudioChunk {
			t.Fatalf("expected audio chunk, got %s", event.Kind())
		}
		break
	}

	if !conn.isClosed() {
		t.Fatalf("expected connection to be closed after the consumer stopped")
	}
	if got := conn.remaining(); got != 2 {
		t.Fatalf("expected no reads after the consumer stopped, %d frames remaining", got)
	}
}

func TestEventsCancelledContextClosesConnection(t *testing.T) {
	conn := newFakeConn(binaryFrame(t, "audio", testRequestID, []byte{0x01}))
	conn.blockWhenDrained = true
	stream := newUtteranceStream(testRequestID, conn)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	received := make(chan struct{}, 1)
	go func() {
		for _, err := range stream.Events(ctx) {
			if err != nil {
				done <- err
				return
			}
			received <- struct{}{}
		}
		done <- nil
	}()

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatalf("expected the first event to arrive")
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected cancellation to unblock the stream")
	}
	if !conn.isClosed() {
		t.Fatalf("expected connection to be closed")
	}
}

func TestEventsIsSinglePass(t *testing.T) {
	conn := newFakeConn(textFrame(t, "turn.end", testRequestID, "{}"))
	stream := newUtteranceStream(testRequestID, conn)

	if _, err := collect(context.Background(), stream); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := collect(context.Background(), stream); !errors.Is(err, ErrStreamConsumed) {
		t.Fatalf("expected ErrStreamConsumed on second pass, got %v", err)
	}
}

func TestUtteranceStreamCloseIsIdempotent(t *testing.T) {
	conn := newFakeConn()
	stream := newUtteranceStream(testRequestID, conn)

	_ = stream.Close()
	_ = stream.Close()

	if conn.closeCalls != 1 {
		t.Fatalf("expected one close on the connection, got %d", conn.closeCalls)
	}
}
