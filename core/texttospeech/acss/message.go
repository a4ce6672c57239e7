package acss

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"github.com/bytedance/sonic/ast"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeSSML = "application/ssml+xml"
)

const (
	headerRequestID   = "X-RequestId"
	headerContentType = "Content-Type"
	headerStreamID    = "X-StreamId"
	headerPath        = "Path"

	headerSeparator = "\r\n"
	bodySeparator   = "\r\n\r\n"
)

// Body is the payload of a [Message], either [BinaryBody] or [TextBody].
type Body interface {
	isBody()
}

type BinaryBody []byte

func (BinaryBody) isBody() {}

type TextBody string

func (TextBody) isBody() {}

// Message is a single framed protocol message. Messages are immutable once
// built.
type Message struct {
	requestID   string
	path        string
	contentType string
	streamID    string
	body        Body
}

type MessageOption func(*Message)

func WithContentType(contentType string) MessageOption {
	return func(m *Message) { m.contentType = contentType }
}

func WithStreamID(streamID string) MessageOption {
	return func(m *Message) { m.streamID = streamID }
}

// NewMessage builds a message, path, request id and body are mandatory.
func NewMessage(path, requestID string, body Body, opts ...MessageOption) (*Message, error) {
	if requestID == "" {
		return nil, fmt.Errorf("%w: missing request ID", ErrBuilder)
	}
	if path == "" {
		return nil, fmt.Errorf("%w: missing request path", ErrBuilder)
	}
	switch b := body.(type) {
	case nil:
		return nil, fmt.Errorf("%w: missing message body", ErrBuilder)
	case BinaryBody:
		if b == nil {
			body = BinaryBody{}
		}
	}

	msg := &Message{requestID: requestID, path: path, body: body}
	for _, opt := range opts {
		opt(msg)
	}
	return msg, nil
}

// GenerateRequestID returns a random request id in the protocol's form, a
// UUID without separators.
func GenerateRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (m *Message) RequestID() string   { return m.requestID }
func (m *Message) Path() string        { return m.path }
func (m *Message) ContentType() string { return m.contentType }
func (m *Message) StreamID() string    { return m.streamID }
func (m *Message) Body() Body          { return m.body }

func (m *Message) IsBinary() bool {
	_, ok := m.body.(BinaryBody)
	return ok
}

// Binary returns the binary body, ok is false for text messages.
func (m *Message) Binary() (data []byte, ok bool) {
	b, ok := m.body.(BinaryBody)
	return b, ok
}

// Text returns the text body, ok is false for binary messages.
func (m *Message) Text() (text string, ok bool) {
	t, ok := m.body.(TextBody)
	return string(t), ok
}

// JSON parses a text body into a lazily evaluated JSON tree.
func (m *Message) JSON() (*ast.Node, error) {
	text, ok := m.Text()
	if !ok {
		return nil, ErrParseBinary
	}
	return parseJSON(text)
}

func parseJSON(text string) (*ast.Node, error) {
	if !sonic.Valid([]byte(text)) {
		return nil, fmt.Errorf("%w: invalid JSON document", ErrParseJSON)
	}
	root, err := sonic.GetFromString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParseJSON, err)
	}
	if err := root.Check(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParseJSON, err)
	}
	return &root, nil
}

func (m *Message) headerSection() string {
	headers := []string{headerRequestID + ": " + m.requestID}
	if m.contentType != "" {
		headers = append(headers, headerContentType+": "+m.contentType)
	}
	if m.streamID != "" {
		headers = append(headers, headerStreamID+": "+m.streamID)
	}
	headers = append(headers, headerPath+": "+m.path)
	return strings.Join(headers, headerSeparator)
}

// SerializeText renders a text frame. Binary messages can't be rendered as
// text.
func (m *Message) SerializeText() (string, error) {
	text, ok := m.Text()
	if !ok {
		return "", fmt.Errorf("%w: message has a binary body", ErrBuilder)
	}
	return m.headerSection() + bodySeparator + text, nil
}

// SerializeBinary renders a binary frame: a big endian u16 header length,
// the header section and the body verbatim.
func (m *Message) SerializeBinary() ([]byte, error) {
	body, ok := m.Binary()
	if !ok {
		return nil, fmt.Errorf("%w: message has a text body", ErrBuilder)
	}
	headers := m.headerSection()
	if len(headers) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: header section is %d bytes long", ErrBuilder, len(headers))
	}

	frame := make([]byte, 0, 2+len(headers)+len(body))
	frame = binary.BigEndian.AppendUint16(frame, uint16(len(headers)))
	frame = append(frame, headers...)
	frame = append(frame, body...)
	return frame, nil
}

// WebsocketMessage renders the message as a websocket frame of the kind
// matching its body.
func (m *Message) WebsocketMessage() (messageType int, data []byte, err error) {
	if m.IsBinary() {
		data, err := m.SerializeBinary()
		return websocket.BinaryMessage, data, err
	}
	text, err := m.SerializeText()
	return websocket.TextMessage, []byte(text), err
}

// ParseText parses a text frame.
func ParseText(frame string) (*Message, error) {
	headers, body, ok := strings.Cut(frame, bodySeparator)
	if !ok {
		return nil, ErrMalformedHeaderSection
	}
	return parseHeaders(headers, TextBody(body))
}

// ParseBinary parses a binary frame.
func ParseBinary(frame []byte) (*Message, error) {
	if len(frame) < 2 {
		return nil, fmt.Errorf("%w: frame is %d bytes long", ErrMalformedHeaderSection, len(frame))
	}
	headerLength := int(binary.BigEndian.Uint16(frame))
	rest := frame[2:]
	if headerLength > len(rest) {
		return nil, fmt.Errorf("%w: header section is %d bytes long, frame has %d", ErrMalformedHeaderSection, headerLength, len(rest))
	}

	headers := rest[:headerLength]
	if !utf8.Valid(headers) {
		return nil, ErrHeaderUTF8
	}
	body := make([]byte, len(rest)-headerLength)
	copy(body, rest[headerLength:])
	return parseHeaders(string(headers), BinaryBody(body))
}

// ParseWebsocketMessage parses a received websocket data frame.
func ParseWebsocketMessage(messageType int, data []byte) (*Message, error) {
	switch messageType {
	case websocket.BinaryMessage:
		return ParseBinary(data)
	case websocket.TextMessage:
		return ParseText(string(data))
	default:
		return nil, fmt.Errorf("%w: unsupported websocket message type %d", ErrMalformedHeaderSection, messageType)
	}
}

func parseHeaders(section string, body Body) (*Message, error) {
	headers := map[string]string{}
	for line := range strings.SplitSeq(section, headerSeparator) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrBadHeader, line)
		}
		headers[strings.ToLower(strings.TrimSpace(name))] = strings.ToLower(strings.TrimSpace(value))
	}

	path, ok := headers[strings.ToLower(headerPath)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingHeader, headerPath)
	}
	requestID, ok := headers[strings.ToLower(headerRequestID)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingHeader, headerRequestID)
	}

	return NewMessage(path, requestID, body,
		WithContentType(headers[strings.ToLower(headerContentType)]),
		WithStreamID(headers[strings.ToLower(headerStreamID)]),
	)
}
