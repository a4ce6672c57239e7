package acss

import "errors"

var (
	// Framing errors
	ErrBuilder                = errors.New("couldn't build message")
	ErrMalformedHeaderSection = errors.New("malformed message header section")
	ErrBadHeader              = errors.New("bad header format")
	ErrMissingHeader          = errors.New("missing required header")
	ErrHeaderUTF8             = errors.New("invalid UTF-8 in binary message header section")
	ErrParseBinary            = errors.New("cannot parse a binary message as JSON")
	ErrParseJSON              = errors.New("failed to parse JSON message")

	// Protocol errors
	ErrExpectedBinary            = errors.New("expected event to have a binary body")
	ErrMissingField              = errors.New("missing field")
	ErrUnexpectedMultipleStreams = errors.New("unexpected multiple streams in request")
	ErrUnimplemented             = errors.New("unimplemented protocol feature")
	ErrBlendShapeOverflow        = errors.New("more blendshape weights than known keys")
	ErrRequestIDMismatch         = errors.New("message belongs to a different request")

	// Session errors
	ErrMissingCredentials = errors.New("missing region or subscription key")
	ErrUnnamedFormat      = errors.New("audio format has no protocol name")
	ErrMissingVoice       = errors.New("plain text synthesis requires a voice")
	ErrStreamConsumed     = errors.New("utterance stream already consumed")
)
