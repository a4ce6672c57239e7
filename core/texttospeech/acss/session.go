package acss

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/koscakluka/ema-acss/core/audio"
	"github.com/koscakluka/ema-acss/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
)

const (
	pathSpeechConfig     = "speech.config"
	pathSynthesisContext = "synthesis.context"
	pathSSML             = "ssml"
)

// speechConfig describes this client to the service. Its content doesn't
// affect synthesis.
const speechConfig = `{"context":{"system":{"name":"SpeechSDK","version":"1.30.0","build":"Go","lang":"Go"},"os":{"platform":"Go","name":"ema-acss","version":"1"}}}`

type synthesisContext struct {
	Synthesis synthesisOptions `json:"synthesis"`
}

type synthesisOptions struct {
	Audio synthesisAudioOptions `json:"audio"`
}

type synthesisAudioOptions struct {
	MetadataOptions metadataOptions `json:"metadataOptions"`
	OutputFormat    string          `json:"outputFormat"`
}

type metadataOptions struct {
	SentenceBoundaryEnabled bool `json:"sentenceBoundaryEnabled"`
	WordBoundaryEnabled     bool `json:"wordBoundaryEnabled"`
	SessionEndEnabled       bool `json:"sessionEndEnabled"`
}

// SynthesizeSSMLStream connects to the service and requests synthesis of an
// already serialized SSML document in the given format. The returned stream
// owns the connection.
//
// Connection and handshake failures are returned as is, nothing is retried.
func (c *TextToSpeechClient) SynthesizeSSMLStream(ctx context.Context, ssml string, format audio.Format, opts ...texttospeech.UtteranceOption) (*UtteranceStream, error) {
	ctx, span := tracer.Start(ctx, "synthesize ssml")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.region", c.region),
		attribute.String("request.output_format", format.Name),
	)

	config := texttospeech.NewUtteranceConfig(opts...)
	if format.Name == "" {
		span.RecordError(ErrUnnamedFormat)
		return nil, ErrUnnamedFormat
	}

	conn, err := c.connectWebsocket(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.AddEvent("connected")

	requestID, err := startSynthesis(conn, ssml, format, config)
	if err != nil {
		_ = conn.Close() // Ignored on purpose, the handshake error is what matters
		err = fmt.Errorf("failed to start synthesis: %w", err)
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("request.id", requestID))

	return newUtteranceStream(requestID, conn), nil
}

// SynthesizeTextStream wraps plain text into a minimal SSML document using the
// configured voice and language and synthesizes it.
func (c *TextToSpeechClient) SynthesizeTextStream(ctx context.Context, text string, format audio.Format, opts ...texttospeech.UtteranceOption) (*UtteranceStream, error) {
	config := texttospeech.NewUtteranceConfig(opts...)
	if config.Voice == "" {
		return nil, ErrMissingVoice
	}

	ssml, err := speakDocument(text, config.Voice, config.Language)
	if err != nil {
		return nil, err
	}
	return c.SynthesizeSSMLStream(ctx, ssml, format, opts...)
}

func speakDocument(text, voice, language string) (string, error) {
	var doc strings.Builder
	doc.WriteString(`<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xml:lang="`)
	if err := xml.EscapeText(&doc, []byte(language)); err != nil {
		return "", fmt.Errorf("failed to escape language: %w", err)
	}
	doc.WriteString(`"><voice name="`)
	if err := xml.EscapeText(&doc, []byte(voice)); err != nil {
		return "", fmt.Errorf("failed to escape voice: %w", err)
	}
	doc.WriteString(`">`)
	if err := xml.EscapeText(&doc, []byte(text)); err != nil {
		return "", fmt.Errorf("failed to escape text: %w", err)
	}
	doc.WriteString(`</voice></speak>`)
	return doc.String(), nil
}

// startSynthesis sends the three handshake messages in order and returns the
// request id the service will answer with.
func startSynthesis(conn Conn, ssml string, format audio.Format, config texttospeech.UtteranceConfig) (string, error) {
	if err := sendMessage(conn, pathSpeechConfig, GenerateRequestID(), TextBody(speechConfig), ContentTypeJSON); err != nil {
		return "", err
	}

	synthesisCtx, err := sonic.MarshalString(synthesisContext{
		Synthesis: synthesisOptions{Audio: synthesisAudioOptions{
			MetadataOptions: metadataOptions{
				SentenceBoundaryEnabled: config.EmitSentenceBoundaryEvents,
				WordBoundaryEnabled:     config.EmitWordBoundaryEvents,
				SessionEndEnabled:       false,
			},
			OutputFormat: format.Name,
		}},
	})
	if err != nil {
		return "", fmt.Errorf("error marshalling synthesis context: %w", err)
	}

	requestID := GenerateRequestID()
	if err := sendMessage(conn, pathSynthesisContext, requestID, TextBody(synthesisCtx), ContentTypeJSON); err != nil {
		return "", err
	}
	if err := sendMessage(conn, pathSSML, requestID, TextBody(ssml), ContentTypeSSML); err != nil {
		return "", err
	}

	return requestID, nil
}

func sendMessage(conn Conn, path, requestID string, body Body, contentType string) error {
	msg, err := NewMessage(path, requestID, body, WithContentType(contentType))
	if err != nil {
		return err
	}
	messageType, data, err := msg.WebsocketMessage()
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("failed to write %s to websocket: %w", path, err)
	}
	return nil
}
