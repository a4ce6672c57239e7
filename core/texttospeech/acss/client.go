package acss

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-acss/core/audio"
)

const (
	regionEnv = "ACSS_REGION"
	keyEnv    = "ACSS_KEY"

	subscriptionKeyHeader = "Ocp-Apim-Subscription-Key"
)

// Conn is the duplex message channel a synthesis runs over.
// [*websocket.Conn] satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type TextToSpeechClient struct {
	region   string
	key      string
	endpoint string
	dialer   *websocket.Dialer
}

type ClientOption func(*TextToSpeechClient)

// WithEndpoint replaces the regional service endpoint.
func WithEndpoint(endpoint string) ClientOption {
	return func(c *TextToSpeechClient) { c.endpoint = endpoint }
}

func WithDialer(dialer *websocket.Dialer) ClientOption {
	return func(c *TextToSpeechClient) {
		if dialer == nil {
			return
		}
		c.dialer = dialer
	}
}

func NewTextToSpeechClient(region, key string, opts ...ClientOption) (*TextToSpeechClient, error) {
	if region == "" || key == "" {
		return nil, ErrMissingCredentials
	}

	client := &TextToSpeechClient{
		region: region,
		key:    key,
		endpoint: (&url.URL{
			Scheme: "wss",
			Host:   region + ".tts.speech.microsoft.com",
			Path:   "/cognitiveservices/websocket/v1",
		}).String(),
		dialer: websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(client)
	}

	if _, err := url.Parse(client.endpoint); err != nil {
		return nil, fmt.Errorf("bad endpoint URL: %w", err)
	}

	return client, nil
}

// NewTextToSpeechClientFromEnv reads the region and subscription key from
// ACSS_REGION and ACSS_KEY.
func NewTextToSpeechClientFromEnv(opts ...ClientOption) (*TextToSpeechClient, error) {
	region, ok := os.LookupEnv(regionEnv)
	if !ok {
		return nil, fmt.Errorf("%w: %s not set", ErrMissingCredentials, regionEnv)
	}
	key, ok := os.LookupEnv(keyEnv)
	if !ok {
		return nil, fmt.Errorf("%w: %s not set", ErrMissingCredentials, keyEnv)
	}
	return NewTextToSpeechClient(region, key, opts...)
}

func (c *TextToSpeechClient) Region() string   { return c.region }
func (c *TextToSpeechClient) Endpoint() string { return c.endpoint }

// NegotiateAudioFormat see [NegotiateAudioFormat].
func (c *TextToSpeechClient) NegotiateAudioFormat(pref audio.FormatPreference) (audio.Format, bool) {
	return NegotiateAudioFormat(pref)
}

func (c *TextToSpeechClient) connectWebsocket(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.endpoint,
		http.Header{subscriptionKeyHeader: {c.key}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to speech service: %w", err)
	}

	return conn, nil
}
