package miniaudio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-acss/core/audio"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/koscakluka/ema-acss/core/audio/miniaudio"

var logger = otelslog.NewLogger(scopeName)

var ErrUnsupportedEncoding = errors.New("encoding not supported by miniaudio playback")

// Client plays raw audio on the default output device.
type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	playbackClient
}

func NewClient(encodingInfo audio.EncodingInfo) (*Client, error) {
	if encodingInfo.Format != audio.EncodingLinear16 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, encodingInfo.Format.Name())
	}

	audioCtx, err := malgo.InitContext(
		nil,
		malgo.ContextConfig{},
		func(message string) { logger.Debug("malgo", "message", message) },
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	client := Client{
		audioContext: audioCtx,
	}

	if err := client.playbackClient.Init(audioCtx, encodingInfo); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize playback client: %w", err)
	}

	if err := client.playbackClient.Start(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}

	return &client, nil
}

func (c *Client) Close() {
	_ = c.playbackClient.Uninit()
	_ = c.audioContext.Uninit()
	c.audioContext.Free()
}

func (c *Client) SendAudio(audio []byte) error {
	return c.playbackClient.SendAudio(audio)
}

func (c *Client) ClearBuffer() {
	c.playbackClient.ClearBuffer()
}

// Drain waits until everything sent so far reached the device.
func (c *Client) Drain(ctx context.Context) error {
	return c.queue.Drain(ctx)
}

// Played is the duration of audio handed to the device so far.
func (c *Client) Played() time.Duration {
	return c.queue.Played()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return c.queue.EncodingInfo()
}
