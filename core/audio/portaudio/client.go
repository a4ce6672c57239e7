package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-acss/core/audio"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/koscakluka/ema-acss/core/audio/portaudio"

var logger = otelslog.NewLogger(scopeName)

var ErrUnsupportedEncoding = errors.New("encoding not supported by portaudio playback")

// Client plays raw linear16 audio on the default output device. A background
// loop keeps the blocking stream fed, with silence when nothing is queued.
type Client struct {
	stream *portaudio.Stream
	queue  *audio.PlaybackQueue

	chunk []byte
	out   []int16

	stop context.CancelFunc
	done chan struct{}
}

func NewClient(encodingInfo audio.EncodingInfo, bufferSize int) (*Client, error) {
	if encodingInfo.Format != audio.EncodingLinear16 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, encodingInfo.Format.Name())
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	out := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(encodingInfo.SampleRate), bufferSize, out)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open PortAudio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to start PortAudio stream: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		stream: stream,
		queue:  audio.NewPlaybackQueue(encodingInfo),
		chunk:  make([]byte, bufferSize*2),
		out:    out,
		stop:   cancel,
		done:   make(chan struct{}),
	}
	go client.pump(ctx)

	return client, nil
}

func (c *Client) pump(ctx context.Context) {
	defer close(c.done)
	for ctx.Err() == nil {
		c.queue.Read(c.chunk)
		if err := binary.Read(bytes.NewReader(c.chunk), binary.LittleEndian, c.out); err != nil {
			logger.Warn("failed to decode audio chunk", "error", err)
			continue
		}
		if err := c.stream.Write(); err != nil {
			logger.Warn("failed to write to PortAudio stream", "error", err)
		}
	}
}

func (c *Client) Close() {
	c.stop()
	<-c.done
	_ = c.stream.Stop()
	_ = c.stream.Close()
	_ = portaudio.Terminate()
}

func (c *Client) SendAudio(audio []byte) error {
	c.queue.Write(audio)
	return nil
}

func (c *Client) ClearBuffer() {
	c.queue.Clear()
}

// Drain waits until everything sent so far reached the stream.
func (c *Client) Drain(ctx context.Context) error {
	return c.queue.Drain(ctx)
}

func (c *Client) Played() time.Duration {
	return c.queue.Played()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return c.queue.EncodingInfo()
}
