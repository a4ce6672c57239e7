package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/koscakluka/ema-acss/core/audio"
	"github.com/koscakluka/ema-acss/core/audio/miniaudio"
	"github.com/koscakluka/ema-acss/core/audio/portaudio"
)

// sink receives synthesized audio and reports how much of it was played.
type sink interface {
	SendAudio(audio []byte) error
	Drain(ctx context.Context) error
	Played() time.Duration
	Close()
}

const portaudioBufferSize = 1024

func openSink(format audio.Format, backend, outPath string) (sink, error) {
	if outPath != "" {
		file, err := newFileSink(outPath)
		if err != nil {
			return nil, err
		}
		return file, nil
	}

	encodingInfo, ok := format.EncodingInfo()
	if !ok {
		return nil, fmt.Errorf("%s can't be played directly, use --out to save it", format.Name)
	}

	switch backend {
	case "miniaudio":
		client, err := miniaudio.NewClient(encodingInfo)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "portaudio":
		client, err := portaudio.NewClient(encodingInfo, portaudioBufferSize)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown playback backend %q", backend)
	}
}

// fileSink writes audio as received. Encoded formats have no fixed byte rate
// so playback time is approximated by wall clock time since the first chunk.
type fileSink struct {
	file *os.File

	mu      sync.Mutex
	started time.Time
}

func newFileSink(path string) (*fileSink, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio file: %w", err)
	}
	return &fileSink{file: file}, nil
}

func (s *fileSink) SendAudio(audio []byte) error {
	s.mu.Lock()
	if s.started.IsZero() {
		s.started = time.Now()
	}
	s.mu.Unlock()

	if _, err := s.file.Write(audio); err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}
	return nil
}

func (s *fileSink) Drain(context.Context) error {
	return s.file.Sync()
}

func (s *fileSink) Played() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started.IsZero() {
		return 0
	}
	return time.Since(s.started)
}

func (s *fileSink) Close() {
	_ = s.file.Close()
}
