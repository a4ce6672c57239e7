package audio

import (
	"context"
	"sync"
	"time"
)

// PlaybackQueue buffers audio between a producer and a playback device and
// tracks how much of it the device has consumed, so timed metadata can be
// lined up with what is audible.
type PlaybackQueue struct {
	mu sync.Mutex

	encodingInfo EncodingInfo

	pending []byte
	played  int

	updateSignal chan struct{}
}

func NewPlaybackQueue(encodingInfo EncodingInfo) *PlaybackQueue {
	return &PlaybackQueue{
		encodingInfo: encodingInfo,
		updateSignal: make(chan struct{}, 1),
	}
}

func (q *PlaybackQueue) EncodingInfo() EncodingInfo {
	return q.encodingInfo
}

// Write queues a copy of audio for playback.
func (q *PlaybackQueue) Write(audio []byte) {
	q.mu.Lock()
	q.pending = append(q.pending, audio...)
	q.mu.Unlock()
}

// Read moves queued audio into out and pads the rest of out with silence. It
// returns the number of queued bytes that were consumed.
func (q *PlaybackQueue) Read(out []byte) int {
	q.mu.Lock()
	n := copy(out, q.pending)
	q.pending = q.pending[n:]
	if len(q.pending) == 0 {
		q.pending = nil
	}
	q.played += n
	q.mu.Unlock()

	if n < len(out) {
		silence := q.encodingInfo.SilenceValue()
		for i := n; i < len(out); i++ {
			out[i] = silence
		}
	}
	if n > 0 {
		q.signalUpdate()
	}
	return n
}

// Clear drops everything not yet played.
func (q *PlaybackQueue) Clear() {
	q.mu.Lock()
	q.pending = nil
	q.mu.Unlock()
	q.signalUpdate()
}

// Played is the duration of audio the device consumed so far.
func (q *PlaybackQueue) Played() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Duration(q.played, q.encodingInfo)
}

// Buffered is the duration of audio still waiting to be played.
func (q *PlaybackQueue) Buffered() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Duration(len(q.pending), q.encodingInfo)
}

// Drain blocks until all queued audio was handed to the device or ctx is
// done.
func (q *PlaybackQueue) Drain(ctx context.Context) error {
	for {
		q.mu.Lock()
		empty := len(q.pending) == 0
		q.mu.Unlock()
		if empty {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.updateSignal:
		}
	}
}

func (q *PlaybackQueue) signalUpdate() {
	select {
	case q.updateSignal <- struct{}{}:
	default:
	}
}

// Duration returns how long n bytes of mono audio play for.
func Duration(n int, encodingInfo EncodingInfo) time.Duration {
	bytesPerSecond := encodingInfo.BytesPerSecond()
	if bytesPerSecond <= 0 {
		return 0
	}
	return time.Duration(float64(n) / float64(bytesPerSecond) * float64(time.Second))
}

// Bytes returns how many bytes of mono audio play for duration d.
func Bytes(d time.Duration, encodingInfo EncodingInfo) int {
	return int(d.Seconds() * float64(encodingInfo.BytesPerSecond()))
}
