package main

import (
	"context"
	"sync"
	"time"

	"github.com/koscakluka/ema-acss/core/texttospeech"
	"github.com/koscakluka/ema-acss/core/texttospeech/acss"
)

type synthesizer func(ctx context.Context) (*acss.UtteranceStream, error)

// timeline collects boundaries as they arrive so captions can follow the
// playback position.
type timeline struct {
	mu        sync.Mutex
	words     []texttospeech.WordBoundary
	sentences []texttospeech.SentenceBoundary
	visemes   int
}

func (t *timeline) add(event texttospeech.UtteranceEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch event := event.(type) {
	case texttospeech.WordBoundary:
		t.words = append(t.words, event)
	case texttospeech.SentenceBoundary:
		t.sentences = append(t.sentences, event)
	case texttospeech.BlendShapeVisemesChunk:
		t.visemes += len(event.Frames)
	}
}

// caption is what should be on screen at a playback position.
type caption struct {
	// Sentence is the sentence being spoken, empty without sentence boundaries
	Sentence string
	// Spoken are the words of the current sentence already said
	Spoken []string
	// Current is the word being said right now, if any
	Current string
}

func (t *timeline) at(position time.Duration) caption {
	t.mu.Lock()
	defer t.mu.Unlock()

	ms := float64(position) / float64(time.Millisecond)
	var c caption

	fromMs, toMs := 0.0, -1.0
	for _, sentence := range t.sentences {
		if sentence.FromMs > ms {
			break
		}
		c.Sentence = sentence.Text
		fromMs, toMs = sentence.FromMs, sentence.ToMs
	}

	for _, word := range t.words {
		if word.FromMs > ms {
			break
		}
		if word.FromMs < fromMs || (toMs >= 0 && word.FromMs >= toMs) {
			continue
		}
		if ms < word.ToMs {
			c.Current = word.Text
			continue
		}
		c.Spoken = append(c.Spoken, word.Text)
	}

	return c
}

// speak drains the stream into out, handing everything but audio to onEvent,
// and waits for playback to finish.
func speak(ctx context.Context, stream *acss.UtteranceStream, out sink, onEvent func(texttospeech.UtteranceEvent)) error {
	for event, err := range stream.Events(ctx) {
		if err != nil {
			return err
		}
		if chunk, ok := event.(texttospeech.AudioChunk); ok {
			if err := out.SendAudio(chunk.Audio); err != nil {
				return err
			}
			continue
		}
		onEvent(event)
	}
	return out.Drain(ctx)
}
