package main

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/koscakluka/ema-acss/core/texttospeech"
)

func speakPlain(ctx context.Context, synthesize synthesizer, out sink) error {
	stream, err := synthesize(ctx)
	if err != nil {
		return err
	}
	log.Debug("synthesis started", "request_id", stream.RequestID())

	err = speak(ctx, stream, out, func(event texttospeech.UtteranceEvent) {
		switch event := event.(type) {
		case texttospeech.WordBoundary:
			log.Info("word", "from_ms", event.FromMs, "to_ms", event.ToMs, "text", event.Text)
		case texttospeech.SentenceBoundary:
			log.Info("sentence", "from_ms", event.FromMs, "to_ms", event.ToMs, "text", event.Text)
		case texttospeech.BlendShapeVisemesChunk:
			log.Debug("visemes", "frames", len(event.Frames))
		}
	})
	if err != nil {
		return err
	}

	log.Info("done", "played", out.Played(), "stream_id", stream.StreamID())
	return nil
}
