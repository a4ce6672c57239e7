package acss

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-acss/core/texttospeech/acss"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	framesReceived, _ = meter.Int64Counter("acss.frames.received",
		metric.WithDescription("Websocket frames received from the synthesis service"))
	eventsEmitted, _ = meter.Int64Counter("acss.events.emitted",
		metric.WithDescription("Utterance events handed to the caller"))
	audioBytes, _ = meter.Int64Counter("acss.audio.bytes",
		metric.WithDescription("Synthesized audio bytes received"), metric.WithUnit("By"))
)
