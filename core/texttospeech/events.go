package texttospeech

// Kind names an utterance event type.
type Kind string

const (
	KindAudioChunk             Kind = "utterance.audio_chunk"
	KindWordBoundary           Kind = "utterance.word_boundary"
	KindSentenceBoundary       Kind = "utterance.sentence_boundary"
	KindBlendShapeVisemesChunk Kind = "utterance.blendshape_visemes_chunk"
)

// UtteranceEvent is a single item of a synthesis stream. The set of
// implementations is closed: AudioChunk, WordBoundary, SentenceBoundary and
// BlendShapeVisemesChunk.
type UtteranceEvent interface {
	Kind() Kind
	utteranceEvent()
}

// AudioChunk is a piece of synthesized audio in the negotiated format.
type AudioChunk struct {
	Audio []byte
}

func (AudioChunk) Kind() Kind      { return KindAudioChunk }
func (AudioChunk) utteranceEvent() {}

// WordBoundary marks when a word is spoken, relative to the start of the
// utterance audio.
type WordBoundary struct {
	FromMs float64
	ToMs   float64
	Text   string
}

func (WordBoundary) Kind() Kind      { return KindWordBoundary }
func (WordBoundary) utteranceEvent() {}

// SentenceBoundary marks when a sentence is spoken, relative to the start of
// the utterance audio.
type SentenceBoundary struct {
	FromMs float64
	ToMs   float64
	Text   string
}

func (SentenceBoundary) Kind() Kind      { return KindSentenceBoundary }
func (SentenceBoundary) utteranceEvent() {}

// BlendShapeVisemesChunk carries consecutive facial animation frames.
type BlendShapeVisemesChunk struct {
	Frames []BlendShapeVisemeFrame
}

func (BlendShapeVisemesChunk) Kind() Kind      { return KindBlendShapeVisemesChunk }
func (BlendShapeVisemesChunk) utteranceEvent() {}

type BlendShapeVisemeFrame struct {
	// OffsetMs is the frame position relative to the start of the utterance
	// audio
	OffsetMs    float64
	BlendShapes []BlendShape
}

type BlendShape struct {
	Key    string
	Weight float32
}
