package texttospeech

const DefaultLanguage = "en-US"

type UtteranceConfig struct {
	// EmitWordBoundaryEvents asks the provider to report when each word is
	// spoken
	EmitWordBoundaryEvents bool
	// EmitSentenceBoundaryEvents asks the provider to report when each
	// sentence is spoken
	EmitSentenceBoundaryEvents bool
	// Voice is the provider specific voice name. Only used when the input is
	// plain text, markup carries its own voice.
	Voice string
	// Language is the language tag used when wrapping plain text in markup
	Language string
}

type UtteranceOption func(*UtteranceConfig)

func NewUtteranceConfig(opts ...UtteranceOption) UtteranceConfig {
	config := UtteranceConfig{Language: DefaultLanguage}
	for _, opt := range opts {
		opt(&config)
	}
	return config
}

func WithWordBoundaryEvents(enabled bool) UtteranceOption {
	return func(c *UtteranceConfig) { c.EmitWordBoundaryEvents = enabled }
}

func WithSentenceBoundaryEvents(enabled bool) UtteranceOption {
	return func(c *UtteranceConfig) { c.EmitSentenceBoundaryEvents = enabled }
}

func WithVoice(voice string) UtteranceOption {
	return func(c *UtteranceConfig) { c.Voice = voice }
}

func WithLanguage(language string) UtteranceOption {
	return func(c *UtteranceConfig) {
		if language == "" {
			// TODO: Issue warning
			return
		}
		c.Language = language
	}
}
