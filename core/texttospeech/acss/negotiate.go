package acss

import "github.com/koscakluka/ema-acss/core/audio"

const defaultFormatName = "raw-48khz-16bit-mono-pcm"

// DefaultFormat is what the service produces when the caller has no container
// preference.
func DefaultFormat() audio.Format {
	return audio.Format{
		Name:       defaultFormatName,
		Container:  audio.RawContainer(audio.EncodingLinear16),
		SampleRate: 48000,
		Channels:   audio.ChannelsMono,
	}
}

// presetName looks up the service's name for a container at a sample rate.
// Every preset is mono.
func presetName(container audio.Container, sampleRate uint32) (string, bool) {
	switch container.Kind {
	case audio.ContainerRaw:
		switch container.Encoding {
		case audio.EncodingLinear16:
			switch sampleRate {
			case 8000:
				return "raw-8khz-16bit-mono-pcm", true
			case 16000:
				return "raw-16khz-16bit-mono-pcm", true
			case 22050:
				return "raw-22050hz-16bit-mono-pcm", true
			case 24000:
				return "raw-24khz-16bit-mono-pcm", true
			case 44100:
				return "raw-44100hz-16bit-mono-pcm", true
			case 48000:
				return "raw-48khz-16bit-mono-pcm", true
			}
		case audio.EncodingALaw:
			if sampleRate == 8000 {
				return "raw-8khz-8bit-mono-alaw", true
			}
		case audio.EncodingMulaw:
			if sampleRate == 8000 {
				return "raw-8khz-8bit-mono-mulaw", true
			}
		}
	case audio.ContainerOgg:
		if container.Codec != audio.CodecOpus {
			return "", false
		}
		switch sampleRate {
		case 16000:
			return "ogg-16khz-16bit-mono-opus", true
		case 24000:
			return "ogg-24khz-16bit-mono-opus", true
		case 48000:
			return "ogg-48khz-16bit-mono-opus", true
		}
	}
	return "", false
}

// defaultSampleRate is the best quality rate the container supports, used when
// the caller doesn't name any.
func defaultSampleRate(container audio.Container) (uint32, bool) {
	for _, rate := range []uint32{48000, 8000} {
		if _, ok := presetName(container, rate); ok {
			return rate, true
		}
	}
	return 0, false
}

// NegotiateAudioFormat picks the first container from the preference that the
// service can produce, with the caller's highest priority supported sample
// rate. ok is false when nothing in the preference can be served.
//
// Bitrate preferences are ignored, every supported preset has a fixed
// bitrate.
func NegotiateAudioFormat(pref audio.FormatPreference) (format audio.Format, ok bool) {
	if len(pref.Containers) == 0 {
		return DefaultFormat(), true
	}

	for _, container := range pref.Containers {
		if format, ok := matchContainer(container, pref); ok {
			return format, true
		}
	}
	return audio.Format{}, false
}

func matchContainer(container audio.Container, pref audio.FormatPreference) (audio.Format, bool) {
	if _, supported := defaultSampleRate(container); !supported {
		return audio.Format{}, false
	}
	// The service only produces mono audio
	if !pref.AcceptsChannels(audio.ChannelsMono) {
		return audio.Format{}, false
	}

	sampleRates := pref.SampleRates
	if len(sampleRates) == 0 {
		rate, _ := defaultSampleRate(container)
		sampleRates = []uint32{rate}
	}

	for _, rate := range sampleRates {
		if name, ok := presetName(container, rate); ok {
			return audio.Format{
				Name:       name,
				Container:  container,
				SampleRate: rate,
				Channels:   audio.ChannelsMono,
			}, true
		}
	}
	return audio.Format{}, false
}
