package audio

import "slices"

type ContainerKind string

const (
	ContainerRaw  ContainerKind = "raw"
	ContainerOgg  ContainerKind = "ogg"
	ContainerMP3  ContainerKind = "mp3"
	ContainerWebM ContainerKind = "webm"
)

type Codec string

const (
	CodecOpus Codec = "opus"
	CodecMP3  Codec = "mp3"
)

// Container is the packaging of synthesized audio. Raw containers carry an
// encoding, compressed containers carry a codec.
type Container struct {
	Kind     ContainerKind
	Encoding encodingFormat
	Codec    Codec
}

func RawContainer(encoding encodingFormat) Container {
	return Container{Kind: ContainerRaw, Encoding: encoding}
}

func OggContainer(codec Codec) Container {
	return Container{Kind: ContainerOgg, Codec: codec}
}

func MP3Container() Container {
	return Container{Kind: ContainerMP3, Codec: CodecMP3}
}

func WebMContainer(codec Codec) Container {
	return Container{Kind: ContainerWebM, Codec: codec}
}

func (c Container) String() string {
	switch {
	case c.Encoding != "":
		return string(c.Kind) + "/" + c.Encoding.Name()
	case c.Codec != "":
		return string(c.Kind) + "/" + string(c.Codec)
	}
	return string(c.Kind)
}

type Channels int

const (
	ChannelsMono   Channels = 1
	ChannelsStereo Channels = 2
)

// Format is an output format a synthesis provider agreed to produce. Name is
// the provider's canonical identifier for it.
type Format struct {
	Name       string
	Container  Container
	SampleRate uint32
	Channels   Channels
	Bitrate    *uint32
}

func (f Format) IsZero() bool {
	return f.Name == "" && f.SampleRate == 0
}

// EncodingInfo converts a raw format into playback encoding info. Compressed
// formats report false.
func (f Format) EncodingInfo() (EncodingInfo, bool) {
	if f.Container.Kind != ContainerRaw || f.Container.Encoding.ByteSize() <= 0 {
		return EncodingInfo{}, false
	}
	return EncodingInfo{SampleRate: int(f.SampleRate), Format: f.Container.Encoding}, true
}

// FormatPreference lists acceptable format properties in priority order. A
// nil or empty list accepts anything.
type FormatPreference struct {
	Containers  []Container
	SampleRates []uint32
	Channels    []Channels
	Bitrates    []uint32
}

func (p FormatPreference) WithPreferContainers(containers ...Container) FormatPreference {
	p.Containers = slices.Clone(containers)
	return p
}

func (p FormatPreference) WithPreferSampleRates(sampleRates ...uint32) FormatPreference {
	p.SampleRates = slices.Clone(sampleRates)
	return p
}

func (p FormatPreference) WithPreferChannels(channels ...Channels) FormatPreference {
	p.Channels = slices.Clone(channels)
	return p
}

func (p FormatPreference) WithPreferBitrates(bitrates ...uint32) FormatPreference {
	p.Bitrates = slices.Clone(bitrates)
	return p
}

// AcceptsChannels reports whether the preference allows the given channel
// layout.
func (p FormatPreference) AcceptsChannels(channels Channels) bool {
	return len(p.Channels) == 0 || slices.Contains(p.Channels, channels)
}
