// Package main provides speak, a command that synthesizes text with the
// cognitive speech service and plays it back with live captions.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/koscakluka/ema-acss/core/audio"
	"github.com/koscakluka/ema-acss/core/texttospeech"
	"github.com/koscakluka/ema-acss/core/texttospeech/acss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	voice      string
	language   string
	sampleRate uint32
	container  string
	backend    string
	outPath    string
	noUI       bool
	words      bool
	sentences  bool
	debug      bool

	rootCmd = &cobra.Command{
		Use:          "speak TEXT",
		Short:        "Speak text through the cognitive speech service",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE:         execute,
	}
)

func init() {
	rootCmd.Flags().StringVar(&voice, "voice", "en-US-JennyNeural", "voice name")
	rootCmd.Flags().StringVar(&language, "lang", texttospeech.DefaultLanguage, "document language")
	rootCmd.Flags().Uint32Var(&sampleRate, "rate", 0, "preferred sample rate in Hz (0 lets the service pick)")
	rootCmd.Flags().StringVar(&container, "container", "pcm", "audio container: pcm, alaw, mulaw, ogg or mp3")
	rootCmd.Flags().StringVar(&backend, "backend", "miniaudio", "playback backend: miniaudio or portaudio")
	rootCmd.Flags().StringVarP(&outPath, "out", "o", "", "write audio to a file instead of playing it")
	rootCmd.Flags().BoolVar(&noUI, "no-ui", false, "print captions as log lines")
	rootCmd.Flags().BoolVar(&words, "words", true, "request word boundaries")
	rootCmd.Flags().BoolVar(&sentences, "sentences", true, "request sentence boundaries")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")

	for _, name := range []string{"voice", "lang", "rate", "container", "backend", "no-ui", "words", "sentences", "debug"} {
		_ = viper.BindPFlag(name, rootCmd.Flags().Lookup(name))
	}
	viper.SetEnvPrefix("speak")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func main() {
	// Credentials usually live in a local .env, a missing file is fine
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func execute(cmd *cobra.Command, args []string) error {
	voice = viper.GetString("voice")
	language = viper.GetString("lang")
	sampleRate = viper.GetUint32("rate")
	container = viper.GetString("container")
	backend = viper.GetString("backend")
	noUI = viper.GetBool("no-ui")
	words = viper.GetBool("words")
	sentences = viper.GetBool("sentences")
	if viper.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}

	client, err := acss.NewTextToSpeechClientFromEnv()
	if err != nil {
		return err
	}

	pref, err := formatPreference(container, sampleRate)
	if err != nil {
		return err
	}
	format, ok := client.NegotiateAudioFormat(pref)
	if !ok {
		return fmt.Errorf("no supported audio format for %s at %d Hz", container, sampleRate)
	}
	log.Debug("negotiated audio format", "format", format.Name, "region", client.Region())

	out, err := openSink(format, backend, outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	text := strings.Join(args, " ")
	opts := []texttospeech.UtteranceOption{
		texttospeech.WithVoice(voice),
		texttospeech.WithLanguage(language),
		texttospeech.WithWordBoundaryEvents(words),
		texttospeech.WithSentenceBoundaryEvents(sentences),
	}
	synthesize := func(ctx context.Context) (*acss.UtteranceStream, error) {
		return client.SynthesizeTextStream(ctx, text, format, opts...)
	}

	ctx := cmd.Context()
	if noUI {
		err = speakPlain(ctx, synthesize, out)
	} else {
		err = speakWithUI(ctx, client.Region(), synthesize, out)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func formatPreference(container string, sampleRate uint32) (audio.FormatPreference, error) {
	pref := audio.FormatPreference{}.WithPreferChannels(audio.ChannelsMono)
	if sampleRate != 0 {
		pref = pref.WithPreferSampleRates(sampleRate)
	}

	switch container {
	case "pcm":
		return pref.WithPreferContainers(audio.RawContainer(audio.EncodingLinear16)), nil
	case "alaw":
		return pref.WithPreferContainers(audio.RawContainer(audio.EncodingALaw)), nil
	case "mulaw":
		return pref.WithPreferContainers(audio.RawContainer(audio.EncodingMulaw)), nil
	case "ogg":
		return pref.WithPreferContainers(audio.OggContainer(audio.CodecOpus)), nil
	case "mp3":
		return pref.WithPreferContainers(audio.MP3Container()), nil
	default:
		return audio.FormatPreference{}, fmt.Errorf("unknown container %q", container)
	}
}
