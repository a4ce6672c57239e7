package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/koscakluka/ema-acss/core/texttospeech/acss"
	"github.com/muesli/reflow/wordwrap"
)

const (
	refreshInterval = 50 * time.Millisecond
	defaultWidth    = 60
)

var (
	spokenStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	currentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	sentenceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type connectedMsg struct {
	stream *acss.UtteranceStream
	err    error
}

type playbackDoneMsg struct {
	err error
}

type refreshMsg time.Time

type captionModel struct {
	ctx    context.Context
	cancel context.CancelFunc

	region     string
	synthesize synthesizer
	out        sink
	timeline   *timeline

	spinner    spinner.Model
	connecting bool
	width      int
	err        error
}

func newCaptionModel(ctx context.Context, region string, synthesize synthesizer, out sink) captionModel {
	ctx, cancel := context.WithCancel(ctx)
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = currentStyle

	return captionModel{
		ctx:        ctx,
		cancel:     cancel,
		region:     region,
		synthesize: synthesize,
		out:        out,
		timeline:   &timeline{},
		spinner:    s,
		connecting: true,
		width:      defaultWidth,
	}
}

func (m captionModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.connect)
}

func (m captionModel) connect() tea.Msg {
	stream, err := m.synthesize(m.ctx)
	return connectedMsg{stream: stream, err: err}
}

func (m captionModel) play(stream *acss.UtteranceStream) tea.Cmd {
	return func() tea.Msg {
		return playbackDoneMsg{err: speak(m.ctx, stream, m.out, m.timeline.add)}
	}
}

func refresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

func (m captionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.cancel()
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case connectedMsg:
		m.connecting = false
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		return m, tea.Batch(m.play(msg.stream), refresh())
	case playbackDoneMsg:
		m.err = msg.err
		m.cancel()
		return m, tea.Quit
	case refreshMsg:
		return m, refresh()
	case spinner.TickMsg:
		if !m.connecting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m captionModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", m.err)) + "\n"
	}
	if m.connecting {
		return fmt.Sprintf("%s Connecting to %s...\n", m.spinner.View(), m.region)
	}
	return renderCaption(m.timeline.at(m.out.Played()), m.width) + "\n" +
		statusStyle.Render("q to stop") + "\n"
}

// renderCaption wraps before styling so escape codes don't count towards the
// line width.
func renderCaption(c caption, width int) string {
	words := append(append([]string{}, c.Spoken...), c.Current)
	if c.Current == "" {
		words = words[:len(words)-1]
	}
	if len(words) == 0 {
		if c.Sentence == "" {
			return ""
		}
		return sentenceStyle.Render(wordwrap.String(c.Sentence, width))
	}

	lines := strings.Split(wordwrap.String(strings.Join(words, " "), width), "\n")
	currentLine := -1
	if c.Current != "" {
		currentLine = len(lines) - 1
	}
	for i, line := range lines {
		if i != currentLine {
			lines[i] = spokenStyle.Render(line)
			continue
		}
		head := strings.TrimSuffix(line, c.Current)
		lines[i] = spokenStyle.Render(head) + currentStyle.Render(c.Current)
	}
	return strings.Join(lines, "\n")
}

func speakWithUI(ctx context.Context, region string, synthesize synthesizer, out sink) error {
	model := newCaptionModel(ctx, region, synthesize, out)
	final, err := tea.NewProgram(model, tea.WithContext(ctx)).Run()
	model.cancel()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return err
	}
	return final.(captionModel).err
}
