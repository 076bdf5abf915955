package app

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"codexbridge/internal/config"
	"codexbridge/internal/logging"
	"codexbridge/internal/prompt"
	"codexbridge/internal/types"
)

const (
	maxPartsPerTick  = 64
	tickInterval     = 50 * time.Millisecond
	minViewportWidth = 20
	minContentHeight = 4
	chromeHeight     = 4
)

// Generator is the streaming side of a language model.
type Generator interface {
	Stream(ctx context.Context, messages []prompt.Message) <-chan types.StreamPart
	ModelID() string
}

// Reconfigure builds the generator for a reloaded config.
type Reconfigure func(cfg config.CoreConfig) (Generator, error)

type Options struct {
	Generator   Generator
	Reconfigure Reconfigure
	Reloads     <-chan config.Reload
	Title       string
	Logger      logging.Logger
}

type statusLevel int

const (
	statusPlain statusLevel = iota
	statusInfo
	statusWarning
	statusError
)

type Model struct {
	generator   Generator
	reconfigure Reconfigure
	reloads     <-chan config.Reload
	title       string
	logger      logging.Logger

	viewport    viewport.Model
	input       textinput.Model
	loader      spinner.Model
	stream      *StreamController
	transcript  *Transcript
	status      string
	statusLevel statusLevel
	width       int
	height      int
	follow      bool
}

type tickMsg time.Time

type reloadMsg struct {
	reload config.Reload
	ok     bool
}

func NewModel(opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = "codexbridge"
	}
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "Ask codex…"
	input.Focus()
	vp := viewport.New(minViewportWidth, minContentHeight)
	loader := spinner.New()
	loader.Spinner = spinner.Line
	loader.Style = activityStyle

	m := Model{
		generator:   opts.Generator,
		reconfigure: opts.Reconfigure,
		reloads:     opts.Reloads,
		title:       title,
		logger:      logger,
		viewport:    vp,
		input:       input,
		loader:      loader,
		stream:      NewStreamController(maxPartsPerTick),
		transcript:  &Transcript{},
		follow:      true,
	}
	m.refreshContent()
	return m
}

// Run starts the chat UI on the alternate screen and blocks until it exits.
func Run(opts Options) error {
	model := NewModel(opts)
	p := tea.NewProgram(&model, tea.WithAltScreen())
	_, err := p.Run()
	model.stream.Reset()
	return err
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForReloadCmd(m.reloads))
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForReloadCmd(ch <-chan config.Reload) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		reload, ok := <-ch
		return reloadMsg{reload: reload, ok: ok}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tickMsg:
		return m, m.consumeStream()
	case spinner.TickMsg:
		if !m.stream.Active() {
			return m, nil
		}
		var cmd tea.Cmd
		m.loader, cmd = m.loader.Update(msg)
		return m, cmd
	case reloadMsg:
		if !msg.ok {
			return m, nil
		}
		m.applyReload(msg.reload)
		return m, waitForReloadCmd(m.reloads)
	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.follow = m.viewport.AtBottom()
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.stream.Interrupt() {
			m.setStatusWarning("interrupting…")
			m.logger.Info("chat_interrupt")
			return m, nil
		}
		if m.stream.Active() {
			return m, nil
		}
		return m, tea.Quit
	case tea.KeyEsc:
		if m.stream.Active() {
			return m, nil
		}
		return m, tea.Quit
	case tea.KeyCtrlY:
		answer := m.transcript.LastAnswer()
		if answer == "" {
			m.setStatusWarning("nothing to copy yet")
			return m, nil
		}
		m.copyWithStatus(answer, "copied last answer")
		return m, nil
	case tea.KeyEnter:
		return m, m.submit()
	case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.follow = m.viewport.AtBottom()
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) submit() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return nil
	}
	if m.stream.Active() {
		m.setStatusWarning("a generation is still running")
		return nil
	}
	if m.generator == nil {
		m.setStatusError("no model configured")
		return nil
	}
	m.input.SetValue("")
	m.transcript.AddUser(text)
	messages := m.transcript.Messages()
	m.transcript.BeginAssistant()

	ctx, cancel := context.WithCancel(context.Background())
	m.stream.Start(m.generator.Stream(ctx, messages), cancel)
	m.logger.Debug("chat_submit", logging.F("model", m.generator.ModelID()), logging.F("messages", len(messages)))
	m.setStatus("generating with " + m.generator.ModelID())
	m.follow = true
	m.refreshContent()
	return tea.Batch(tickCmd(), m.loader.Tick)
}

func (m *Model) consumeStream() tea.Cmd {
	if !m.stream.Active() {
		return nil
	}
	changed, closed := m.stream.ConsumeTick()
	if closed {
		m.transcript.FinishAssistant(m.stream)
		m.finishStatus()
		m.refreshContent()
		return nil
	}
	if changed {
		m.transcript.UpdateAssistant(m.stream.Text(), m.stream.Reasoning())
		m.refreshContent()
	}
	return tickCmd()
}

func (m *Model) finishStatus() {
	if err := m.stream.Err(); err != nil {
		m.setStatusError("generation failed: " + err.Error())
		return
	}
	for _, warning := range m.stream.Warnings() {
		m.setStatusWarning(warning.Message)
		return
	}
	if m.stream.Interrupted() {
		m.setStatusWarning("interrupted")
		return
	}
	m.setStatusInfo("done")
}

func (m *Model) applyReload(reload config.Reload) {
	if reload.Err != nil {
		m.setStatusWarning("config reload failed: " + reload.Err.Error())
		m.logger.Warn("chat_config_reload_failed", logging.F("error", reload.Err))
		return
	}
	if m.reconfigure == nil {
		return
	}
	next, err := m.reconfigure(reload.Config)
	if err != nil {
		m.setStatusWarning("config reload failed: " + err.Error())
		m.logger.Warn("chat_config_reload_failed", logging.F("error", err))
		return
	}
	m.generator = next
	m.setStatusInfo("config reloaded (" + next.ModelID() + ")")
	m.logger.Info("chat_config_reloaded", logging.F("model", next.ModelID()))
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	vpWidth := width
	if vpWidth < minViewportWidth {
		vpWidth = minViewportWidth
	}
	vpHeight := height - chromeHeight
	if vpHeight < minContentHeight {
		vpHeight = minContentHeight
	}
	m.viewport.Width = vpWidth
	m.viewport.Height = vpHeight
	m.input.Width = vpWidth - lipgloss.Width(m.input.Prompt) - 1
	m.refreshContent()
}

func (m *Model) refreshContent() {
	m.viewport.SetContent(m.transcript.Render(m.viewport.Width))
	if m.follow {
		m.viewport.GotoBottom()
	}
}

func (m *Model) setStatus(status string) {
	m.status = status
	m.statusLevel = statusPlain
}

func (m *Model) setStatusInfo(status string) {
	m.status = status
	m.statusLevel = statusInfo
}

func (m *Model) setStatusWarning(status string) {
	m.status = status
	m.statusLevel = statusWarning
}

func (m *Model) setStatusError(status string) {
	m.status = status
	m.statusLevel = statusError
}

func (m *Model) View() string {
	width := m.viewport.Width
	header := headerStyle.Render(m.title)
	if m.generator != nil {
		header += " " + helpStyle.Render(m.generator.ModelID())
	}
	lines := []string{
		header,
		m.viewport.View(),
		dividerStyle.Render(strings.Repeat("─", width)),
		m.input.View(),
		m.statusLine(width),
	}
	return strings.Join(lines, "\n")
}

func (m *Model) statusLine(width int) string {
	prefix := ""
	if m.stream.Active() {
		prefix = m.loader.View() + " "
	}
	hint := "enter send · ctrl+c interrupt/quit · ctrl+y copy"
	status := m.status
	if status == "" {
		status = hint
	}
	status = truncateStatus(status, width-runewidth.StringWidth(prefix))
	switch m.statusLevel {
	case statusInfo:
		status = statusInfoStyle.Render(status)
	case statusWarning:
		status = statusWarningStyle.Render(status)
	case statusError:
		status = statusErrorStyle.Render(status)
	default:
		status = statusStyle.Render(status)
	}
	return prefix + status
}

func truncateStatus(status string, width int) string {
	status = lineSanitizer.Sanitize(status)
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(status) <= width {
		return status
	}
	return runewidth.Truncate(status, width, "…")
}
