package dashboard

import (
	"context"
	"errors"
	"log/slog"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/membit-bot/botctl/internal/client"
	"github.com/membit-bot/botctl/internal/livechannel"
	"github.com/membit-bot/botctl/internal/session"
)

// Notices shown for local conditions.
const (
	ThrottledNotice    = "Slow down: command ignored"
	DisconnectedNotice = "Disconnected from server (press c to reconnect)"
	NotConnectedNotice = "Not connected to server"
)

// Channel is the part of a live channel the dashboard drives.
type Channel interface {
	Events() <-chan livechannel.Event
	Emit(cmd livechannel.Command) error
	Close() error
}

// Dialer opens a live channel for one mount.
type Dialer func(ctx context.Context) (Channel, error)

// SettingsLoader fetches the configuration and credentials shown alongside status.
type SettingsLoader func(ctx context.Context) (client.BotConfig, client.Credentials, error)

// Recorder receives every applied event and every sent command.
type Recorder interface {
	Record(ev livechannel.Event) error
	RecordCommand(cmd livechannel.Command) error
}

// Options configure a Model.
type Options struct {
	Dial         Dialer
	LoadSettings SettingsLoader
	Recorder     Recorder
	Logger       *slog.Logger
}

type connectedMsg struct {
	gen int
	ch  Channel
}

type dialFailedMsg struct {
	gen int
	err error
}

type eventMsg struct {
	gen int
	ev  livechannel.Event
}

type channelClosedMsg struct {
	gen int
}

type settingsMsg struct {
	gen   int
	cfg   client.BotConfig
	creds client.Credentials
	err   error
}

type emitResultMsg struct {
	gen int
	cmd livechannel.Command
	err error
}

// Model is the Bubble Tea model for the dashboard. It owns at most one live
// channel at a time; gen identifies the current one so messages from a
// replaced channel are dropped.
type Model struct {
	state State
	opts  Options
	theme theme
	keys  keyMap
	logs  viewport.Model

	ch        Channel
	gen       int
	connected bool

	width    int
	height   int
	quitting bool
}

// New returns a dashboard model. Nothing is dialed until Init.
func New(opts Options) Model {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	return Model{
		state: NewState(),
		opts:  opts,
		theme: newTheme(),
		keys:  newKeyMap(),
		logs:  viewport.New(80, 10),
		gen:   1,
	}
}

// State returns the reduced dashboard state.
func (m Model) State() State {
	return m.state
}

// Route reports where the operator should go after the program exits.
func (m Model) Route() session.Route {
	return m.state.Route
}

// Connected reports whether a live channel is currently open.
func (m Model) Connected() bool {
	return m.connected
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(dialCmd(m.opts.Dial, m.gen), loadCmd(m.opts.LoadSettings, m.gen))
}

func dialCmd(dial Dialer, gen int) tea.Cmd {
	return func() tea.Msg {
		if dial == nil {
			return dialFailedMsg{gen: gen, err: errors.New("no live channel configured")}
		}

		ch, err := dial(context.Background())
		if err != nil {
			return dialFailedMsg{gen: gen, err: err}
		}

		return connectedMsg{gen: gen, ch: ch}
	}
}

func loadCmd(load SettingsLoader, gen int) tea.Cmd {
	if load == nil {
		return nil
	}

	return func() tea.Msg {
		cfg, creds, err := load(context.Background())
		return settingsMsg{gen: gen, cfg: cfg, creds: creds, err: err}
	}
}

func waitCmd(ch Channel, gen int) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch.Events()
		if !ok {
			return channelClosedMsg{gen: gen}
		}

		return eventMsg{gen: gen, ev: ev}
	}
}

func emitCmd(ch Channel, gen int, cmd livechannel.Command) tea.Cmd {
	return func() tea.Msg {
		return emitResultMsg{gen: gen, cmd: cmd, err: ch.Emit(cmd)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.quitting {
		if c, ok := msg.(connectedMsg); ok {
			_ = c.ch.Close()
		}

		return m, nil
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.logs.Width = max(msg.Width-4, 20)
		m.logs.Height = max(msg.Height/3, 5)
		m.refreshLogs()

		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case connectedMsg:
		if msg.gen != m.gen {
			_ = msg.ch.Close()
			return m, nil
		}

		m.ch = msg.ch
		m.connected = true
		m.opts.Logger.Debug("Live channel connected", slog.String("event.type", "dashboard.connected"))

		return m, waitCmd(m.ch, m.gen)

	case dialFailedMsg:
		if msg.gen != m.gen {
			return m, nil
		}

		m.opts.Logger.Warn("Live channel dial failed", slog.String("event.type", "dashboard.dial_failed"), slog.String("error", msg.err.Error()))

		var rejected *livechannel.RejectedError
		if errors.As(msg.err, &rejected) && rejected.Message == AuthRequiredMessage {
			m.state.Route = session.RouteLogin
			return m.quit()
		}

		m.state.Notice = client.UserMessage(msg.err)

		return m, nil

	case eventMsg:
		if msg.gen != m.gen {
			return m, nil
		}

		m.state = Apply(m.state, msg.ev)
		m.record(func(r Recorder) error { return r.Record(msg.ev) })

		if msg.ev.Kind == livechannel.KindLog {
			m.refreshLogs()
		}

		if m.state.Route != session.RouteDashboard {
			return m.quit()
		}

		return m, waitCmd(m.ch, m.gen)

	case channelClosedMsg:
		if msg.gen != m.gen {
			return m, nil
		}

		m.connected = false
		m.ch = nil
		m.state.Notice = DisconnectedNotice

		return m, nil

	case settingsMsg:
		if msg.gen != m.gen {
			return m, nil
		}

		if msg.err != nil {
			if client.IsUnauthorized(msg.err) {
				m.state.Route = session.RouteLogin
				return m.quit()
			}

			m.state.Notice = client.UserMessage(msg.err)

			return m, nil
		}

		m.state = WithSettings(m.state, msg.cfg, msg.creds)

		return m, nil

	case emitResultMsg:
		if msg.gen != m.gen {
			return m, nil
		}

		if msg.err == nil {
			m.record(func(r Recorder) error { return r.RecordCommand(msg.cmd) })
			return m, nil
		}

		switch {
		case errors.Is(msg.err, livechannel.ErrThrottled):
			m.state.Notice = ThrottledNotice
		case errors.Is(msg.err, livechannel.ErrNotConnected), errors.Is(msg.err, livechannel.ErrClosed):
			m.state.Notice = NotConnectedNotice
		default:
			m.state.Notice = msg.err.Error()
		}

		return m, nil
	}

	var cmd tea.Cmd
	m.logs, cmd = m.logs.Update(msg)

	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.keys.sync(Controls(m.state))

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.Start):
		m.state = OpenTerminal(m.state)
		m.refreshLogs()
		return m.emit(livechannel.CommandStart)

	case key.Matches(msg, m.keys.Stop):
		return m.emit(livechannel.CommandStop)

	case key.Matches(msg, m.keys.RunOnce):
		m.state = OpenTerminal(m.state)
		m.refreshLogs()
		return m.emit(livechannel.CommandRunOnce)

	case key.Matches(msg, m.keys.Terminal):
		if m.state.TerminalOpen {
			m.state = CloseTerminal(m.state)
		} else {
			m.state = OpenTerminal(m.state)
			m.refreshLogs()
		}

		return m, nil

	case key.Matches(msg, m.keys.Reconnect):
		return m.remount()
	}

	if m.state.TerminalOpen {
		var cmd tea.Cmd
		m.logs, cmd = m.logs.Update(msg)

		return m, cmd
	}

	return m, nil
}

func (m Model) emit(cmd livechannel.Command) (tea.Model, tea.Cmd) {
	if m.ch == nil {
		m.state.Notice = NotConnectedNotice
		return m, nil
	}

	m.state.Notice = ""

	return m, emitCmd(m.ch, m.gen, cmd)
}

// remount replaces the live channel. The previous one is closed first so a
// single mount never holds two connections.
func (m Model) remount() (tea.Model, tea.Cmd) {
	if m.ch != nil {
		_ = m.ch.Close()
		m.ch = nil
	}

	m.connected = false
	m.gen++
	m.state.Notice = ""

	return m, tea.Batch(dialCmd(m.opts.Dial, m.gen), loadCmd(m.opts.LoadSettings, m.gen))
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.ch != nil {
		_ = m.ch.Close()
		m.ch = nil
	}

	m.connected = false
	m.quitting = true

	return m, tea.Quit
}

func (m *Model) refreshLogs() {
	if !m.state.TerminalOpen {
		return
	}

	m.logs.SetContent(m.renderLogLines(m.logs.Width))
	m.logs.GotoBottom()
}

func (m Model) record(write func(Recorder) error) {
	if m.opts.Recorder == nil {
		return
	}

	if err := write(m.opts.Recorder); err != nil {
		m.opts.Logger.Debug("History write failed", slog.String("event.type", "dashboard.history_failed"), slog.String("error", err.Error()))
	}
}
