package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"

	"github.com/membit-bot/botctl/internal/ansi"
	"github.com/membit-bot/botctl/internal/client"
)

type theme struct {
	title    lipgloss.Style
	label    lipgloss.Style
	muted    lipgloss.Style
	running  lipgloss.Style
	stopped  lipgloss.Style
	success  lipgloss.Style
	warning  lipgloss.Style
	failure  lipgloss.Style
	info     lipgloss.Style
	panel    lipgloss.Style
	notice   lipgloss.Style
	disabled lipgloss.Style
}

func newTheme() theme {
	return theme{
		title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		label:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		muted:    lipgloss.NewStyle().Faint(true),
		running:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		stopped:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		success:  lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		warning:  lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		failure:  lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		info:     lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
		panel:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8")).Padding(0, 1),
		notice:   lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		disabled: lipgloss.NewStyle().Faint(true).Strikethrough(true),
	}
}

func (t theme) level(l client.LogLevel) lipgloss.Style {
	switch l.Normalize() {
	case client.LevelSuccess:
		return t.success
	case client.LevelWarning:
		return t.warning
	case client.LevelError:
		return t.failure
	default:
		return t.info
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	width := m.width
	if width <= 0 {
		width = 80
	}

	sections := []string{
		m.viewHeader(),
		m.viewStats(),
		m.viewRun(width),
		m.panel("Configuration", m.viewConfig(), width),
	}

	if m.state.TerminalOpen {
		sections = append(sections, m.panel("Terminal", m.logs.View(), width))
	}

	if m.state.Notice != "" {
		sections = append(sections, m.theme.notice.Render(xansi.Truncate(ansi.Sanitize(m.state.Notice), width, "…")))
	}

	sections = append(sections, m.viewHelp())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) viewHeader() string {
	badge := m.theme.stopped.Render("● Stopped")
	if m.state.Status.Running {
		badge = m.theme.running.Render("● Running")
	}

	conn := m.theme.muted.Render("offline")
	if m.connected {
		conn = m.theme.success.Render("live")
	}

	return fmt.Sprintf("%s  %s  %s", m.theme.title.Render("Bot Dashboard"), badge, conn)
}

func (m Model) viewStats() string {
	s := Stats(m.state.Status)

	tiles := []string{
		m.tile("Success", s.Success, m.theme.success),
		m.tile("Errors", s.Errors, m.theme.failure),
		m.tile("Total", s.ComputedTotal, m.theme.info),
		m.tile("Server total", s.ServerTotal, m.theme.muted),
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, tiles...)
}

func (m Model) tile(label string, n int, style lipgloss.Style) string {
	body := lipgloss.JoinVertical(lipgloss.Center, style.Render(fmt.Sprintf("%d", n)), m.theme.label.Render(label))
	return m.theme.panel.Width(16).Align(lipgloss.Center).Render(body)
}

func (m Model) viewRun(width int) string {
	status := m.state.Status
	rows := [][2]string{
		{"Last run", orDash(status.LastRun)},
		{"Next run", orDash(status.NextRun)},
		{"Last tweet", ansi.Sanitize(LastTweet(status))},
	}

	if status.LastTweet != nil && status.LastTweet.URL != "" {
		rows = append(rows, [2]string{"URL", status.LastTweet.URL})
	}

	if status.LastError != nil && status.LastError.Message != "" {
		rows = append(rows, [2]string{"Last error", m.theme.failure.Render(ansi.Sanitize(status.LastError.Message))})
	}

	return m.panel("Activity", m.table(rows, width-6), width)
}

func (m Model) viewConfig() string {
	ready := m.theme.success.Render("API keys ready")
	if !m.state.CredentialsReady {
		ready = m.theme.warning.Render("API keys missing")
	}

	return m.table(ConfigSummary(m.state.Config), 0) + "\n" + ready
}

func (m Model) viewHelp() string {
	keys := m.keys
	keys.sync(Controls(m.state))

	terminal := keys.Terminal.Help().Desc
	if m.state.Unseen {
		terminal += " •"
	}

	parts := []string{
		m.help(keys.Start),
		m.help(keys.Stop),
		m.help(keys.RunOnce),
		m.theme.muted.Render(keys.Terminal.Help().Key + " " + terminal),
		m.help(keys.Reconnect),
		m.help(keys.Quit),
	}

	return strings.Join(parts, "  ")
}

func (m Model) help(b key.Binding) string {
	text := b.Help().Key + " " + b.Help().Desc
	if !b.Enabled() {
		return m.theme.disabled.Render(text)
	}

	return m.theme.muted.Render(text)
}

func (m Model) panel(title, body string, width int) string {
	return m.theme.panel.Width(max(width-2, 20)).Render(m.theme.label.Render(title) + "\n" + body)
}

// table aligns labels with display-width padding. A positive width clips values.
func (m Model) table(rows [][2]string, width int) string {
	labelWidth := 0
	for _, r := range rows {
		labelWidth = max(labelWidth, runewidth.StringWidth(r[0]))
	}

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		value := r[1]
		if width > 0 {
			value = xansi.Truncate(value, max(width-labelWidth-2, 10), "…")
		}

		lines = append(lines, m.theme.label.Render(runewidth.FillRight(r[0], labelWidth))+"  "+value)
	}

	return strings.Join(lines, "\n")
}

func (m Model) renderLogLines(width int) string {
	entries := m.state.Logs.Entries()
	if len(entries) == 0 {
		return m.theme.muted.Render("No activity yet")
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		line := fmt.Sprintf("[%s] %s %s", ansi.Sanitize(e.Timestamp), e.Level.Icon(), ansi.Sanitize(e.Message))
		lines = append(lines, m.theme.level(e.Level).Render(xansi.Truncate(line, width, "…")))
	}

	return strings.Join(lines, "\n")
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}

	return s
}
