package client

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	figure "github.com/common-nighthawk/go-figure"
	"github.com/mattn/go-runewidth"
)

var homeContent = buildHomeContent()

type styleSet struct {
	title         lipgloss.Style
	view          lipgloss.Style
	statusOnline  lipgloss.Style
	statusOffline lipgloss.Style
	label         lipgloss.Style
	value         lipgloss.Style
	logLabel      lipgloss.Style
	logBody       lipgloss.Style
	logLabelError lipgloss.Style
	logBodyError  lipgloss.Style
	help          lipgloss.Style
	eventIn       lipgloss.Style
	eventOut      lipgloss.Style
}

// View renders the terminal UI.
func (a *App) View() string {
	var b strings.Builder

	b.WriteString(a.viewport.View())
	b.WriteString("\n")

	if a.showHelp && a.helpView != "" {
		b.WriteString(a.styles.help.Render(a.helpView))
		b.WriteString("\n")
	}

	b.WriteString(a.input.View())
	b.WriteString("\n")
	b.WriteString(a.logLineView())
	b.WriteString("\n")
	b.WriteString(a.statusLine())

	return b.String()
}

func (a *App) updateViewportContent() {
	switch a.view {
	case viewHome:
		a.viewport.SetContent(homeContent)
	case viewEvents:
		if len(a.events) == 0 {
			a.viewport.SetContent("No events yet. Broadcasts addressed to this connection's room show up here.")
		} else {
			a.viewport.SetContent(a.renderEvents())
		}
		a.viewport.GotoBottom()
	case viewHelp:
		a.viewport.SetContent(a.renderHelpView())
	}
}

func (a *App) updateViewportSize() {
	if a.height == 0 {
		return
	}
	const fixed = 3
	height := a.height - fixed - a.helpHeight
	if height < 3 {
		height = 3
	}
	a.viewport.Height = height
	a.viewport.Width = a.width
}

func (a *App) updateInputWidth() {
	width := a.width
	if width <= 0 {
		width = 60
	}
	usable := width - lipgloss.Width(a.input.Prompt) - 1
	if usable < 10 {
		usable = 10
	}
	a.input.Width = usable
}

func (a *App) updateHelp() {
	value := a.input.Value()
	if value == "" || !strings.HasPrefix(value, commandPrefix) {
		a.setHelpView("")
		return
	}

	token := value
	if idx := strings.IndexAny(value, " \t"); idx >= 0 {
		token = value[:idx]
	}

	bindings := a.matchingBindings(token)
	if len(bindings) == 0 {
		a.setHelpView("")
		return
	}
	a.helper.Width = a.width
	a.setHelpView(strings.TrimRight(a.helper.View(dynamicKeyMap{keys: bindings}), "\n"))
}

func (a *App) setHelpView(view string) {
	a.showHelp = view != ""
	a.helpView = view
	a.helpHeight = countLines(view)
	a.updateViewportSize()
}

func (a *App) matchingBindings(prefix string) []key.Binding {
	prefix = strings.ToLower(prefix)
	var bindings []key.Binding
	for _, c := range a.commands {
		if strings.HasPrefix(c.trigger, prefix) {
			bindings = append(bindings, key.NewBinding(
				key.WithKeys(c.trigger),
				key.WithHelp(c.usage, c.description),
			))
		}
	}
	return bindings
}

func (a *App) statusLine() string {
	status := "OFFLINE"
	style := a.styles.statusOffline
	if a.statusOnline {
		status = "ONLINE"
		style = a.styles.statusOnline
	}

	parts := []string{
		a.styles.title.Render("RoomGate"),
		a.styles.view.Render(strings.ToUpper(a.view.String())),
		style.Render(status),
		a.styles.label.Render("Server") + ": " + a.styles.value.Render(a.cfg.ServerURL),
		a.styles.label.Render("Headers") + ": " + a.styles.value.Render(fmt.Sprintf("%d", len(a.headers))),
		a.styles.label.Render("Events") + ": " + a.styles.value.Render(fmt.Sprintf("%d", len(a.events))),
	}
	return strings.Join(parts, " | ")
}

func (a *App) logLineView() string {
	labelStyle := a.styles.logLabel
	bodyStyle := a.styles.logBody
	if a.logLine.level == logLevelError {
		labelStyle = a.styles.logLabelError
		bodyStyle = a.styles.logBodyError
	}
	return labelStyle.Render(a.logLine.label) + " " + bodyStyle.Render(a.logLine.body)
}

func buildStyles() styleSet {
	base := lipgloss.NewStyle()
	return styleSet{
		title:         base.Foreground(lipgloss.Color("13")).Bold(true),
		view:          base.Foreground(lipgloss.Color("14")).Bold(true),
		statusOnline:  base.Foreground(lipgloss.Color("10")).Bold(true),
		statusOffline: base.Foreground(lipgloss.Color("9")).Bold(true),
		label:         base.Foreground(lipgloss.Color("8")),
		value:         base.Foreground(lipgloss.Color("15")),
		logLabel:      base.Foreground(lipgloss.Color("11")).Bold(true),
		logBody:       base.Foreground(lipgloss.Color("7")),
		logLabelError: base.Foreground(lipgloss.Color("9")).Bold(true),
		logBodyError:  base.Foreground(lipgloss.Color("9")),
		help:          base.Foreground(lipgloss.Color("12")),
		eventIn:       base.Foreground(lipgloss.Color("10")),
		eventOut:      base.Foreground(lipgloss.Color("12")),
	}
}

func (a *App) renderEvents() string {
	width := a.viewport.Width
	if width <= 0 {
		width = a.width
	}
	var b strings.Builder
	for i, entry := range a.events {
		style := a.styles.eventIn
		if entry.direction == directionOut {
			style = a.styles.eventOut
		}
		header := fmt.Sprintf("[%s %s %s]", entry.timestamp.Format("15:04:05.000"), entry.direction, entry.event)
		b.WriteString(style.Render(header))
		if entry.body != "" {
			b.WriteString("\n")
			b.WriteString(strings.Join(wrapLines([]string{entry.body}, width), "\n"))
		}
		if i < len(a.events)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (a *App) renderHelpView() string {
	var b strings.Builder
	b.WriteString("RoomGate Watcher Commands\n\n")
	for _, c := range a.commands {
		b.WriteString(fmt.Sprintf("%-22s %s\n", c.usage, c.description))
	}
	b.WriteString("\nHeaders\n\n")
	names := make([]string, 0, len(a.headers))
	for name := range a.headers {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		b.WriteString("(none)\n")
	}
	for _, name := range names {
		b.WriteString(fmt.Sprintf("%-22s %s\n", name, a.headers[name]))
	}
	return strings.TrimRight(b.String(), "\n")
}

func buildHomeContent() string {
	fig := figure.NewColorFigure("ROOM GATE", "3-d", "green", true)
	art := strings.TrimRight(fig.String(), "\n")
	info := []string{
		"Use /header name=value to set the admission headers.",
		"Use /connect to open a socket with those headers.",
		"Admitted connections join the room derived from their headers.",
		"Use /events to watch what the server delivers.",
		"Use /help to browse all commands.",
	}
	return art + "\n\n" + strings.Join(info, "\n")
}

func wrapLines(lines []string, width int) []string {
	if width <= 0 {
		return lines
	}
	const minWidth = 10
	if width < minWidth {
		width = minWidth
	}

	wrapped := make([]string, 0, len(lines))
	for _, line := range lines {
		segment := line
		if segment == "" {
			wrapped = append(wrapped, "")
			continue
		}
		for len(segment) > 0 {
			if runewidth.StringWidth(segment) <= width {
				wrapped = append(wrapped, segment)
				break
			}
			cut := wrapCutIndex(segment, width)
			part := strings.TrimRight(segment[:cut], " ")
			if part == "" && cut > 0 {
				part = segment[:cut]
			}
			wrapped = append(wrapped, part)
			segment = strings.TrimLeft(segment[cut:], " ")
		}
	}
	return wrapped
}

func wrapCutIndex(s string, limit int) int {
	var width int
	lastSpace := -1
	for i, r := range s {
		rw := runewidth.RuneWidth(r)
		if width+rw > limit {
			if lastSpace >= 0 {
				return lastSpace + 1
			}
			if width == 0 {
				return i + len(string(r))
			}
			return i
		}
		width += rw
		if unicode.IsSpace(r) {
			lastSpace = i
		}
	}
	return len(s)
}

type dynamicKeyMap struct {
	keys []key.Binding
}

func (d dynamicKeyMap) ShortHelp() []key.Binding {
	return d.keys
}

func (d dynamicKeyMap) FullHelp() [][]key.Binding {
	if len(d.keys) == 0 {
		return [][]key.Binding{}
	}
	return [][]key.Binding{d.keys}
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}
