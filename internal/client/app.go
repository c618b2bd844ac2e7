package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fenggwsx/RoomGate/internal/config"
	"github.com/fenggwsx/RoomGate/internal/protocol"
)

const (
	commandPrefix  = "/"
	connectTimeout = 5 * time.Second
	sendTimeout    = 5 * time.Second
	maxEvents      = 500
)

type primaryView int

const (
	viewHome primaryView = iota
	viewEvents
	viewHelp
)

func (v primaryView) String() string {
	switch v {
	case viewEvents:
		return "events"
	case viewHelp:
		return "help"
	default:
		return "home"
	}
}

type logLevel int

const (
	logLevelInfo logLevel = iota
	logLevelError
)

type logEntry struct {
	label string
	body  string
	level logLevel
}

// eventEntry is one envelope shown in the events view.
type eventEntry struct {
	timestamp time.Time
	direction string
	event     string
	body      string
}

const (
	directionIn  = "<-"
	directionOut = "->"
)

// App implements tea.Model for the RoomGate watcher. It connects with a set
// of admission headers and lists every event the server delivers.
type App struct {
	cfg     config.ClientConfig
	headers map[string]string

	session      *Session
	statusOnline bool
	unauthorized bool

	view     primaryView
	events   []eventEntry
	viewport viewport.Model
	input    textinput.Model
	helper   help.Model
	styles   styleSet
	commands []commandSpec
	logLine  logEntry

	showHelp   bool
	helpView   string
	helpHeight int
	width      int
	height     int
}

// NewApp returns the watcher model.
func NewApp(cfg config.ClientConfig) *App {
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "/connect, /header name=value, /emit event {json}"
	input.Focus()

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[strings.ToLower(k)] = v
	}

	a := &App{
		cfg:      cfg,
		headers:  headers,
		view:     viewHome,
		viewport: viewport.New(0, 0),
		input:    input,
		helper:   help.New(),
		styles:   buildStyles(),
		commands: commandCatalog,
		logLine:  logEntry{label: "[INFO]", body: "Type /connect to reach " + cfg.ServerURL},
	}
	a.updateViewportContent()
	return a
}

// Init is part of the tea.Model interface.
func (a *App) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles user input and session events.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = m.Width, m.Height
		a.updateInputWidth()
		a.updateViewportSize()
		a.updateViewportContent()
		return a, nil
	case tea.KeyMsg:
		return a.handleKey(m)
	case connectResultMsg:
		return a, a.handleConnectResult(m)
	case envelopeMsg:
		if m.session != a.session {
			return a, nil
		}
		a.handleSessionEnvelope(m.envelope)
		return a, listenForMessages(a.session)
	case sessionClosedMsg:
		a.handleSessionClosed(m)
		return a, nil
	case sendResultMsg:
		if m.err != nil {
			a.logErrorf("Send %s failed: %v", m.envelope.Event, m.err)
			return a, nil
		}
		a.appendEvent(directionOut, m.envelope)
		return a, nil
	}

	var cmd tea.Cmd
	a.viewport, cmd = a.viewport.Update(msg)
	return a, cmd
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		a.closeSession()
		return a, tea.Quit
	case tea.KeyTab:
		a.handleTabCompletion()
		a.updateHelp()
		return a, nil
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	case tea.KeyEnter:
		value := a.input.Value()
		a.input.SetValue("")
		a.updateHelp()
		if value == "" {
			return a, nil
		}
		return a, a.executeCommand(value)
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	a.updateHelp()
	return a, cmd
}

func (a *App) handleConnectResult(msg connectResultMsg) tea.Cmd {
	if msg.err != nil {
		a.logErrorf("Connection to %s failed: %v", msg.session.URL(), msg.err)
		return nil
	}
	a.closeSession()
	a.session = msg.session
	a.statusOnline = true
	a.unauthorized = false
	a.view = viewEvents
	a.logf("Connected to %s", msg.session.URL())
	a.updateViewportContent()
	return listenForMessages(a.session)
}

func (a *App) handleSessionClosed(msg sessionClosedMsg) {
	if msg.session != a.session {
		return
	}
	a.session = nil
	a.statusOnline = false
	if a.unauthorized {
		a.logErrorf("Disconnected by server after admission failure")
		return
	}
	a.logf("Connection closed")
}

func (a *App) closeSession() {
	if a.session == nil {
		return
	}
	_ = a.session.Close()
	a.session = nil
	a.statusOnline = false
}

func (a *App) isConnected() bool {
	return a.session != nil
}

func (a *App) appendEvent(direction string, env protocol.Envelope) {
	ts := env.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	a.events = append(a.events, eventEntry{
		timestamp: ts,
		direction: direction,
		event:     env.Event,
		body:      formatPayload(env.Payload),
	})
	if len(a.events) > maxEvents {
		a.events = a.events[len(a.events)-maxEvents:]
	}
	if a.view == viewEvents {
		a.updateViewportContent()
	}
}

func (a *App) logf(format string, args ...any) {
	a.logLine = logEntry{label: "[INFO]", body: fmt.Sprintf(format, args...), level: logLevelInfo}
}

func (a *App) logErrorf(format string, args ...any) {
	a.logLine = logEntry{label: "[ERROR]", body: fmt.Sprintf(format, args...), level: logLevelError}
}

type connectResultMsg struct {
	session *Session
	err     error
}

type envelopeMsg struct {
	session  *Session
	envelope protocol.Envelope
}

type sessionClosedMsg struct {
	session *Session
}

type sendResultMsg struct {
	envelope protocol.Envelope
	err      error
}

func connectCommand(url string, headers map[string]string) tea.Cmd {
	return func() tea.Msg {
		session := NewSession(url, headers)
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		if err := session.Connect(ctx); err != nil {
			return connectResultMsg{session: session, err: err}
		}
		return connectResultMsg{session: session}
	}
}

func listenForMessages(session *Session) tea.Cmd {
	if session == nil {
		return nil
	}
	ch := session.Messages()
	return func() tea.Msg {
		env, ok := <-ch
		if !ok {
			return sessionClosedMsg{session: session}
		}
		return envelopeMsg{session: session, envelope: env}
	}
}

func sendCommand(session *Session, env protocol.Envelope) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		err := session.Send(ctx, env)
		return sendResultMsg{envelope: env, err: err}
	}
}
