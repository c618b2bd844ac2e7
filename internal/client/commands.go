package client

import (
	"encoding/json"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fenggwsx/RoomGate/internal/config"
	"github.com/fenggwsx/RoomGate/internal/protocol"
)

type commandSpec struct {
	trigger     string
	usage       string
	description string
}

var commandCatalog = []commandSpec{
	{trigger: "/connect", usage: "/connect [url]", description: "Connect with the current headers"},
	{trigger: "/disconnect", usage: "/disconnect", description: "Close the connection"},
	{trigger: "/header", usage: "/header name=value", description: "Set an admission header, empty value removes it"},
	{trigger: "/headers", usage: "/headers", description: "List the admission headers"},
	{trigger: "/emit", usage: "/emit <event> [json]", description: "Send an event to the server"},
	{trigger: "/events", usage: "/events", description: "Show received events"},
	{trigger: "/clear", usage: "/clear", description: "Clear the event list"},
	{trigger: "/help", usage: "/help", description: "Show all commands"},
	{trigger: "/quit", usage: "/quit", description: "Exit the watcher"},
}

func (a *App) executeCommand(raw string) tea.Cmd {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, commandPrefix) {
		a.logErrorf("Commands start with %s, try /help", commandPrefix)
		return nil
	}

	name, rest, _ := strings.Cut(raw, " ")
	rest = strings.TrimSpace(rest)

	switch name {
	case "/connect":
		url := a.cfg.ServerURL
		if rest != "" {
			url = rest
			a.cfg.ServerURL = rest
		}
		a.logf("Connecting to %s ...", url)
		return connectCommand(url, a.snapshotHeaders())
	case "/disconnect":
		if !a.isConnected() {
			a.logErrorf("Not connected")
			return nil
		}
		a.closeSession()
		a.logf("Disconnected")
	case "/header":
		a.setHeader(rest)
	case "/headers":
		a.logf("Headers: %s", a.describeHeaders())
	case "/emit":
		return a.emit(rest)
	case "/events":
		a.view = viewEvents
		a.updateViewportContent()
	case "/clear":
		a.events = nil
		a.updateViewportContent()
		a.logf("Cleared events")
	case "/help":
		a.view = viewHelp
		a.updateViewportContent()
	case "/quit", "/exit":
		a.closeSession()
		return tea.Quit
	default:
		a.logErrorf("Unknown command %s", name)
	}
	return nil
}

func (a *App) setHeader(arg string) {
	if arg == "" {
		a.logErrorf("Usage: /header name=value")
		return
	}
	pairs, err := config.ParseHeaderPairs([]string{arg})
	if err != nil {
		a.logErrorf("%v", err)
		return
	}
	for name, value := range pairs {
		name = strings.ToLower(name)
		if value == "" {
			delete(a.headers, name)
			a.logf("Removed header %s, reconnect to apply", name)
			continue
		}
		a.headers[name] = value
		a.logf("Set header %s=%s, reconnect to apply", name, value)
	}
}

func (a *App) emit(arg string) tea.Cmd {
	if !a.isConnected() {
		a.logErrorf("Not connected. Use /connect first.")
		return nil
	}
	event, body, _ := strings.Cut(arg, " ")
	if event == "" {
		a.logErrorf("Usage: /emit <event> [json]")
		return nil
	}

	env := protocol.Envelope{Event: event}
	if body = strings.TrimSpace(body); body != "" {
		var payload any
		if err := json.Unmarshal([]byte(body), &payload); err != nil {
			payload = body
		}
		env.Payload = payload
	}
	return sendCommand(a.session, env)
}

func (a *App) snapshotHeaders() map[string]string {
	out := make(map[string]string, len(a.headers))
	for k, v := range a.headers {
		out[k] = v
	}
	return out
}

func (a *App) describeHeaders() string {
	if len(a.headers) == 0 {
		return "(none)"
	}
	names := make([]string, 0, len(a.headers))
	for name := range a.headers {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + a.headers[name]
	}
	return strings.Join(parts, ", ")
}
