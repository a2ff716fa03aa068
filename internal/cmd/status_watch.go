package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"

	"github.com/byokey/byokey/internal/statusfeed"
)

var (
	watchHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	watchTimeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	watchOkStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	watchFailStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	watchFooterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// eventMsg wraps a statusfeed.Event as a tea.Msg; connClosedMsg reports a
// read failure that ends the feed (the dial itself happens before the
// bubbletea program starts, so it's reported directly, not as a tea.Msg).
type eventMsg statusfeed.Event
type connClosedMsg struct{ err error }

// watchModel is the bubbletea model for `byokey status --watch`: a scrolling
// log of statusfeed.Event lines inside a bubbles viewport, styled with
// lipgloss, fed by a tea.Cmd (readNextEvent) that reads one websocket frame
// at a time.
type watchModel struct {
	url      string
	conn     *websocket.Conn
	vp       viewport.Model
	lines    []string
	ready    bool
	quitting bool
	err      error
}

func newWatchModel(url string, conn *websocket.Conn) watchModel {
	return watchModel{url: url, conn: conn}
}

func (m watchModel) Init() tea.Cmd {
	return readNextEvent(m.conn)
}

// readNextEvent blocks on one ReadJSON call and reports the result as a
// tea.Msg; Update re-issues this command after every successful read so the
// program keeps consuming the feed one frame at a time.
func readNextEvent(conn *websocket.Conn) tea.Cmd {
	return func() tea.Msg {
		var ev statusfeed.Event
		if err := conn.ReadJSON(&ev); err != nil {
			return connClosedMsg{err: err}
		}
		return eventMsg(ev)
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		headerHeight := 2
		footerHeight := 2
		if !m.ready {
			m.vp = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.ready = true
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = msg.Height - headerHeight - footerHeight
		}
		m.vp.SetContent(strings.Join(m.lines, "\n"))
		return m, nil

	case eventMsg:
		m.lines = append(m.lines, renderEvent(statusfeed.Event(msg)))
		m.vp.SetContent(strings.Join(m.lines, "\n"))
		m.vp.GotoBottom()
		return m, readNextEvent(m.conn)

	case connClosedMsg:
		m.err = msg.err
		m.quitting = true
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

func renderEvent(ev statusfeed.Event) string {
	stamp := watchTimeStyle.Render(ev.At.Format(time.Kitchen))
	style := watchOkStyle
	switch ev.Type {
	case statusfeed.EventAuthFailed, statusfeed.EventRequestFailed:
		style = watchFailStyle
	}
	detail := string(ev.Type)
	if ev.Provider != "" {
		detail += " " + string(ev.Provider)
	}
	if ev.AccountID != "" {
		detail += " " + ev.AccountID
	}
	if ev.Message != "" {
		detail += ": " + ev.Message
	}
	return fmt.Sprintf("%s  %s", stamp, style.Render(detail))
}

func (m watchModel) View() string {
	if !m.ready {
		return "initializing...\n"
	}
	header := watchHeaderStyle.Render(fmt.Sprintf("byokey status --watch  %s", m.url))
	footer := watchFooterStyle.Render("q to quit")
	return fmt.Sprintf("%s\n%s\n%s", header, m.vp.View(), footer)
}

// watchStatusFeed dials the server's own /status/ws route the same way any
// other client would, rather than reaching into the in-process Hub: the CLI
// and the server are always separate processes once serve is running.
func watchStatusFeed(host string, port int) int {
	url := fmt.Sprintf("ws://%s:%d/status/ws", host, port)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "byokey: connecting to %s: %v\n", url, err)
		return ExitUserError
	}
	defer conn.Close()

	program := tea.NewProgram(newWatchModel(url, conn), tea.WithAltScreen())
	final, err := program.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "byokey: status feed program error: %v\n", err)
		return ExitUserError
	}
	if m, ok := final.(watchModel); ok && m.err != nil {
		fmt.Fprintf(os.Stderr, "byokey: status feed closed: %v\n", m.err)
	}
	return ExitOK
}
