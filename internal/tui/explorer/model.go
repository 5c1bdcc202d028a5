// Package explorer implements the interactive terminal UI for walking OPC DA
// servers: pick a server, browse its namespace, watch live values and write
// new ones.
//
// The model talks to the engine through the small Engine interface so the UI
// logic can be driven by a fake in tests.
package explorer

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	opcda "github.com/wends155/opc-cli-sub000"
	"github.com/wends155/opc-cli-sub000/types"
)

// ViewState identifies which screen the model is rendering.
type ViewState int

const (
	ViewServers ViewState = iota
	ViewBrowsing
	ViewTags
	ViewValues
	ViewWrite
)

// refreshInterval drives the live value screen.
const refreshInterval = time.Second

// progressPollInterval drives the discovery counter while a browse runs.
const progressPollInterval = 200 * time.Millisecond

// Engine is the slice of the client the UI needs.
type Engine interface {
	ListServers(ctx context.Context) ([]string, error)
	BrowseTagsWithProgress(ctx context.Context, server string, progress *types.Progress) (opcda.BrowseResult, error)
	ReadTagValues(ctx context.Context, server string, tagIDs []string) ([]types.TagValue, error)
	WriteTagValue(ctx context.Context, server, tagID, rawValue string) (types.WriteResult, error)
}

// Message types.
type serversMsg struct {
	servers []string
	err     error
}

type browseDoneMsg struct {
	result opcda.BrowseResult
	err    error
}

type progressTickMsg time.Time

type valuesMsg struct {
	values []types.TagValue
	err    error
}

type refreshTickMsg time.Time

type writeDoneMsg struct {
	result types.WriteResult
	err    error
}

// Model is the Bubbletea model for the explorer.
type Model struct {
	engine Engine

	state  ViewState
	width  int
	height int

	// Server screen.
	servers      []string
	serverCursor int

	// Browse screen.
	server   string
	progress *types.Progress
	spinner  spinner.Model

	// Tag screen.
	tags      []string
	partial   bool
	tagCursor int
	selected  map[string]bool
	filter    string
	searching bool
	search    textinput.Model

	// Value screen.
	readTags    []string
	values      []types.TagValue
	valueCursor int

	// Write screen.
	writeTag string
	write    textinput.Model

	status string
	errMsg string
}

// New creates the explorer model.
func New(engine Engine) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	search := textinput.New()
	search.Placeholder = "filter tags"
	search.CharLimit = 128

	write := textinput.New()
	write.Placeholder = "new value"
	write.CharLimit = 256

	return Model{
		engine:   engine,
		state:    ViewServers,
		spinner:  s,
		search:   search,
		write:    write,
		selected: make(map[string]bool),
	}
}

// Run starts the explorer over the given engine and blocks until the user
// quits.
func Run(engine Engine) error {
	p := tea.NewProgram(New(engine), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init kicks off the server listing.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listServersCmd())
}

// Commands.

func (m Model) listServersCmd() tea.Cmd {
	engine := m.engine
	return func() tea.Msg {
		servers, err := engine.ListServers(context.Background())
		return serversMsg{servers: servers, err: err}
	}
}

func (m Model) browseCmd(server string, progress *types.Progress) tea.Cmd {
	engine := m.engine
	return func() tea.Msg {
		result, err := engine.BrowseTagsWithProgress(context.Background(), server, progress)
		return browseDoneMsg{result: result, err: err}
	}
}

func (m Model) readCmd(server string, tags []string) tea.Cmd {
	engine := m.engine
	return func() tea.Msg {
		values, err := engine.ReadTagValues(context.Background(), server, tags)
		return valuesMsg{values: values, err: err}
	}
}

func (m Model) writeCmd(server, tag, raw string) tea.Cmd {
	engine := m.engine
	return func() tea.Msg {
		result, err := engine.WriteTagValue(context.Background(), server, tag, raw)
		return writeDoneMsg{result: result, err: err}
	}
}

func progressTickCmd() tea.Cmd {
	return tea.Tick(progressPollInterval, func(t time.Time) tea.Msg {
		return progressTickMsg(t)
	})
}

func refreshTickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshTickMsg(t)
	})
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case serversMsg:
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.errMsg = ""
		m.servers = msg.servers
		if m.serverCursor >= len(m.servers) {
			m.serverCursor = 0
		}
		return m, nil

	case browseDoneMsg:
		return m.onBrowseDone(msg)

	case progressTickMsg:
		if m.state == ViewBrowsing {
			return m, progressTickCmd()
		}
		return m, nil

	case valuesMsg:
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.errMsg = ""
		m.values = msg.values
		if m.valueCursor >= len(m.values) {
			m.valueCursor = 0
		}
		return m, nil

	case refreshTickMsg:
		if m.state != ViewValues {
			return m, nil
		}
		return m, tea.Batch(m.readCmd(m.server, m.readTags), refreshTickCmd())

	case writeDoneMsg:
		return m.onWriteDone(msg)

	case tea.KeyMsg:
		return m.onKey(msg)
	}

	return m, nil
}

func (m Model) onBrowseDone(msg browseDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.errMsg = msg.err.Error()
		m.state = ViewServers
		return m, nil
	}

	m.errMsg = ""
	m.tags = msg.result.Tags
	m.partial = msg.result.Partial
	m.tagCursor = 0
	m.selected = make(map[string]bool)
	m.filter = ""
	m.state = ViewTags
	if m.partial {
		m.status = "browse timed out; showing partial namespace"
	} else {
		m.status = ""
	}
	return m, nil
}

func (m Model) onWriteDone(msg writeDoneMsg) (tea.Model, tea.Cmd) {
	m.state = ViewValues
	switch {
	case msg.err != nil:
		m.errMsg = msg.err.Error()
	case !msg.result.Success:
		m.errMsg = msg.result.Error
	default:
		m.errMsg = ""
		m.status = "wrote " + msg.result.TagID
	}
	// Refresh immediately so the new value shows up.
	return m, tea.Batch(m.readCmd(m.server, m.readTags), refreshTickCmd())
}

func (m Model) onKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	switch m.state {
	case ViewServers:
		return m.onServersKey(msg)
	case ViewBrowsing:
		// Browse runs to completion or deadline; only quit is honored.
		if msg.String() == "q" {
			return m, tea.Quit
		}
		return m, nil
	case ViewTags:
		return m.onTagsKey(msg)
	case ViewValues:
		return m.onValuesKey(msg)
	case ViewWrite:
		return m.onWriteKey(msg)
	}
	return m, nil
}

func (m Model) onServersKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.serverCursor > 0 {
			m.serverCursor--
		}
	case "down", "j":
		if m.serverCursor < len(m.servers)-1 {
			m.serverCursor++
		}
	case "r":
		m.status = "reloading servers"
		return m, m.listServersCmd()
	case "enter":
		if len(m.servers) == 0 {
			return m, nil
		}
		m.server = m.servers[m.serverCursor]
		m.progress = types.NewProgress()
		m.state = ViewBrowsing
		m.status = ""
		m.errMsg = ""
		return m, tea.Batch(
			m.spinner.Tick,
			m.browseCmd(m.server, m.progress),
			progressTickCmd(),
		)
	}
	return m, nil
}

func (m Model) onTagsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searching {
		switch msg.Type {
		case tea.KeyEsc:
			m.searching = false
			m.search.Blur()
			m.search.SetValue("")
			m.filter = ""
			m.tagCursor = 0
			return m, nil
		case tea.KeyEnter:
			m.searching = false
			m.search.Blur()
			return m, nil
		default:
			var cmd tea.Cmd
			m.search, cmd = m.search.Update(msg)
			m.filter = m.search.Value()
			m.tagCursor = 0
			return m, cmd
		}
	}

	visible := m.visibleTags()
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc":
		m.state = ViewServers
		return m, nil
	case "up", "k":
		if m.tagCursor > 0 {
			m.tagCursor--
		}
	case "down", "j":
		if m.tagCursor < len(visible)-1 {
			m.tagCursor++
		}
	case "/":
		m.searching = true
		m.search.Focus()
		return m, textinput.Blink
	case " ":
		if len(visible) > 0 {
			tag := visible[m.tagCursor]
			if m.selected[tag] {
				delete(m.selected, tag)
			} else {
				m.selected[tag] = true
			}
		}
	case "a":
		for _, tag := range visible {
			m.selected[tag] = true
		}
	case "n":
		m.selected = make(map[string]bool)
	case "enter":
		tags := m.chosenTags(visible)
		if len(tags) == 0 {
			return m, nil
		}
		m.readTags = tags
		m.values = nil
		m.valueCursor = 0
		m.state = ViewValues
		m.status = ""
		m.errMsg = ""
		return m, tea.Batch(m.readCmd(m.server, tags), refreshTickCmd())
	}
	return m, nil
}

func (m Model) onValuesKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc":
		m.state = ViewTags
		return m, nil
	case "up", "k":
		if m.valueCursor > 0 {
			m.valueCursor--
		}
	case "down", "j":
		if m.valueCursor < len(m.values)-1 {
			m.valueCursor++
		}
	case "w":
		if len(m.values) == 0 {
			return m, nil
		}
		m.writeTag = m.values[m.valueCursor].TagID
		m.write.SetValue("")
		m.write.Focus()
		m.state = ViewWrite
		m.errMsg = ""
		return m, textinput.Blink
	}
	return m, nil
}

func (m Model) onWriteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.write.Blur()
		m.state = ViewValues
		return m, nil
	case tea.KeyEnter:
		raw := m.write.Value()
		m.write.Blur()
		if raw == "" {
			m.state = ViewValues
			return m, nil
		}
		m.status = "writing " + m.writeTag
		return m, m.writeCmd(m.server, m.writeTag, raw)
	default:
		var cmd tea.Cmd
		m.write, cmd = m.write.Update(msg)
		return m, cmd
	}
}

// visibleTags returns the tags matching the current filter, in browse order.
func (m Model) visibleTags() []string {
	if m.filter == "" {
		return m.tags
	}
	needle := strings.ToLower(m.filter)
	var out []string
	for _, tag := range m.tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			out = append(out, tag)
		}
	}
	return out
}

// chosenTags returns the selected tags, or the cursored tag when nothing is
// selected.
func (m Model) chosenTags(visible []string) []string {
	if len(m.selected) > 0 {
		out := make([]string, 0, len(m.selected))
		for tag := range m.selected {
			out = append(out, tag)
		}
		sort.Strings(out)
		return out
	}
	if len(visible) == 0 {
		return nil
	}
	return []string{visible[m.tagCursor]}
}
