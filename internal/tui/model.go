// Package tui implements the interactive schema browser.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/leapstack-labs/workbench/internal/browser"
	"github.com/leapstack-labs/workbench/pkg/core"
)

// Options configure the browser model.
type Options struct {
	// SelectLimit is the LIMIT used by generated SELECT statements.
	SelectLimit int
	// Database is the database the session is connected to. SELECTs over
	// relations of other databases are refused when the dialect cannot
	// reach them.
	Database string
}

type row struct {
	node  *browser.Node
	depth int
}

// loadedMsg carries children loaded off the UI goroutine.
type loadedMsg struct {
	node     *browser.Node
	children []*browser.Node
	err      error
}

// Model is the Bubble Tea model of the schema browser.
type Model struct {
	ctx     context.Context
	loader  *browser.Loader
	dialect *core.Dialect
	root    *browser.Node
	opts    Options

	expanded map[*browser.Node]bool
	loading  map[*browser.Node]bool
	rows     []row
	cursor   int
	offset   int

	filter    textinput.Model
	filtering bool

	keys   keyMap
	help   help.Model
	styles styles

	status    string
	lastQuery string
	width     int
	height    int
}

type styles struct {
	title    lipgloss.Style
	selected lipgloss.Style
	muted    lipgloss.Style
	err      lipgloss.Style
	status   lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		selected: lipgloss.NewStyle().Bold(true).Reverse(true),
		muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		err:      lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		status:   lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	}
}

// New returns a browser model rooted at root.
func New(ctx context.Context, loader *browser.Loader, dialect *core.Dialect, root *browser.Node, opts Options) Model {
	if opts.SelectLimit <= 0 {
		opts.SelectLimit = browser.DefaultSelectLimit
	}
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "filter"

	m := Model{
		ctx:      ctx,
		loader:   loader,
		dialect:  dialect,
		root:     root,
		opts:     opts,
		expanded: map[*browser.Node]bool{root: true},
		loading:  map[*browser.Node]bool{},
		filter:   ti,
		keys:     defaultKeyMap(),
		help:     help.New(),
		styles:   defaultStyles(),
		height:   24,
	}
	m.rebuild()
	return m
}

// Run starts the browser full screen and blocks until it exits.
func Run(ctx context.Context, loader *browser.Loader, dialect *core.Dialect, root *browser.Node, opts Options) error {
	p := tea.NewProgram(New(ctx, loader, dialect, root, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// Init loads the root node.
func (m Model) Init() tea.Cmd {
	return m.load(m.root, false)
}

// Selected returns the node under the cursor.
func (m Model) Selected() *browser.Node {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return nil
	}
	return m.rows[m.cursor].node
}

// Status returns the status line text.
func (m Model) Status() string { return m.status }

// LastQuery returns the most recently generated SELECT.
func (m Model) LastQuery() string { return m.lastQuery }

// load expands a detached copy of n so the visible tree is only touched
// from Update.
func (m Model) load(n *browser.Node, refresh bool) tea.Cmd {
	loader, ctx := m.loader, m.ctx
	shadow := *n
	shadow.Children = nil
	if refresh {
		shadow.Loaded = false
	}
	return func() tea.Msg {
		err := loader.Expand(ctx, &shadow)
		return loadedMsg{node: n, children: shadow.Children, err: err}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.scroll()
		return m, nil

	case loadedMsg:
		return m.applyLoaded(msg), nil

	case tea.KeyMsg:
		if m.filtering {
			return m.updateFilter(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m Model) applyLoaded(msg loadedMsg) Model {
	n := msg.node
	delete(m.loading, n)
	if msg.err != nil {
		n.Err = msg.err
		n.Loaded = false
		m.status = m.styles.err.Render(msg.err.Error())
		m.rebuild()
		return m
	}
	for _, c := range msg.children {
		c.Parent = n
	}
	n.Children = msg.children
	n.Loaded = true
	n.Err = nil
	m.expanded[n] = true
	if v := m.filter.Value(); v != "" {
		browser.Filter(m.root, v)
	}
	m.status = fmt.Sprintf("%s: %d item(s)", n.Name, len(n.Children))
	m.rebuild()
	return m
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.clearFilter()
		return m, nil
	case "enter":
		m.filtering = false
		m.filter.Blur()
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m *Model) applyFilter() {
	v := m.filter.Value()
	n := browser.Filter(m.root, v)
	if v == "" {
		m.status = ""
	} else {
		m.status = fmt.Sprintf("%d match(es) for %q", n, v)
	}
	m.cursor = 0
	m.rebuild()
}

func (m *Model) clearFilter() {
	m.filtering = false
	m.filter.Blur()
	m.filter.SetValue("")
	m.applyFilter()
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sel := m.Selected()

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		m.scroll()

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
		m.scroll()

	case key.Matches(msg, m.keys.Expand):
		if sel == nil || sel.IsLeaf() || m.loading[sel] {
			return m, nil
		}
		if !sel.Loaded {
			m.loading[sel] = true
			m.status = "Loading " + sel.Name + "..."
			return m, m.load(sel, false)
		}
		if msg.String() == "enter" && m.expanded[sel] {
			delete(m.expanded, sel)
		} else {
			m.expanded[sel] = true
		}
		m.rebuild()

	case key.Matches(msg, m.keys.Collapse):
		if sel == nil {
			return m, nil
		}
		if m.expanded[sel] && sel != m.root {
			delete(m.expanded, sel)
			m.rebuild()
			return m, nil
		}
		if sel.Parent != nil {
			m.moveTo(sel.Parent)
		}

	case key.Matches(msg, m.keys.Filter):
		m.filtering = true
		return m, m.filter.Focus()

	case key.Matches(msg, m.keys.Clear):
		m.clearFilter()

	case key.Matches(msg, m.keys.Select):
		q, err := browser.SelectQuery(m.dialect, sel, m.opts.SelectLimit, m.opts.Database)
		if err != nil {
			m.status = m.styles.err.Render(err.Error())
			return m, nil
		}
		m.lastQuery = q
		m.status = q

	case key.Matches(msg, m.keys.Refresh):
		if sel == nil || sel.IsLeaf() || m.loading[sel] {
			return m, nil
		}
		m.loading[sel] = true
		m.status = "Refreshing " + sel.Name + "..."
		return m, m.load(sel, true)
	}

	return m, nil
}

func (m *Model) moveTo(n *browser.Node) {
	for i, r := range m.rows {
		if r.node == n {
			m.cursor = i
			break
		}
	}
	m.scroll()
}

// rebuild flattens the visible tree. While a filter is active every loaded
// node is shown open so matches are reachable.
func (m *Model) rebuild() {
	var sel *browser.Node
	if m.cursor < len(m.rows) {
		sel = m.rows[m.cursor].node
	}

	filtered := m.filter.Value() != ""
	m.rows = make([]row, 0, len(m.rows))
	var add func(n *browser.Node, depth int)
	add = func(n *browser.Node, depth int) {
		m.rows = append(m.rows, row{node: n, depth: depth})
		if !m.expanded[n] && !(filtered && n.Loaded) {
			return
		}
		for _, c := range n.VisibleChildren() {
			add(c, depth+1)
		}
	}
	add(m.root, 0)

	if sel != nil {
		for i, r := range m.rows {
			if r.node == sel {
				m.cursor = i
				break
			}
		}
	}
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.scroll()
}

func (m *Model) listHeight() int {
	h := m.height - 4
	if h < 1 {
		h = 1
	}
	return h
}

func (m *Model) scroll() {
	h := m.listHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.styles.title.Render(m.root.Name))
	b.WriteString("\n")

	end := m.offset + m.listHeight()
	if end > len(m.rows) {
		end = len(m.rows)
	}
	for i := m.offset; i < end; i++ {
		line := m.renderRow(m.rows[i])
		if i == m.cursor {
			line = m.styles.selected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.filtering || m.filter.Value() != "" {
		b.WriteString(m.filter.View())
		b.WriteString("\n")
	}
	b.WriteString(m.styles.status.Render(m.status))
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderRow(r row) string {
	n := r.node
	marker := "  "
	switch {
	case n.IsLeaf():
	case m.loading[n]:
		marker = "… "
	case m.expanded[n] && n.Loaded:
		marker = "▾ "
	default:
		marker = "▸ "
	}

	line := strings.Repeat("  ", r.depth) + marker + n.Name
	if d := n.Detail(); d != "" {
		line += "  " + m.styles.muted.Render(d)
	}
	if n.Err != nil {
		line += "  " + m.styles.err.Render("error: "+n.Err.Error())
	}
	return line
}
