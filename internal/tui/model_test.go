package tui

import (
	"context"
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/cursor"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/workbench/internal/browser"
	"github.com/leapstack-labs/workbench/internal/connection"
	"github.com/leapstack-labs/workbench/internal/testutil"
	_ "github.com/leapstack-labs/workbench/pkg/adapters/sqlite"
	"github.com/leapstack-labs/workbench/pkg/core"
)

func newModel(t *testing.T) Model {
	t.Helper()
	conn, err := connection.New(testutil.SQLiteProfile(t, "shop"), testutil.NewTestLogger(t))
	require.NoError(t, err)
	require.NoError(t, conn.Connect(context.Background()))
	t.Cleanup(func() { _ = conn.Disconnect() })

	loader := browser.NewLoader(conn, nil)
	m := New(context.Background(), loader, conn.Dialect(), browser.NewConnectionNode("shop"), Options{SelectLimit: 10})
	// a blinking cursor would hand back timer commands on every keystroke
	_ = m.filter.Cursor.SetMode(cursor.CursorStatic)
	return run(t, m, m.Init())
}

// run applies cmd synchronously, feeding its message back into the model.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	for cmd != nil {
		msg := cmd()
		if _, ok := msg.(loadedMsg); !ok {
			return m
		}
		var next tea.Model
		next, cmd = m.Update(msg)
		m = next.(Model)
	}
	return m
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "left":
			msg = tea.KeyMsg{Type: tea.KeyLeft}
		case "right":
			msg = tea.KeyMsg{Type: tea.KeyRight}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, cmd := m.Update(msg)
		m = run(t, next.(Model), cmd)
	}
	return m
}

func rowNames(m Model) []string {
	var out []string
	for _, r := range m.rows {
		out = append(out, r.node.Name)
	}
	return out
}

func TestModel_InitLoadsRoot(t *testing.T) {
	m := newModel(t)

	assert.Equal(t, "shop", m.rows[0].node.Name)
	assert.Contains(t, rowNames(m), "main")
	assert.Equal(t, "shop", m.Selected().Name)
}

func TestModel_NavigateAndSelect(t *testing.T) {
	m := newModel(t)

	m = press(t, m, "j")
	require.Equal(t, "main", m.Selected().Name)

	m = press(t, m, "enter")
	assert.Equal(t, []string{"shop", "main", "Tables", "Views", "Triggers"}, rowNames(m))

	m = press(t, m, "j", "right")
	assert.Equal(t, []string{"shop", "main", "Tables", "orders", "users", "Views", "Triggers"}, rowNames(m))

	m = press(t, m, "j", "j")
	require.Equal(t, "users", m.Selected().Name)

	m = press(t, m, "s")
	assert.Equal(t, `SELECT * FROM "main"."users" LIMIT 10;`, m.LastQuery())
	assert.Equal(t, m.LastQuery(), m.Status())

	m = press(t, m, "left")
	assert.Equal(t, "Tables", m.Selected().Name, "left on a collapsed node jumps to the parent")

	m = press(t, m, "left")
	assert.Equal(t, []string{"shop", "main", "Tables", "Views", "Triggers"}, rowNames(m))

	m = press(t, m, "k")
	assert.Equal(t, "main", m.Selected().Name)
}

func TestModel_SelectOnNonRelation(t *testing.T) {
	m := newModel(t)
	m = press(t, m, "s")
	assert.Empty(t, m.LastQuery())
	assert.Contains(t, m.Status(), "select requires a table or view")
}

func TestModel_SelectChecksDatabase(t *testing.T) {
	pg := &core.Dialect{Quote: `"`, DatabasesHaveSchemas: true}
	newTree := func() *browser.Node {
		root := browser.NewConnectionNode("warehouse")
		root.Loaded = true
		events := &browser.Node{
			Type:     core.ObjectTable,
			Name:     "events",
			Database: "analytics",
			Schema:   "analytics.public",
			Table:    "events",
			Loaded:   true,
			Parent:   root,
		}
		root.Children = []*browser.Node{events}
		return root
	}

	t.Run("other database is refused", func(t *testing.T) {
		m := New(context.Background(), browser.NewLoader(nil, nil), pg, newTree(), Options{Database: "postgres"})
		m = press(t, m, "j", "s")
		require.Equal(t, "events", m.Selected().Name)
		assert.Empty(t, m.LastQuery())
		assert.Contains(t, m.Status(), `public.events is in "analytics" but the connection uses "postgres"`)
	})

	t.Run("connected database", func(t *testing.T) {
		m := New(context.Background(), browser.NewLoader(nil, nil), pg, newTree(), Options{Database: "analytics", SelectLimit: 5})
		m = press(t, m, "j", "s")
		assert.Equal(t, `SELECT * FROM "public"."events" LIMIT 5;`, m.LastQuery())
	})
}

func TestModel_Filter(t *testing.T) {
	m := newModel(t)
	m = press(t, m, "j", "enter", "j", "enter")

	m = press(t, m, "/")
	assert.True(t, m.filtering)
	m = press(t, m, "u", "s", "e", "r")
	assert.Equal(t, []string{"shop", "main", "Tables", "users"}, rowNames(m))
	assert.Contains(t, m.Status(), `1 match(es) for "user"`)
	assert.Equal(t, "user", m.filter.Value())

	m = press(t, m, "esc")
	assert.False(t, m.filtering)
	assert.Contains(t, rowNames(m), "orders")
	assert.Contains(t, rowNames(m), "Views")
}

func TestModel_Refresh(t *testing.T) {
	m := newModel(t)
	m = press(t, m, "j", "enter")
	main := m.Selected()
	before := main.Children[0]

	m = press(t, m, "r")
	require.Equal(t, "main", m.Selected().Name)
	assert.NotSame(t, before, main.Children[0])
	assert.Len(t, main.Children, 3)
}

func TestModel_LoadErrorShownOnNode(t *testing.T) {
	m := newModel(t)
	m = press(t, m, "j")
	sel := m.Selected()

	next, _ := m.Update(loadedMsg{node: sel, err: assert.AnError})
	m = next.(Model)

	assert.False(t, sel.Loaded)
	assert.Contains(t, m.Status(), assert.AnError.Error())
	assert.Contains(t, m.View(), "error: "+assert.AnError.Error())
}

func TestModel_Quit(t *testing.T) {
	m := newModel(t)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModel_ViewScrolls(t *testing.T) {
	m := newModel(t)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 6})
	m = next.(Model)
	m = press(t, m, "j", "enter", "j", "enter", "j", "j", "j")

	view := m.View()
	assert.Contains(t, view, "Views")
	assert.False(t, strings.Contains(view, "▾ main"), "rows above the window are scrolled out")
}
