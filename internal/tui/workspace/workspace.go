// Package workspace is the tabbed TUI hosting grid views. It owns the view
// lifecycle: it creates and destroys views, announces every layout change on
// the event bus, persists the layout and schedules grid draws.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Dicklesworthstone/thumbgrid/internal/atlas"
	"github.com/Dicklesworthstone/thumbgrid/internal/events"
	"github.com/Dicklesworthstone/thumbgrid/internal/plugin"
	"github.com/Dicklesworthstone/thumbgrid/internal/render"
	"github.com/Dicklesworthstone/thumbgrid/internal/state"
	"github.com/Dicklesworthstone/thumbgrid/internal/table"
	"github.com/Dicklesworthstone/thumbgrid/internal/tui/grid"
	"github.com/Dicklesworthstone/thumbgrid/internal/tui/layout"
	"github.com/Dicklesworthstone/thumbgrid/internal/tui/theme"
	"github.com/Dicklesworthstone/thumbgrid/internal/tui/thumb"
)

// AtlasReadyMsg delivers the outcome of the atlas load.
type AtlasReadyMsg struct {
	Atlas *atlas.Atlas
	Err   error
}

// ReloadMsg asks the workspace to reload the table from Path.
type ReloadMsg struct {
	Path string
}

// TableLoadedMsg carries a reloaded table.
type TableLoadedMsg struct {
	Table *table.Table
	Err   error
}

// Options configures a workspace.
type Options struct {
	Table   *table.Table
	Plugins *plugin.Registry
	// Bus receives a LayoutUpdate on every layout change. Required.
	Bus *events.EventBus
	// Store persists the layout; nil disables persistence.
	Store   *state.Store
	Restore bool
	// DefaultPlugin draws new views.
	DefaultPlugin string
	// Painter renders tiles as text; nil uses the grid default.
	Painter *thumb.Painter
	// LoadAtlas starts (or joins) the atlas load. Nil means no thumbnails.
	LoadAtlas func() *atlas.Signal
	// EventsPath is re-read on ReloadMsg.
	EventsPath string
	Context    context.Context
}

// Model is the workspace.
type Model struct {
	opts   Options
	styles *theme.Styles
	keys   KeyMap
	help   help.Model

	tbl    *table.Table
	views  []*grid.Model
	active int
	split  bool
	nextID int

	width  int
	height int
	tier   layout.Tier

	atlas       *atlas.Atlas
	atlasErr    error
	atlasLoaded bool

	stats  map[string]render.Stats
	status string
	err    error
}

// New builds the workspace, restoring the saved layout when asked to.
func New(opts Options) (*Model, error) {
	if opts.Table == nil {
		return nil, errors.New("workspace: table is required")
	}
	if opts.Plugins == nil || opts.Bus == nil {
		return nil, errors.New("workspace: plugins and bus are required")
	}
	if opts.DefaultPlugin == "" {
		opts.DefaultPlugin = plugin.ThumbnailDatagrid
	}
	if _, err := opts.Plugins.Get(opts.DefaultPlugin); err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}

	m := &Model{
		opts:   opts,
		styles: &theme.Default,
		keys:   DefaultKeyMap(),
		help:   help.New(),
		tbl:    opts.Table,
		nextID: 1,
		width:  80,
		height: 24,
		stats:  make(map[string]render.Stats),
		split:  true,
	}

	restored := false
	if opts.Store != nil && opts.Restore {
		restored = m.restore()
	}
	if !restored {
		if err := m.addView(opts.DefaultPlugin, table.Config{}); err != nil {
			return nil, err
		}
	}
	m.focus()
	m.resize()
	// the initial layout is announced but not saved
	m.publish()
	return m, nil
}

func (m *Model) restore() bool {
	l, found, err := m.opts.Store.LoadLayout()
	if err != nil {
		slog.Default().Warn("ignoring saved layout", "error", err)
		return false
	}
	if !found {
		return false
	}

	for _, v := range l.Views {
		if v.Table != m.tbl.Name {
			slog.Default().Warn("skipping view of unknown table", "view", v.ID, "table", v.Table)
			continue
		}
		desc, err := m.opts.Plugins.Get(v.Plugin)
		if err != nil {
			slog.Default().Warn("view plugin missing, using default", "view", v.ID, "error", err)
			desc, _ = m.opts.Plugins.Get(m.opts.DefaultPlugin)
		}
		g, err := m.newGrid(v.ID, v.Title, desc, v.Config)
		if err != nil {
			slog.Default().Warn("view config no longer applies, resetting it", "view", v.ID, "error", err)
			if g, err = m.newGrid(v.ID, v.Title, desc, table.Config{}); err != nil {
				continue
			}
		}
		m.views = append(m.views, g)
		if n, ok := viewNumber(v.ID); ok && n >= m.nextID {
			m.nextID = n + 1
		}
		if v.ID == l.Active {
			m.active = len(m.views) - 1
		}
	}
	m.split = l.Split
	return len(m.views) > 0
}

func viewNumber(id string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimPrefix(id, "view-"))
	return n, err == nil && strings.HasPrefix(id, "view-")
}

func (m *Model) newGrid(id, title string, desc plugin.Descriptor, cfg table.Config) (*grid.Model, error) {
	return grid.New(id, title, m.tbl, cfg, grid.Options{
		Plugin:     desc.Name,
		Thumbnails: desc.Thumbnails,
		Painter:    m.opts.Painter,
		Styles:     m.styles,
	})
}

func (m *Model) addView(pluginName string, cfg table.Config) error {
	desc, err := m.opts.Plugins.Get(pluginName)
	if err != nil {
		return err
	}
	id := "view-" + strconv.Itoa(m.nextID)
	title := m.tbl.Name
	if len(m.views) > 0 {
		title = fmt.Sprintf("%s (%d)", m.tbl.Name, m.nextID)
	}
	g, err := m.newGrid(id, title, desc, cfg)
	if err != nil {
		return err
	}
	m.nextID++
	m.views = append(m.views, g)
	m.active = len(m.views) - 1
	return nil
}

// closeView destroys the active view. The last view cannot be closed.
func (m *Model) closeView() bool {
	if len(m.views) <= 1 {
		m.status = "the last view cannot be closed"
		return false
	}
	g := m.views[m.active]
	if desc, err := m.opts.Plugins.Get(g.Plugin()); err == nil && desc.Destroy != nil {
		desc.Destroy(g.ID())
	}
	delete(m.stats, g.ID())
	m.views = append(m.views[:m.active], m.views[m.active+1:]...)
	if m.active >= len(m.views) {
		m.active = len(m.views) - 1
	}
	return true
}

// IDs returns the view ids in tab order.
func (m *Model) IDs() []string {
	ids := make([]string, len(m.views))
	for i, g := range m.views {
		ids[i] = g.ID()
	}
	return ids
}

// Active returns the focused view.
func (m *Model) Active() *grid.Model { return m.views[m.active] }

// Views returns the views in tab order.
func (m *Model) Views() []*grid.Model { return m.views }

// Layout returns the persistable layout.
func (m *Model) Layout() state.Layout {
	l := state.Layout{Version: state.LayoutVersion, Active: m.Active().ID(), Split: m.split}
	for _, g := range m.views {
		l.Views = append(l.Views, state.ViewLayout{
			ID:     g.ID(),
			Title:  g.Title(),
			Plugin: g.Plugin(),
			Table:  m.tbl.Name,
			Config: g.Config(),
		})
	}
	return l
}

func (m *Model) publish() {
	m.opts.Bus.Publish(events.NewLayoutUpdate(m.IDs(), m.Active().ID()))
}

// layoutChanged announces and saves the layout.
func (m *Model) layoutChanged() {
	m.focus()
	m.resize()
	m.publish()
	if m.opts.Store == nil {
		return
	}
	if err := m.opts.Store.SaveLayout(m.Layout()); err != nil {
		slog.Default().Warn("saving layout failed", "error", err)
		m.err = fmt.Errorf("saving layout: %w", err)
	}
}

func (m *Model) focus() {
	for i, g := range m.views {
		if i == m.active {
			g.Focus()
		} else {
			g.Blur()
		}
	}
}

// visible returns the index of the first visible view and how many views
// are shown side by side.
func (m *Model) visible() (start, n int) {
	n = 1
	if m.split {
		n = min(m.tier.Panes(), len(m.views))
	}
	start = max(0, min(m.active, len(m.views)-n))
	return start, n
}

func (m *Model) paneWidths(n int) []int {
	switch n {
	case 3:
		return layout.PaneWidths(m.width, layout.TierUltra)
	case 2:
		l, r := layout.SplitProportions(m.width)
		return []int{l, r}
	default:
		return []int{m.width}
	}
}

// chrome is the tab bar, status line and help line.
func (m *Model) chrome() int {
	return 2 + strings.Count(m.help.View(m.helpKeys()), "\n") + 1
}

func (m *Model) resize() {
	start, n := m.visible()
	widths := m.paneWidths(n)
	// pane borders take two columns and two lines
	h := max(m.height-m.chrome()-2, 3)
	for i, w := range widths {
		m.views[start+i].SetSize(max(w-2, 10), h)
	}
}

func (m *Model) helpKeys() helpKeys {
	return helpKeys{ws: m.keys, grid: m.Active().Keys()}
}

// Init starts waiting for the atlas.
func (m *Model) Init() tea.Cmd {
	if m.opts.LoadAtlas == nil {
		return nil
	}
	return waitAtlas(m.opts.Context, m.opts.LoadAtlas())
}

func waitAtlas(ctx context.Context, sig *atlas.Signal) tea.Cmd {
	return func() tea.Msg {
		a, err := sig.Wait(ctx)
		return AtlasReadyMsg{Atlas: a, Err: err}
	}
}

func loadTable(path string) tea.Cmd {
	return func() tea.Msg {
		tbl, err := table.LoadFile(path)
		return TableLoadedMsg{Table: tbl, Err: err}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmd := m.update(msg)
	m.draw()
	return m, cmd
}

func (m *Model) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.tier = layout.TierForWidthWithHysteresis(msg.Width, m.tier)
		m.help.Width = msg.Width
		m.resize()
		return nil

	case AtlasReadyMsg:
		m.atlasLoaded = true
		m.atlas, m.atlasErr = msg.Atlas, msg.Err
		src := ""
		if msg.Atlas != nil {
			src = msg.Atlas.Source()
		}
		m.opts.Bus.Publish(events.NewAtlasLoaded(src, msg.Err))
		for _, g := range m.views {
			g.Invalidate()
		}
		return nil

	case ReloadMsg:
		path := msg.Path
		if path == "" {
			path = m.opts.EventsPath
		}
		return loadTable(path)

	case TableLoadedMsg:
		if msg.Err != nil {
			m.err = fmt.Errorf("reloading table: %w", msg.Err)
			return nil
		}
		m.tbl = msg.Table
		for _, g := range m.views {
			if err := g.SetTable(msg.Table); err != nil {
				m.err = err
			}
		}
		m.status = fmt.Sprintf("reloaded %d rows", msg.Table.Len())
		return nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	active := m.Active()
	if msg.Type == tea.KeyCtrlC {
		return tea.Quit
	}
	if active.Editing() {
		before := active.Config()
		cmd := active.Update(msg)
		if !active.Editing() && !configEqual(before, active.Config()) {
			m.layoutChanged()
		}
		return cmd
	}

	m.status = ""
	m.err = nil
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.NextView):
		m.active = (m.active + 1) % len(m.views)
		m.layoutChanged()
	case key.Matches(msg, m.keys.PrevView):
		m.active = (m.active - 1 + len(m.views)) % len(m.views)
		m.layoutChanged()
	case key.Matches(msg, m.keys.NewView):
		m.add(plugin.ThumbnailDatagrid)
	case key.Matches(msg, m.keys.NewPlain):
		m.add(plugin.Datagrid)
	case key.Matches(msg, m.keys.CloseView):
		if m.closeView() {
			m.layoutChanged()
		}
	case key.Matches(msg, m.keys.Split):
		m.split = !m.split
		m.layoutChanged()
	case key.Matches(msg, m.keys.Retry):
		if m.atlasErr != nil && m.opts.LoadAtlas != nil {
			m.atlasErr = nil
			m.atlasLoaded = false
			return waitAtlas(m.opts.Context, m.opts.LoadAtlas())
		}
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.resize()
	default:
		return active.Update(msg)
	}
	return nil
}

func (m *Model) add(pluginName string) {
	if err := m.addView(pluginName, table.Config{}); err != nil {
		m.err = err
		return
	}
	m.layoutChanged()
}

func configEqual(a, b table.Config) bool {
	return strings.Join(a.RowPivots, "\x00") == strings.Join(b.RowPivots, "\x00") &&
		strings.Join(a.ColumnPivots, "\x00") == strings.Join(b.ColumnPivots, "\x00") &&
		strings.Join(a.Columns, "\x00") == strings.Join(b.Columns, "\x00")
}

// draw runs the plugin of every visible view whose window changed.
func (m *Model) draw() {
	start, n := m.visible()
	for _, g := range m.views[start : start+n] {
		if !g.NeedsDraw() {
			continue
		}
		desc, err := m.opts.Plugins.Get(g.Plugin())
		if err != nil {
			m.err = err
			g.EndDraw()
			continue
		}
		g.BeginDraw()
		st, err := desc.Draw(m.opts.Context, g.ID(), g, m.atlas)
		g.EndDraw()
		if err != nil {
			slog.Default().Warn("draw failed", "view", g.ID(), "error", err)
			m.err = err
			continue
		}
		m.stats[g.ID()] = st
	}
}

// Stats returns the last draw statistics of a view.
func (m *Model) Stats(viewID string) (render.Stats, bool) {
	st, ok := m.stats[viewID]
	return st, ok
}

// Err returns the last error shown in the status bar.
func (m *Model) Err() error { return m.err }
