package render

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/Dicklesworthstone/thumbgrid/internal/atlas"
	"github.com/Dicklesworthstone/thumbgrid/internal/pool"
)

var testGeom = atlas.Geometry{TileWidth: 4, TileHeight: 4, TilesPerRow: 3}

func tileColor(id int) color.RGBA {
	return color.RGBA{R: uint8(id), G: uint8(255 - id), B: 9, A: 255}
}

func newTestAtlas(t *testing.T, n int) *atlas.Atlas {
	t.Helper()
	sheet := image.NewRGBA(image.Rectangle{Max: testGeom.Size(n)})
	for id := 0; id < n; id++ {
		draw.Draw(sheet, testGeom.Rect(id), &image.Uniform{C: tileColor(id)}, image.Point{}, draw.Src)
	}
	a, err := atlas.New(sheet, testGeom, "test")
	if err != nil {
		t.Fatalf("atlas.New: %v", err)
	}
	return a
}

func newTestRenderer(t *testing.T, capacity int, scope DedupeScope) *Renderer {
	t.Helper()
	r, err := New(pool.NewRegistry(), Options{Capacity: capacity, Dedupe: scope, TileWidth: 4, TileHeight: 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

// fakeGrid is an in-memory Grid. A nil *CellMeta is a filler cell.
type fakeGrid struct {
	cfg      ViewConfig
	cfgErr   error
	types    map[string]string
	header   [][]*CellMeta
	body     [][]*CellMeta
	onConfig func(call int)

	configCalls int
	tags        map[Cell]map[Tag]bool
	replaced    map[Cell]Content
}

func (g *fakeGrid) ViewConfig(ctx context.Context) (ViewConfig, error) {
	g.configCalls++
	if g.onConfig != nil {
		g.onConfig(g.configCalls)
	}
	return g.cfg, g.cfgErr
}

func (g *fakeGrid) ColumnType(name string) string { return g.types[name] }

func (g *fakeGrid) rows(s Section) [][]*CellMeta {
	if s == Header {
		return g.header
	}
	return g.body
}

func (g *fakeGrid) Rows(s Section) int { return len(g.rows(s)) }

func (g *fakeGrid) Cols(s Section, row int) int { return len(g.rows(s)[row]) }

func (g *fakeGrid) Meta(c Cell) (CellMeta, bool) {
	m := g.rows(c.Section)[c.Row][c.Col]
	if m == nil {
		return CellMeta{}, false
	}
	return *m, true
}

func (g *fakeGrid) Tag(c Cell, tag Tag, on bool) {
	if g.tags == nil {
		g.tags = make(map[Cell]map[Tag]bool)
	}
	if g.tags[c] == nil {
		g.tags[c] = make(map[Tag]bool)
	}
	g.tags[c][tag] = on
}

func (g *fakeGrid) Replace(c Cell, content Content) {
	if g.replaced == nil {
		g.replaced = make(map[Cell]Content)
	}
	g.replaced[c] = content
}

func (g *fakeGrid) surface(t *testing.T, c Cell) SurfaceContent {
	t.Helper()
	sc, ok := g.replaced[c].(SurfaceContent)
	if !ok {
		t.Fatalf("cell %+v content = %#v, want SurfaceContent", c, g.replaced[c])
	}
	return sc
}

func body(r, c int) Cell { return Cell{Section: Body, Row: r, Col: c} }

func imageCell(id any) *CellMeta {
	return &CellMeta{ColumnHeader: []string{"image"}, PivotDepth: 1, User: id}
}

func pivotCell(value string) *CellMeta {
	return &CellMeta{HeaderLevel: 1, PivotDepth: 1, Value: value}
}

func totalRow() []*CellMeta {
	return []*CellMeta{{HeaderLevel: 1, PivotDepth: 0, Value: ""}}
}

func TestDuplicateSuppressedUnderImagePivot(t *testing.T) {
	r := newTestRenderer(t, 10, DedupeCycle)
	g := &fakeGrid{
		cfg:  ViewConfig{RowPivots: []string{"image"}},
		body: [][]*CellMeta{totalRow(), {pivotCell("42")}, {pivotCell("42")}},
	}

	st, err := r.OnRefresh(context.Background(), "v1", g, newTestAtlas(t, 50))
	if err != nil {
		t.Fatalf("OnRefresh: %v", err)
	}
	if st.Drawn != 1 || st.Suppressed != 1 {
		t.Errorf("Drawn = %d, Suppressed = %d, want 1, 1", st.Drawn, st.Suppressed)
	}
	if sc := g.surface(t, body(1, 0)); sc.AssetID != 42 {
		t.Errorf("AssetID = %d, want 42", sc.AssetID)
	}
	if _, ok := g.replaced[body(2, 0)]; ok {
		t.Error("duplicate pivot cell was replaced")
	}
	if ps, _ := r.Pools().Stats("v1"); ps.Draws != 1 {
		t.Errorf("pool draws = %d, want 1", ps.Draws)
	}
}

func TestDuplicatesRenderWithoutPivots(t *testing.T) {
	r := newTestRenderer(t, 10, DedupeCycle)
	g := &fakeGrid{
		body: [][]*CellMeta{{imageCell(1)}, {imageCell(42)}, {imageCell(42)}},
	}

	st, err := r.OnRefresh(context.Background(), "v1", g, newTestAtlas(t, 50))
	if err != nil {
		t.Fatalf("OnRefresh: %v", err)
	}
	if st.Drawn != 2 || st.Suppressed != 0 {
		t.Errorf("Drawn = %d, Suppressed = %d, want 2, 0", st.Drawn, st.Suppressed)
	}
	a, b := g.surface(t, body(1, 0)), g.surface(t, body(2, 0))
	if a.Surface == b.Surface {
		t.Error("both cells share one surface")
	}
	if _, ok := g.replaced[body(0, 0)]; ok {
		t.Error("header row received an image")
	}
}

func TestDedupeOffDrawsEveryPivotCell(t *testing.T) {
	r := newTestRenderer(t, 10, DedupeOff)
	g := &fakeGrid{
		cfg:  ViewConfig{RowPivots: []string{"image"}},
		body: [][]*CellMeta{totalRow(), {pivotCell("42")}, {pivotCell("42")}},
	}
	st, err := r.OnRefresh(context.Background(), "v1", g, newTestAtlas(t, 50))
	if err != nil {
		t.Fatalf("OnRefresh: %v", err)
	}
	if st.Drawn != 2 {
		t.Errorf("Drawn = %d, want 2", st.Drawn)
	}
}

func TestDrawnSurfaceHoldsTile(t *testing.T) {
	r := newTestRenderer(t, 10, DedupeCycle)
	g := &fakeGrid{body: [][]*CellMeta{{imageCell(0)}, {imageCell(7)}}}
	if _, err := r.OnRefresh(context.Background(), "v1", g, newTestAtlas(t, 9)); err != nil {
		t.Fatalf("OnRefresh: %v", err)
	}
	img := g.surface(t, body(1, 0)).Surface.Image
	if got, want := img.RGBAAt(2, 2), tileColor(7); got != want {
		t.Errorf("surface pixel = %v, want %v", got, want)
	}
	if !g.tags[body(1, 0)][TagThumbnail] {
		t.Error("image cell not tagged thumbnail")
	}
}

func TestPoolWrapsAcrossCells(t *testing.T) {
	r := newTestRenderer(t, 2, DedupeCycle)
	g := &fakeGrid{body: [][]*CellMeta{{imageCell(0)}, {imageCell(1)}, {imageCell(2)}, {imageCell(3)}}}
	st, err := r.OnRefresh(context.Background(), "v1", g, newTestAtlas(t, 9))
	if err != nil {
		t.Fatalf("OnRefresh: %v", err)
	}
	if st.Drawn != 3 {
		t.Fatalf("Drawn = %d, want 3", st.Drawn)
	}
	if g.surface(t, body(3, 0)).Surface != g.surface(t, body(1, 0)).Surface {
		t.Error("third draw did not reuse the first surface")
	}

	// the cursor carries over into the next refresh
	if _, err := r.OnRefresh(context.Background(), "v1", g, newTestAtlas(t, 9)); err != nil {
		t.Fatal(err)
	}
	if ps, _ := r.Pools().Stats("v1"); ps.Draws != 6 || ps.Cursor != 0 {
		t.Errorf("pool stats = %+v, want draws 6 cursor 0", ps)
	}
}

func TestPivotImageSuppressesImageColumnInRow(t *testing.T) {
	r := newTestRenderer(t, 10, DedupeCycle)
	g := &fakeGrid{
		cfg: ViewConfig{RowPivots: []string{"image"}},
		body: [][]*CellMeta{
			totalRow(),
			{pivotCell("7"), imageCell(7)},
			{pivotCell("8"), imageCell(8)},
		},
	}
	st, err := r.OnRefresh(context.Background(), "v1", g, newTestAtlas(t, 9))
	if err != nil {
		t.Fatalf("OnRefresh: %v", err)
	}
	if st.Drawn != 2 || st.Suppressed != 2 {
		t.Errorf("Drawn = %d, Suppressed = %d, want 2, 2", st.Drawn, st.Suppressed)
	}
	if _, ok := g.replaced[body(1, 1)]; ok {
		t.Error("image column drawn next to pivot image")
	}
}

func TestImageColumnSkipsTotalRowUnderPivots(t *testing.T) {
	r := newTestRenderer(t, 10, DedupeCycle)
	total := &CellMeta{ColumnHeader: []string{"image"}, PivotDepth: 0, User: 3}
	g := &fakeGrid{
		cfg: ViewConfig{RowPivots: []string{"collection"}},
		body: [][]*CellMeta{
			{{HeaderLevel: 1, Value: ""}, imageCell(1)},
			{{HeaderLevel: 1, Value: "Penguins"}, total},
			{{HeaderLevel: 1, Value: "Penguins"}, imageCell(3)},
		},
	}
	st, err := r.OnRefresh(context.Background(), "v1", g, newTestAtlas(t, 9))
	if err != nil {
		t.Fatalf("OnRefresh: %v", err)
	}
	if st.Drawn != 1 {
		t.Errorf("Drawn = %d, want 1", st.Drawn)
	}
	if _, ok := g.replaced[body(1, 1)]; ok {
		t.Error("total row image drawn")
	}
}

func TestTimestampAndPermalinkCells(t *testing.T) {
	r := newTestRenderer(t, 10, DedupeCycle)
	g := &fakeGrid{
		types:  map[string]string{"sold_at": "datetime", "price": "float"},
		header: [][]*CellMeta{{{ColumnHeader: []string{"sold_at"}}, {ColumnHeader: []string{"price"}}, nil}},
		body: [][]*CellMeta{
			{{ColumnHeader: []string{"sold_at"}}, {ColumnHeader: []string{"permalink"}, Value: "https://example.com/a"}},
			{{ColumnHeader: []string{"sold_at"}}, {ColumnHeader: []string{"permalink"}, Value: "https://example.com/x"}},
		},
	}
	st, err := r.OnRefresh(context.Background(), "v1", g, newTestAtlas(t, 9))
	if err != nil {
		t.Fatalf("OnRefresh: %v", err)
	}
	if st.Timestamps != 3 || st.Links != 1 {
		t.Errorf("Timestamps = %d, Links = %d, want 3, 1", st.Timestamps, st.Links)
	}
	if !g.tags[Cell{Section: Header}][TagTimestamp] {
		t.Error("header timestamp not tagged")
	}
	if g.tags[Cell{Section: Header, Col: 1}][TagTimestamp] {
		t.Error("price header tagged timestamp")
	}
	link, ok := g.replaced[body(1, 1)].(LinkContent)
	if !ok || link.Label != "example.com/x" || link.URL != "https://example.com/x" {
		t.Errorf("permalink content = %#v", g.replaced[body(1, 1)])
	}
}

func TestNilAtlasClassifiesWithoutDrawing(t *testing.T) {
	r := newTestRenderer(t, 10, DedupeCycle)
	g := &fakeGrid{
		types: map[string]string{"sold_at": "date"},
		body:  [][]*CellMeta{{imageCell(1)}, {imageCell(2), {ColumnHeader: []string{"sold_at"}}}},
	}
	st, err := r.OnRefresh(context.Background(), "v1", g, nil)
	if err != nil {
		t.Fatalf("OnRefresh: %v", err)
	}
	if !st.AtlasPending || st.Drawn != 0 {
		t.Errorf("stats = %+v, want AtlasPending and no draws", st)
	}
	if len(g.replaced) != 0 {
		t.Errorf("replaced %d cells without an atlas", len(g.replaced))
	}
	if !g.tags[body(1, 1)][TagTimestamp] || !g.tags[body(1, 0)][TagThumbnail] {
		t.Error("tags missing without atlas")
	}
	if !r.Pools().Has("v1") {
		t.Error("pool not allocated on first refresh")
	}
}

func TestOutOfRangeAssetIsSkipped(t *testing.T) {
	r := newTestRenderer(t, 10, DedupeCycle)
	g := &fakeGrid{body: [][]*CellMeta{{imageCell(0)}, {imageCell(500)}}}
	st, err := r.OnRefresh(context.Background(), "v1", g, newTestAtlas(t, 9))
	if err != nil {
		t.Fatalf("OnRefresh: %v", err)
	}
	if st.OutOfRange != 1 || st.Drawn != 0 {
		t.Errorf("stats = %+v, want one out of range, no draws", st)
	}
	if ps, _ := r.Pools().Stats("v1"); ps.Draws != 0 {
		t.Errorf("pool draws = %d, want 0", ps.Draws)
	}
}

func TestReleasedDuringConfigIsStale(t *testing.T) {
	r := newTestRenderer(t, 10, DedupeCycle)
	g := &fakeGrid{body: [][]*CellMeta{{imageCell(0)}, {imageCell(1)}}}
	g.onConfig = func(int) { r.Release("v1") }

	st, err := r.OnRefresh(context.Background(), "v1", g, newTestAtlas(t, 9))
	if err != nil {
		t.Fatalf("OnRefresh: %v", err)
	}
	if !st.Stale {
		t.Error("Stale = false, want true")
	}
	if len(g.replaced) != 0 || len(g.tags) != 0 {
		t.Error("stale refresh touched the grid")
	}
	if r.Pools().Has("v1") {
		t.Error("released view still has a pool")
	}

	// the id starts over on its next refresh
	g.onConfig = nil
	st, err = r.OnRefresh(context.Background(), "v1", g, newTestAtlas(t, 9))
	if err != nil || st.Stale || st.Drawn != 1 {
		t.Errorf("refresh after release = %+v, %v", st, err)
	}
}

func TestReentrantRefreshIsCoalesced(t *testing.T) {
	r := newTestRenderer(t, 10, DedupeCycle)
	g := &fakeGrid{body: [][]*CellMeta{{imageCell(0)}, {imageCell(1)}}}
	var inner Stats
	g.onConfig = func(call int) {
		if call == 1 {
			var err error
			inner, err = r.OnRefresh(context.Background(), "v1", g, nil)
			if err != nil {
				t.Errorf("inner OnRefresh: %v", err)
			}
		}
	}

	st, err := r.OnRefresh(context.Background(), "v1", g, newTestAtlas(t, 9))
	if err != nil {
		t.Fatalf("OnRefresh: %v", err)
	}
	if !inner.Coalesced {
		t.Error("inner refresh not coalesced")
	}
	if st.Passes != 2 || g.configCalls != 2 {
		t.Errorf("Passes = %d, config calls = %d, want 2, 2", st.Passes, g.configCalls)
	}
	if st.Drawn != 2 {
		t.Errorf("Drawn = %d, want 2", st.Drawn)
	}
}

func TestRefreshesOfDifferentViewsAreIndependent(t *testing.T) {
	r := newTestRenderer(t, 10, DedupeCycle)
	g2 := &fakeGrid{body: [][]*CellMeta{{imageCell(0)}, {imageCell(1)}}}
	g1 := &fakeGrid{body: [][]*CellMeta{{imageCell(0)}, {imageCell(1)}}}
	var inner Stats
	g1.onConfig = func(call int) {
		if call == 1 {
			inner, _ = r.OnRefresh(context.Background(), "v2", g2, nil)
		}
	}
	if _, err := r.OnRefresh(context.Background(), "v1", g1, nil); err != nil {
		t.Fatal(err)
	}
	if inner.Coalesced || inner.Passes != 1 {
		t.Errorf("refresh of another view = %+v, want one full pass", inner)
	}
}

func TestViewScopeReusesSurfaces(t *testing.T) {
	r := newTestRenderer(t, 10, DedupeView)
	g := &fakeGrid{
		cfg:  ViewConfig{RowPivots: []string{"image"}},
		body: [][]*CellMeta{totalRow(), {pivotCell("4")}, {pivotCell("5")}},
	}
	a := newTestAtlas(t, 9)
	if _, err := r.OnRefresh(context.Background(), "v1", g, a); err != nil {
		t.Fatal(err)
	}
	first := g.surface(t, body(1, 0)).Surface

	st, err := r.OnRefresh(context.Background(), "v1", g, a)
	if err != nil {
		t.Fatal(err)
	}
	if st.Reused != 2 || st.Drawn != 0 {
		t.Errorf("second refresh = %+v, want 2 reused, 0 drawn", st)
	}
	if g.surface(t, body(1, 0)).Surface != first {
		t.Error("reused cell got another surface")
	}

	// a pivot change forgets what was drawn
	g.cfg = ViewConfig{RowPivots: []string{"image", "collection"}}
	st, err = r.OnRefresh(context.Background(), "v1", g, a)
	if err != nil {
		t.Fatal(err)
	}
	if st.Drawn != 2 || st.Reused != 0 {
		t.Errorf("after pivot change = %+v, want 2 drawn", st)
	}
}

func TestViewScopeWithoutPivotsDrawsEachCell(t *testing.T) {
	r := newTestRenderer(t, 10, DedupeView)
	g := &fakeGrid{body: [][]*CellMeta{{imageCell(1)}, {imageCell(4)}, {imageCell(4)}}}
	a := newTestAtlas(t, 9)

	for pass := 0; pass < 2; pass++ {
		st, err := r.OnRefresh(context.Background(), "v1", g, a)
		if err != nil {
			t.Fatal(err)
		}
		if st.Drawn != 2 || st.Reused != 0 {
			t.Errorf("pass %d = %+v, want 2 drawn, 0 reused", pass, st)
		}
		if g.surface(t, body(1, 0)).Surface == g.surface(t, body(2, 0)).Surface {
			t.Errorf("pass %d: repeated asset shares one surface", pass)
		}
	}
}

func TestViewScopeKeepsReusedSurfaceIntact(t *testing.T) {
	r := newTestRenderer(t, 2, DedupeView)
	g := &fakeGrid{
		cfg:  ViewConfig{RowPivots: []string{"image"}},
		body: [][]*CellMeta{totalRow(), {pivotCell("4")}, {pivotCell("5")}},
	}
	a := newTestAtlas(t, 9)
	if _, err := r.OnRefresh(context.Background(), "v1", g, a); err != nil {
		t.Fatal(err)
	}

	// 4 is reattached to the surface the ring hands out next
	g.body = [][]*CellMeta{totalRow(), {pivotCell("4")}, {pivotCell("6")}}
	st, err := r.OnRefresh(context.Background(), "v1", g, a)
	if err != nil {
		t.Fatal(err)
	}
	if st.Reused != 1 || st.Drawn != 1 {
		t.Fatalf("second refresh = %+v, want 1 reused, 1 drawn", st)
	}
	kept, fresh := g.surface(t, body(1, 0)), g.surface(t, body(2, 0))
	if kept.Surface == fresh.Surface {
		t.Fatal("drawn cell overwrote the reused surface")
	}
	if got, want := kept.Surface.Image.RGBAAt(2, 2), tileColor(4); got != want {
		t.Errorf("reused surface pixel = %v, want %v", got, want)
	}
	if got, want := fresh.Surface.Image.RGBAAt(2, 2), tileColor(6); got != want {
		t.Errorf("drawn surface pixel = %v, want %v", got, want)
	}
}

func TestImageCellNotTaggedTimestamp(t *testing.T) {
	r := newTestRenderer(t, 10, DedupeCycle)
	g := &fakeGrid{
		types: map[string]string{"image": "datetime"},
		body:  [][]*CellMeta{{imageCell(1)}, {imageCell(2)}},
	}
	st, err := r.OnRefresh(context.Background(), "v1", g, newTestAtlas(t, 9))
	if err != nil {
		t.Fatal(err)
	}
	if st.Timestamps != 1 {
		t.Errorf("Timestamps = %d, want 1 for the header row only", st.Timestamps)
	}
	if tags := g.tags[body(1, 0)]; tags[TagTimestamp] || !tags[TagThumbnail] {
		t.Errorf("image cell tags = %v, want thumbnail only", tags)
	}
}

func TestViewConfigErrorIsWrapped(t *testing.T) {
	r := newTestRenderer(t, 10, DedupeCycle)
	boom := errors.New("boom")
	g := &fakeGrid{cfgErr: boom}
	if _, err := r.OnRefresh(context.Background(), "v1", g, nil); !errors.Is(err, boom) {
		t.Fatalf("error = %v, want wrapped boom", err)
	}
}

func TestSyncReleasesRendererState(t *testing.T) {
	r := newTestRenderer(t, 10, DedupeCycle)
	g := &fakeGrid{body: [][]*CellMeta{{imageCell(0)}}}
	for _, id := range []string{"a", "b"} {
		if _, err := r.OnRefresh(context.Background(), id, g, nil); err != nil {
			t.Fatal(err)
		}
	}
	released := r.Sync([]string{"b"})
	if len(released) != 1 || released[0] != "a" {
		t.Errorf("Sync released %v, want [a]", released)
	}
	if r.Pools().Has("a") || !r.Pools().Has("b") {
		t.Error("pools out of sync with active views")
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	if _, err := New(nil, Options{TileWidth: 0, TileHeight: 4}); !errors.Is(err, pool.ErrInvalidSize) {
		t.Errorf("zero tile width error = %v, want ErrInvalidSize", err)
	}
	if _, err := New(nil, Options{TileWidth: 4, TileHeight: 4, Dedupe: "sometimes"}); err == nil {
		t.Error("bad dedupe scope accepted")
	}
	r, err := New(nil, Options{TileWidth: 4, TileHeight: 4})
	if err != nil {
		t.Fatal(err)
	}
	if o := r.Options(); o.Capacity != DefaultCapacity || o.Dedupe != DedupeCycle {
		t.Errorf("defaults = %+v", o)
	}
}

func TestParseDedupeScope(t *testing.T) {
	tests := map[string]DedupeScope{"": DedupeCycle, "cycle": DedupeCycle, " VIEW ": DedupeView, "off": DedupeOff}
	for in, want := range tests {
		got, err := ParseDedupeScope(in)
		if err != nil || got != want {
			t.Errorf("ParseDedupeScope(%q) = %q, %v, want %q", in, got, err, want)
		}
	}
	if _, err := ParseDedupeScope("never"); err == nil {
		t.Error("ParseDedupeScope(never) succeeded")
	}
}
