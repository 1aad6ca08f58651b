package plugin

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/Dicklesworthstone/thumbgrid/internal/pool"
	"github.com/Dicklesworthstone/thumbgrid/internal/render"
)

type emptyGrid struct{}

func (emptyGrid) ViewConfig(context.Context) (render.ViewConfig, error) { return render.ViewConfig{}, nil }
func (emptyGrid) ColumnType(string) string                              { return "" }
func (emptyGrid) Rows(render.Section) int                               { return 0 }
func (emptyGrid) Cols(render.Section, int) int                          { return 0 }
func (emptyGrid) Meta(render.Cell) (render.CellMeta, bool)              { return render.CellMeta{}, false }
func (emptyGrid) Tag(render.Cell, render.Tag, bool)                     {}
func (emptyGrid) Replace(render.Cell, render.Content)                   {}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Descriptor{Name: "A"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(Descriptor{Name: "A"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate Register error = %v, want ErrDuplicate", err)
	}
	if err := r.Register(Descriptor{}); err == nil {
		t.Fatal("Register without name succeeded")
	}
	if _, err := r.Get("B"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(B) error = %v, want ErrNotFound", err)
	}
}

func TestBuiltin(t *testing.T) {
	pools := pool.NewRegistry()
	rd, err := render.New(pools, render.Options{TileWidth: 4, TileHeight: 4})
	if err != nil {
		t.Fatal(err)
	}
	reg, err := Builtin(rd)
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	if want := []string{Datagrid, ThumbnailDatagrid}; !reflect.DeepEqual(reg.Names(), want) {
		t.Errorf("Names() = %v, want %v", reg.Names(), want)
	}

	thumb, err := reg.Get(ThumbnailDatagrid)
	if err != nil {
		t.Fatal(err)
	}
	if !thumb.Thumbnails || thumb.Destroy == nil {
		t.Errorf("thumbnail descriptor = %+v", thumb)
	}
	if _, err := thumb.Draw(context.Background(), "slot-1", emptyGrid{}, nil); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if !pools.Has("slot-1") {
		t.Fatal("Draw did not allocate the view's pool")
	}
	thumb.Destroy("slot-1")
	if pools.Has("slot-1") {
		t.Error("Destroy did not release the view's pool")
	}

	plain, err := reg.Get(Datagrid)
	if err != nil {
		t.Fatal(err)
	}
	st, err := plain.Draw(context.Background(), "slot-2", emptyGrid{}, nil)
	if err != nil || st.Passes != 0 {
		t.Errorf("plain Draw = %+v, %v", st, err)
	}
	if pools.Has("slot-2") {
		t.Error("plain datagrid allocated a pool")
	}
}
