package cli

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Dicklesworthstone/thumbgrid/internal/state"
	"github.com/Dicklesworthstone/thumbgrid/internal/table"
)

// run executes the root command with fresh global flags and an isolated
// config and state directory.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("THUMBGRID_CONFIG", "")
	t.Setenv("THUMBGRID_ATLAS", "")

	cfgFile, jsonOutput, noColor, logLevel = "", false, false, "error"
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionJSON(t *testing.T) {
	out, err := run(t, "version", "--json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var v VersionResponse
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if v.Version != Version || v.GoVersion == "" {
		t.Errorf("version response = %+v", v)
	}
}

func TestConfigValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[render]\ndedupe = \"sometimes\"\n[pool]\ncapacity = 0\n"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "--config", path, "config", "validate")
	if err == nil {
		t.Fatal("invalid config should fail validation")
	}
	for _, want := range []string{"render.dedupe", "pool.capacity"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if _, err := run(t, "config", "validate"); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestConfigShowAppliesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[pool]\ncapacity = 42\n"), 0644); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, "--config", path, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "capacity = 42") {
		t.Errorf("config show missing override:\n%s", out)
	}
}

func TestLayoutShowAndReset(t *testing.T) {
	out, err := run(t, "layout", "show")
	if err != nil {
		t.Fatalf("layout show: %v", err)
	}
	if !strings.Contains(out, "No saved layout") {
		t.Errorf("empty store output = %q", out)
	}

	dir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", dir)
	store, err := state.Open(filepath.Join(dir, "thumbgrid", "layout.db"))
	if err != nil {
		t.Fatalf("state.Open: %v", err)
	}
	if err := store.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := store.SaveLayout(state.Layout{
		Active: "view-2",
		Views: []state.ViewLayout{
			{ID: "view-1", Plugin: "Datagrid", Table: table.DefaultName},
			{ID: "view-2", Plugin: "Thumbnail Datagrid", Table: table.DefaultName,
				Config: table.Config{RowPivots: []string{"collection"}}},
		},
	}); err != nil {
		t.Fatalf("SaveLayout: %v", err)
	}
	store.Close()

	// run resets XDG_STATE_HOME, so point the config at the database
	cfgPath := filepath.Join(dir, "config.toml")
	db := filepath.Join(dir, "thumbgrid", "layout.db")
	if err := os.WriteFile(cfgPath, []byte("[workspace]\nstate_db = \""+db+"\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err = run(t, "--config", cfgPath, "layout", "show")
	if err != nil {
		t.Fatalf("layout show: %v", err)
	}
	if !strings.Contains(out, "2 views") || !strings.Contains(out, "collection") {
		t.Errorf("layout show output:\n%s", out)
	}

	out, err = run(t, "--config", cfgPath, "layout", "reset")
	if err != nil || !strings.Contains(out, "deleted") {
		t.Fatalf("layout reset = %q, %v", out, err)
	}
	out, _ = run(t, "--config", cfgPath, "layout", "show")
	if !strings.Contains(out, "No saved layout") {
		t.Errorf("layout after reset = %q", out)
	}
}

func writePNG(t *testing.T, path string, c color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestAtlasBuildThenTile(t *testing.T) {
	dir := t.TempDir()
	thumbs := filepath.Join(dir, "thumbs")
	if err := os.Mkdir(thumbs, 0755); err != nil {
		t.Fatal(err)
	}
	writePNG(t, filepath.Join(thumbs, "1.png"), color.RGBA{R: 255, A: 255})
	writePNG(t, filepath.Join(thumbs, "3.png"), color.RGBA{B: 255, A: 255})

	sheet := filepath.Join(dir, "atlas.jpg")
	lookup := filepath.Join(dir, "lookup.json")
	out, err := run(t, "atlas", "build", thumbs, "-o", sheet, "--lookup", lookup)
	if err != nil {
		t.Fatalf("atlas build: %v", err)
	}
	if !strings.Contains(out, "2 placed") {
		t.Errorf("build output = %q", out)
	}

	data, err := os.ReadFile(lookup)
	if err != nil {
		t.Fatalf("lookup not written: %v", err)
	}
	var boxes map[string][4]int
	if err := json.Unmarshal(data, &boxes); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if boxes["3"] != [4]int{150, 200, 0, 50} {
		t.Errorf("tile box of 3 = %v", boxes["3"])
	}

	tilePath := filepath.Join(dir, "1.png")
	if _, err := run(t, "atlas", "tile", "1", "--atlas", sheet, "--png", tilePath); err != nil {
		t.Fatalf("atlas tile: %v", err)
	}
	f, err := os.Open(tilePath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	tile, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decoding tile: %v", err)
	}
	if tile.Bounds().Dx() != 50 || tile.Bounds().Dy() != 50 {
		t.Errorf("tile size = %v", tile.Bounds())
	}
	r, g, b, _ := tile.At(25, 25).RGBA()
	if r>>8 < 200 || g>>8 > 60 || b>>8 > 60 {
		t.Errorf("tile 1 centre = (%d,%d,%d), want red", r>>8, g>>8, b>>8)
	}

	out, err = run(t, "--json", "atlas", "info", sheet)
	if err != nil {
		t.Fatalf("atlas info: %v", err)
	}
	var info atlasInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if info.Tiles != 94 || info.Width != 4700 || info.Height != 50 {
		t.Errorf("atlas info = %+v", info)
	}
}

func TestAtlasTileRejectsBadID(t *testing.T) {
	if _, err := run(t, "atlas", "tile", "abc"); err == nil {
		t.Error("non-numeric id should fail")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"debug", "DEBUG", false},
		{"WARNING", "WARN", false},
		{" error ", "ERROR", false},
		{"loud", "INFO", true},
	}
	for _, tc := range tests {
		lvl, err := parseLevel(tc.in)
		if (err != nil) != tc.wantErr || lvl.String() != tc.want {
			t.Errorf("parseLevel(%q) = %v, %v", tc.in, lvl, err)
		}
	}
}
