// File: internal/calibration/profile_test.go
package calibration

import (
	"bytes"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestResolve(t *testing.T) {
	p := Default()
	p.ScreenWidth, p.ScreenHeight = 1000, 2000

	assert.Equal(t, image.Pt(500, 1000), p.Resolve(Point{X: 0.5, Y: 0.5}))
	assert.Equal(t, image.Pt(0, 0), p.Resolve(Point{}))
	assert.Equal(t, image.Pt(1000, 2000), p.Resolve(Point{X: 1, Y: 1}))

	rect := p.ResolveRect(Rect{Left: 0.9, Top: 0.5, Right: 0.1, Bottom: 0.25})
	assert.Equal(t, image.Rect(100, 500, 900, 1000), rect, "rectangles are canonicalized")
}

func TestRowAnchorWrapsPerScreen(t *testing.T) {
	p := Default()
	p.ScreenWidth, p.ScreenHeight = 1000, 1000
	p.FirstRow = Point{X: 0.5, Y: 0.2}
	p.EditTarget = Point{X: 0.9, Y: 0.2}
	p.RowPitch = 0.1
	p.RowsPerScreen = 4

	tests := []struct {
		row  int
		want image.Point
	}{
		{0, image.Pt(500, 200)},
		{1, image.Pt(500, 300)},
		{3, image.Pt(500, 500)},
		{4, image.Pt(500, 200)},
		{9, image.Pt(500, 300)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.RowAnchor(tt.row), "row %d", tt.row)
	}
	assert.Equal(t, image.Pt(900, 300), p.EditAnchor(5))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Profile)
		wantErr string
	}{
		{"point out of range", func(p *Profile) { p.ConfirmButton.X = 1.2 }, "confirm_button"},
		{"negative coordinate", func(p *Profile) { p.SwipeEnd.Y = -0.1 }, "swipe_end"},
		{"region without area", func(p *Profile) { p.ListRegion.Bottom = p.ListRegion.Top }, "list_region must have a positive area"},
		{"zero cap", func(p *Profile) { p.HardPriceCap = 0 }, "hard_price_cap"},
		{"negative increment", func(p *Profile) { p.PriceIncrement = -1 }, "price_increment"},
		{"no rows", func(p *Profile) { p.RowsPerScreen = 0 }, "rows_per_screen"},
		{"bad color", func(p *Profile) { p.HighlightColor = "green" }, "highlight_color"},
		{"bad tolerance", func(p *Profile) { p.ColorTolerance = 300 }, "color_tolerance"},
		{"negative wait", func(p *Profile) { p.Timing.PopupOpenWait = -time.Second }, "timing.popup_open_wait"},
		{"no resolution", func(p *Profile) { p.ScreenWidth = 0 }, "screen resolution"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Default()
			tt.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidProfile))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDecodePartialDocument(t *testing.T) {
	doc := `
name: tablet
screen_width: 1600
hard_price_cap: 2500
price_increment: 5
create_button: {x: 0.3, y: 0.8}
timing:
  popup_open_wait: 1.5s
`
	p, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)

	want := Default()
	want.Name = "tablet"
	want.ScreenWidth = 1600
	want.HardPriceCap = 2500
	want.PriceIncrement = 5
	want.CreateButton = Point{X: 0.3, Y: 0.8}
	want.Timing.PopupOpenWait = 1500 * time.Millisecond

	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("decoded profile mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, p.HasCreateButton())
	assert.False(t, Default().HasCreateButton())
}

func TestDecodeRejects(t *testing.T) {
	_, err := Decode(strings.NewReader("hard_price_cap: -4\n"))
	assert.ErrorIs(t, err, ErrInvalidProfile)

	_, err = Decode(strings.NewReader("unknown_key: 1\n"))
	assert.Error(t, err)

	_, err = Decode(strings.NewReader("timing:\n  tap_duration: soon\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timing.tap_duration")

	_, err = Decode(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrInvalidProfile)
}

func TestSaveAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles", "phone.yaml")
	p := Default()
	p.Name = "phone"
	p.PriceIncrement = 10

	require.NoError(t, Save(path, p))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "popup_open_wait: 900ms")

	got, err := Read(path)
	require.NoError(t, err)
	if diff := cmp.Diff(p, got); diff != "" {
		t.Errorf("profile changed on disk (-want +got):\n%s", diff)
	}
}

func TestSaveRejectsInvalid(t *testing.T) {
	p := Default()
	p.RowsPerScreen = -1
	path := filepath.Join(t.TempDir(), "bad.yaml")

	assert.ErrorIs(t, Save(path, p), ErrInvalidProfile)
	assert.NoFileExists(t, path)
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.yaml")
	require.NoError(t, os.WriteFile(garbage, []byte("::: not yaml"), 0o644))

	tests := []struct {
		name  string
		path  string
		level zapcore.Level
	}{
		{"empty path", "", zapcore.InfoLevel},
		{"missing file", filepath.Join(dir, "absent.yaml"), zapcore.WarnLevel},
		{"unparsable file", garbage, zapcore.WarnLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			p := Load(tt.path, zap.New(core))

			assert.Equal(t, Default(), p)
			require.Equal(t, 1, logs.Len())
			assert.Equal(t, tt.level, logs.All()[0].Level)
		})
	}
}

func TestLoadValidFile(t *testing.T) {
	var buf bytes.Buffer
	p := Default()
	p.Name = "custom"
	require.NoError(t, Encode(&buf, p))

	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	got := Load(path, zap.NewNop())
	assert.Equal(t, "custom", got.Name)
}
