package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/seamcarve/pkg/core/seam"
	"github.com/matzehuels/seamcarve/pkg/errors"
	"github.com/matzehuels/seamcarve/pkg/imageio"
)

const testPPM = "P3\n3 2\n255\n" +
	"0 0 0 200 200 200 0 0 0\n" +
	"0 0 0 200 200 200 0 0 0\n"

func typeName(v any) string { return fmt.Sprintf("%T", v) }

// newTestCLI isolates config and cache directories from the user's.
func newTestCLI(t *testing.T) *CLI {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	return New(io.Discard, LogInfo)
}

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.ppm")
	if err := os.WriteFile(path, []byte(testPPM), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, c *CLI, args ...string) error {
	t.Helper()
	root := c.RootCommand()
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	return root.ExecuteContext(t.Context())
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()
	want := []string{"carve", "seam", "stats", "energy", "serve", "cache", "config", "completion"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestResolveOutput(t *testing.T) {
	tests := []struct {
		name       string
		cfgFormat  string
		format     string
		output     string
		wantFormat imageio.Format
		wantOutput string
		wantErr    bool
	}{
		{"defaults", "ppm", "", "", imageio.FormatPPM, "out.ppm", false},
		{"config png", "png", "", "", imageio.FormatPNG, "out.png", false},
		{"explicit format", "ppm", "jpg", "", imageio.FormatJPEG, "out.jpg", false},
		{"from extension", "ppm", "", "small.bmp", imageio.FormatBMP, "small.bmp", false},
		{"format beats extension", "ppm", "png", "small.bmp", imageio.FormatPNG, "small.bmp", false},
		{"unknown extension", "tiff", "", "out.dat", imageio.FormatTIFF, "out.dat", false},
		{"bad format", "ppm", "gif", "", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(io.Discard, LogInfo)
			c.Config.Carve.Format = tt.cfgFormat
			f, out, err := c.resolveOutput(tt.format, tt.output)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if f != tt.wantFormat || out != tt.wantOutput {
				t.Errorf("got (%s, %s), want (%s, %s)", f, out, tt.wantFormat, tt.wantOutput)
			}
		})
	}
}

func TestCarveCommand(t *testing.T) {
	c := newTestCLI(t)
	in := writeInput(t)
	out := filepath.Join(t.TempDir(), "narrow.ppm")

	if err := execute(t, c, "carve", in, "-n", "1", "-o", out, "--cropped"); err != nil {
		t.Fatalf("carve: %v", err)
	}
	img, _, err := imageio.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if img.Width != 2 || img.Height != 2 {
		t.Errorf("output size = %dx%d, want 2x2", img.Width, img.Height)
	}
	// The leftmost dark column holds the cheapest seam.
	if img.At(0, 0) != (seam.Pixel{R: 200, G: 200, B: 200}) || img.At(0, 1) != (seam.Pixel{}) {
		t.Errorf("unexpected pixels: %+v", img.Pixels)
	}
}

func TestCarveCommandRemovesAllByDefault(t *testing.T) {
	c := newTestCLI(t)
	in := writeInput(t)
	out := filepath.Join(t.TempDir(), "black.ppm")

	if err := execute(t, c, "carve", in, "-o", out, "--no-cache"); err != nil {
		t.Fatalf("carve: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	want := "P3\n3 2\n255\n0 0 0 0 0 0 0 0 0 \n0 0 0 0 0 0 0 0 0 \n"
	if string(data) != want {
		t.Errorf("output = %q, want %q", data, want)
	}
}

func TestCarveCommandMissingInput(t *testing.T) {
	c := newTestCLI(t)
	err := execute(t, c, "carve", filepath.Join(t.TempDir(), "nope.ppm"), "--no-cache")
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("err = %v, want FILE_NOT_FOUND", err)
	}
}

func TestEnergyCommand(t *testing.T) {
	c := newTestCLI(t)
	in := writeInput(t)
	out := filepath.Join(t.TempDir(), "energy.png")

	if err := execute(t, c, "energy", in, "-o", out); err != nil {
		t.Fatalf("energy: %v", err)
	}
	img, f, err := imageio.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if f != imageio.FormatPNG || img.Width != 3 || img.Height != 2 {
		t.Errorf("got %s %dx%d", f, img.Width, img.Height)
	}
}

func TestConfigFlag(t *testing.T) {
	c := newTestCLI(t)

	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(cfgPath, []byte("[carve]\nformat = \"png\"\n\n[cache]\nbackend = \"none\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := execute(t, c, "--config", cfgPath, "config", "path"); err != nil {
		t.Fatalf("config path: %v", err)
	}
	if c.Config.Carve.Format != "png" || c.Config.Cache.Backend != "none" {
		t.Errorf("config not loaded: %+v", c.Config)
	}

	err := execute(t, c, "--config", filepath.Join(t.TempDir(), "missing.toml"), "config", "show")
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("missing config: err = %v", err)
	}

	bad := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(bad, []byte("[cache]\nbackend = \"s3\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := execute(t, c, "--config", bad, "config", "show"); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("bad config: err = %v", err)
	}
}

func TestVerboseFlag(t *testing.T) {
	c := newTestCLI(t)
	if err := execute(t, c, "-v", "config", "path"); err != nil {
		t.Fatal(err)
	}
	if c.Logger.GetLevel() != LogDebug {
		t.Errorf("level = %v, want debug", c.Logger.GetLevel())
	}
}

func TestWriteStatsPlain(t *testing.T) {
	var buf bytes.Buffer
	st := seam.Statistics{Width: 3, Height: 2, Brightness: 66}
	if err := writeStatsPlain(&buf, st); err != nil {
		t.Fatal(err)
	}
	if want := "width: 3\nheight: 2\nbrightness: 66\n"; buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestStatsTable(t *testing.T) {
	out := statsTable(seam.Statistics{Width: 640, Height: 480, Brightness: 127})
	for _, want := range []string{"width", "640", "height", "480", "brightness", "127"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestCarveSummary(t *testing.T) {
	line := carveSummary(10, 4, 7, 3, true)
	for _, want := range []string{"3 seams", "10x4", "7x4", iconCached} {
		if !strings.Contains(line, want) {
			t.Errorf("summary %q missing %q", line, want)
		}
	}
	if !strings.Contains(carveSummary(10, 4, 7, 3, false), iconFresh) {
		t.Error("uncached summary should say fresh")
	}
}
