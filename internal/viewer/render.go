package viewer

import (
	"bufio"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/shmflow/internal/sample"
)

// SnapshotRenderer writes each frame as a PNG file. The file is replaced
// atomically, so readers never see a partial image.
type SnapshotRenderer struct {
	Path string
}

// Render implements Renderer.
func (r SnapshotRenderer) Render(f sample.Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(r.Path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(r.Path)+".*")
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := png.Encode(w, f.ToImage()); err != nil {
		tmp.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return os.Rename(tmp.Name(), r.Path)
}

// asciiRamp goes from dark to bright.
const asciiRamp = " .:-=+*#%@"

// ASCIIRenderer draws frames as text, Cols characters wide, redrawing in
// place on an ANSI terminal.
type ASCIIRenderer struct {
	W    io.Writer
	Cols int
	// Plain disables the cursor-home escape, for logs and tests.
	Plain bool
}

// Render implements Renderer.
func (r ASCIIRenderer) Render(f sample.Frame) error {
	if f.Empty() {
		return nil
	}
	cols := r.Cols
	if cols <= 0 || cols > f.Width {
		cols = min(f.Width, 80)
	}
	// Terminal cells are about twice as tall as wide.
	step := float64(f.Width) / float64(cols)
	rows := max(1, int(float64(f.Height)/(2*step)))

	var b strings.Builder
	if !r.Plain {
		b.WriteString("\x1b[H")
	}
	for row := 0; row < rows; row++ {
		y := int(float64(row) * 2 * step)
		for col := 0; col < cols; col++ {
			x := int(float64(col) * step)
			g := int(f.Gray(x, y))
			b.WriteByte(asciiRamp[g*(len(asciiRamp)-1)/255])
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "#%d %dx%d %s\n", f.Counter, f.Width, f.Height, f.Format)

	_, err := io.WriteString(r.W, b.String())
	return err
}

// PoseRenderer prints one JSON object per pose.
type PoseRenderer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPoseRenderer writes to w.
func NewPoseRenderer(w io.Writer) *PoseRenderer {
	return &PoseRenderer{w: w}
}

// Render implements Renderer.
func (r *PoseRenderer) Render(p sample.Pose) error {
	data, err := sonic.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode pose: %w", err)
	}
	data = append(data, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()
	_, err = r.w.Write(data)
	return err
}
