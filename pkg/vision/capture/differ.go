package capture

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-hologram/pkg/vision"
)

// ErrDifferClosed is returned by Changed after Close.
var ErrDifferClosed = errors.New("capture: differ closed")

// Differ compares grayscale frames with OpenCV: absolute difference, binary
// threshold, 3x3 rectangular dilation, non-zero count. Scratch matrices are
// reused across calls.
type Differ struct {
	mu      sync.Mutex
	closed  bool
	kernel  gocv.Mat
	diff    gocv.Mat
	mask    gocv.Mat
	dilated gocv.Mat
}

// NewDiffer allocates the kernel and scratch matrices. Close releases them.
func NewDiffer() *Differ {
	return &Differ{
		kernel:  gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3)),
		diff:    gocv.NewMat(),
		mask:    gocv.NewMat(),
		dilated: gocv.NewMat(),
	}
}

// Changed counts pixels whose difference exceeds pixelThreshold after
// iterations rounds of dilation.
func (d *Differ) Changed(prev, cur vision.Frame, pixelThreshold uint8, iterations int) (int, error) {
	if prev.Width != cur.Width || prev.Height != cur.Height {
		return 0, fmt.Errorf("capture: frame size %dx%d does not match %dx%d",
			cur.Width, cur.Height, prev.Width, prev.Height)
	}
	n := cur.Width * cur.Height
	if n <= 0 || len(prev.Gray) < n || len(cur.Gray) < n {
		return 0, fmt.Errorf("capture: gray plane shorter than %dx%d", cur.Width, cur.Height)
	}

	a, err := gocv.NewMatFromBytes(prev.Height, prev.Width, gocv.MatTypeCV8UC1, prev.Gray[:n])
	if err != nil {
		return 0, fmt.Errorf("capture: previous frame: %w", err)
	}
	defer a.Close()
	b, err := gocv.NewMatFromBytes(cur.Height, cur.Width, gocv.MatTypeCV8UC1, cur.Gray[:n])
	if err != nil {
		return 0, fmt.Errorf("capture: current frame: %w", err)
	}
	defer b.Close()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrDifferClosed
	}

	gocv.AbsDiff(a, b, &d.diff)
	gocv.Threshold(d.diff, &d.mask, float32(pixelThreshold), 255, gocv.ThresholdBinary)
	for i := 0; i < iterations; i++ {
		gocv.Dilate(d.mask, &d.dilated, d.kernel)
		d.dilated.CopyTo(&d.mask)
	}
	return gocv.CountNonZero(d.mask), nil
}

// Close releases the matrices.
func (d *Differ) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.kernel.Close()
	d.diff.Close()
	d.mask.Close()
	d.dilated.Close()
	return nil
}

var _ vision.Differ = (*Differ)(nil)
