// Package capture provides the OpenCV-backed camera, frame differ and hand
// landmark model used by the vision loop.
package capture

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-hologram/pkg/vision"
)

// Camera reads frames from a local video device.
type Camera struct {
	cfg    vision.CameraConfig
	logger *slog.Logger

	mu      sync.Mutex
	vc      *gocv.VideoCapture
	raw     gocv.Mat
	color   gocv.Mat
	gray    gocv.Mat
	blurred gocv.Mat
}

// NewCamera creates a closed camera.
func NewCamera(cfg vision.CameraConfig, logger *slog.Logger) *Camera {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BlurSize > 0 && cfg.BlurSize%2 == 0 {
		cfg.BlurSize++
	}
	return &Camera{cfg: cfg, logger: logger.With("component", "camera")}
}

// Open opens the video device.
func (c *Camera) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vc != nil {
		return nil
	}

	vc, err := gocv.OpenVideoCapture(c.cfg.Device)
	if err != nil {
		return fmt.Errorf("%w: device %d: %v", vision.ErrDeviceUnavailable, c.cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("%w: device %d did not open", vision.ErrDeviceUnavailable, c.cfg.Device)
	}
	if c.cfg.Width > 0 && c.cfg.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(c.cfg.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(c.cfg.Height))
	}

	c.vc = vc
	c.raw = gocv.NewMat()
	c.color = gocv.NewMat()
	c.gray = gocv.NewMat()
	c.blurred = gocv.NewMat()
	c.logger.Info("camera opened", "device", c.cfg.Device)
	return nil
}

// Read captures one frame and preprocesses it: mirror, grayscale, blur.
func (c *Camera) Read(ctx context.Context) (vision.Frame, error) {
	if err := ctx.Err(); err != nil {
		return vision.Frame{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vc == nil {
		return vision.Frame{}, fmt.Errorf("%w: camera not open", vision.ErrCaptureFailure)
	}

	if ok := c.vc.Read(&c.raw); !ok || c.raw.Empty() {
		return vision.Frame{}, fmt.Errorf("%w: no frame from device %d", vision.ErrCaptureFailure, c.cfg.Device)
	}

	if c.cfg.Mirror {
		gocv.Flip(c.raw, &c.color, 1)
	} else {
		c.raw.CopyTo(&c.color)
	}
	gocv.CvtColor(c.color, &c.gray, gocv.ColorBGRToGray)

	plane := c.gray
	if c.cfg.BlurSize > 1 {
		gocv.GaussianBlur(c.gray, &c.blurred, image.Pt(c.cfg.BlurSize, c.cfg.BlurSize), 0, 0, gocv.BorderDefault)
		plane = c.blurred
	}

	return vision.Frame{
		Width:  plane.Cols(),
		Height: plane.Rows(),
		Gray:   plane.ToBytes(),
		BGR:    c.color.ToBytes(),
	}, nil
}

// Close releases the device.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vc == nil {
		return nil
	}
	err := c.vc.Close()
	c.vc = nil
	c.raw.Close()
	c.color.Close()
	c.gray.Close()
	c.blurred.Close()
	c.logger.Info("camera closed")
	return err
}

var _ vision.Camera = (*Camera)(nil)
