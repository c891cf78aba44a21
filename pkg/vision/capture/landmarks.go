package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-hologram/pkg/vision"
)

// HandLandmarker runs a hand landmark network over whole frames. It reports
// at most one hand.
type HandLandmarker struct {
	net gocv.Net
	cfg vision.LandmarkConfig
	mu  sync.Mutex
}

// NewHandLandmarker loads the model.
func NewHandLandmarker(cfg vision.LandmarkConfig) (*HandLandmarker, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load hand landmark model from %s", cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &HandLandmarker{net: net, cfg: cfg}, nil
}

// Detect returns the hand in f, or none when the presence score is too low.
func (h *HandLandmarker) Detect(ctx context.Context, f vision.Frame) ([]vision.Hand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(f.BGR) < f.Width*f.Height*3 || f.Width == 0 {
		return nil, errors.New("frame has no colour plane")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	img, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.BGR)
	if err != nil {
		return nil, fmt.Errorf("wrap frame: %w", err)
	}
	defer img.Close()

	size := h.cfg.InputSize
	blob := gocv.BlobFromImage(img, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	h.net.SetInput(blob, "")
	outs := h.net.ForwardLayers([]string{h.cfg.LandmarksOutput, h.cfg.ScoreOutput})
	defer func() {
		for i := range outs {
			outs[i].Close()
		}
	}()
	if len(outs) != 2 {
		return nil, fmt.Errorf("model returned %d outputs, want 2", len(outs))
	}

	score, err := outs[1].DataPtrFloat32()
	if err != nil || len(score) == 0 {
		return nil, fmt.Errorf("read presence score: %v", err)
	}
	if score[0] < h.cfg.MinScore {
		return nil, nil
	}

	points, err := outs[0].DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read landmarks: %w", err)
	}
	if len(points) < vision.NumLandmarks*3 {
		return nil, fmt.Errorf("model returned %d landmark values", len(points))
	}
	return []vision.Hand{parseHand(points, float64(size), float64(score[0]))}, nil
}

// parseHand converts x,y,z triples in input pixels to normalized coordinates.
func parseHand(points []float32, size, score float64) vision.Hand {
	hand := vision.Hand{Score: score}
	for i := 0; i < vision.NumLandmarks; i++ {
		hand.Landmarks[i] = vision.Landmark{
			X: float64(points[i*3]) / size,
			Y: float64(points[i*3+1]) / size,
			Z: float64(points[i*3+2]) / size,
		}
	}
	return hand
}

// Close releases the network.
func (h *HandLandmarker) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.net.Close()
}

var _ vision.Landmarker = (*HandLandmarker)(nil)
