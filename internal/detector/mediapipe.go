package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

const (
	scriptName = "hand_service.py"
	// A failed service is restarted after restartDelay, doubling on each
	// consecutive failure up to maxRestartDelay.
	restartDelay    = 500 * time.Millisecond
	maxRestartDelay = 30 * time.Second
)

// ErrServiceFailed is returned when the landmark service dies or replies
// with garbage, and while a restart is pending.
var ErrServiceFailed = errors.New("landmark service failed")

// MediaPipeDetector implements Detector using a Python MediaPipe subprocess.
// Frames go to the service as length-prefixed JPEG; each reply is one JSON
// line with normalized landmarks, so frames can be shrunk before sending
// without changing the result.
type MediaPipeDetector struct {
	config    Config
	script    string
	cmd       *exec.Cmd
	stdin     *bufio.Writer
	closeIn   io.Closer
	stdout    *bufio.Reader
	small     gocv.Mat
	header    [4]byte
	mu        sync.Mutex
	started   bool
	idleTimer *time.Timer
	failures  int
	retryAt   time.Time
	now       func() time.Time
}

// NewMediaPipeDetector creates a new MediaPipe detector.
// The Python process is started lazily on first detection.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	script := findScript(config.Script)
	if script == "" {
		return nil, fmt.Errorf("%s not found", scriptName)
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = DefaultConfig().IdleTimeout
	}

	return &MediaPipeDetector{
		config: config,
		script: script,
		small:  gocv.NewMat(),
		now:    time.Now,
	}, nil
}

// Detect sends a frame to the service and returns the hands it found.
// Hands reported with fewer than NumLandmarks points are dropped.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started && d.now().Before(d.retryAt) {
		return nil, fmt.Errorf("%w: restart pending", ErrServiceFailed)
	}
	if err := d.ensureStarted(); err != nil {
		d.fail()
		return nil, err
	}

	buf, err := gocv.IMEncode(".jpg", d.shrink(frame))
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	line, err := d.roundTrip(buf.GetBytes())
	if err != nil {
		d.fail()
		return nil, fmt.Errorf("%w: %v", ErrServiceFailed, err)
	}

	var response struct {
		Hands []jsonHand `json:"hands"`
	}
	if err := json.Unmarshal(line, &response); err != nil {
		d.fail()
		return nil, fmt.Errorf("%w: parse response: %v", ErrServiceFailed, err)
	}

	result := make([]HandLandmarks, 0, len(response.Hands))
	for _, h := range response.Hands {
		if len(h.Points) < NumLandmarks {
			continue
		}
		result = append(result, h.toHandLandmarks())
	}

	d.failures = 0
	d.resetIdleTimer()
	return result, nil
}

// fail stops the service and schedules the next start.
func (d *MediaPipeDetector) fail() {
	d.shutdown()
	delay := restartDelay << min(d.failures, 6)
	if delay > maxRestartDelay {
		delay = maxRestartDelay
	}
	d.failures++
	d.retryAt = d.now().Add(delay)
}

// shrink returns frame, or a copy scaled down to InferenceWidth.
func (d *MediaPipeDetector) shrink(frame *gocv.Mat) gocv.Mat {
	w := d.config.InferenceWidth
	if w <= 0 || frame.Cols() <= w {
		return *frame
	}
	h := frame.Rows() * w / frame.Cols()
	gocv.Resize(*frame, &d.small, image.Pt(w, h), 0, 0, gocv.InterpolationArea)
	return d.small
}

// roundTrip writes one length-prefixed frame and reads one reply line.
func (d *MediaPipeDetector) roundTrip(jpeg []byte) ([]byte, error) {
	binary.BigEndian.PutUint32(d.header[:], uint32(len(jpeg)))
	if _, err := d.stdin.Write(d.header[:]); err != nil {
		return nil, fmt.Errorf("write length: %w", err)
	}
	if _, err := d.stdin.Write(jpeg); err != nil {
		return nil, fmt.Errorf("write frame: %w", err)
	}
	if err := d.stdin.Flush(); err != nil {
		return nil, fmt.Errorf("flush frame: %w", err)
	}

	line, err := d.stdout.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return line, nil
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.shutdown()
	d.small.Close()
	return err
}

func (d *MediaPipeDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	python := d.config.Python
	if python == "" {
		python = findVenvPython()
	}
	if python == "" {
		python = "python3"
	}

	cmd := exec.Command(python, d.script,
		"--max-hands", strconv.Itoa(d.config.MaxHands),
		"--min-detection", strconv.FormatFloat(d.config.MinConfidence, 'f', -1, 64),
		"--min-tracking", strconv.FormatFloat(d.config.MinTrackingConf, 'f', -1, 64),
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	// Service logs go straight to ours
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start landmark service: %w", err)
	}

	d.cmd = cmd
	d.stdin = bufio.NewWriter(stdin)
	d.closeIn = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true
	return nil
}

func (d *MediaPipeDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	// Closing stdin ends the service's read loop.
	d.closeIn.Close()
	err := d.cmd.Wait()

	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.closeIn = nil
	d.stdout = nil
	return err
}

func (d *MediaPipeDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(d.config.IdleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.shutdown()
	})
}

// findScript returns the landmark service script: override when set,
// otherwise the first of scripts/, ../scripts/, <exe dir>/scripts/ and
// ~/.airpiano/scripts/ that holds it.
func findScript(override string) string {
	if override != "" {
		return firstExisting(override)
	}
	return firstExisting(searchPaths(filepath.Join("scripts", scriptName), "..")...)
}

// findVenvPython looks for a Python interpreter in a virtual environment
// next to the working directory, the executable or under ~/.airpiano.
func findVenvPython() string {
	return firstExisting(searchPaths(filepath.Join("venv", "bin", "python"), "..", filepath.Join("..", ".."))...)
}

// searchPaths lists rel under the working directory, each parent, the
// executable's directory and ~/.airpiano.
func searchPaths(rel string, parents ...string) []string {
	paths := []string{rel}
	for _, p := range parents {
		paths = append(paths, filepath.Join(p, rel))
	}
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), rel))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".airpiano", rel))
	}
	return paths
}

// firstExisting returns the absolute form of the first path that exists.
func firstExisting(paths ...string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	}
	return ""
}

// jsonHand represents the JSON structure from the Python service.
type jsonHand struct {
	Points     []jsonPoint `json:"points"`
	Handedness string      `json:"handedness"`
	Score      float64     `json:"score"`
}

type jsonPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (h jsonHand) toHandLandmarks() HandLandmarks {
	lm := HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}
	for i := 0; i < NumLandmarks && i < len(h.Points); i++ {
		p := h.Points[i]
		lm.Points[i] = Point3D{X: p.X, Y: p.Y, Z: p.Z}
	}
	return lm
}
