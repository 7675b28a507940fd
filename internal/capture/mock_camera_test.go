package capture

import (
	"errors"
	"testing"
)

func readN(t *testing.T, c *MockCamera, n int) error {
	t.Helper()
	for i := 0; i < n; i++ {
		f, err := c.ReadFrame()
		if err != nil {
			return err
		}
		f.Close()
	}
	return nil
}

func TestMockCamera(t *testing.T) {
	t.Run("plays each frame once", func(t *testing.T) {
		cam := NewBlankCamera(64, 48, 2)
		defer cam.Release()
		cam.Open()

		if err := readN(t, cam, 2); err != nil {
			t.Fatalf("ReadFrame() error = %v", err)
		}
		if _, err := cam.ReadFrame(); !errors.Is(err, ErrEndOfStream) {
			t.Errorf("expected ErrEndOfStream, got %v", err)
		}
		if cam.Reads() != 2 {
			t.Errorf("Reads() = %d, want 2", cam.Reads())
		}
	})

	t.Run("loops", func(t *testing.T) {
		cam := NewBlankCamera(64, 48, 2)
		defer cam.Release()
		cam.SetLoop(true)
		cam.Open()

		if err := readN(t, cam, 5); err != nil {
			t.Fatalf("ReadFrame() error = %v", err)
		}
	})

	t.Run("reopen rewinds", func(t *testing.T) {
		cam := NewBlankCamera(64, 48, 1)
		defer cam.Release()
		cam.Open()
		readN(t, cam, 1)
		cam.Close()
		cam.Open()

		if err := readN(t, cam, 1); err != nil {
			t.Errorf("expected a frame after reopening, got %v", err)
		}
	})

	t.Run("not open", func(t *testing.T) {
		cam := NewMockCamera()
		if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
			t.Errorf("expected ErrCameraNotOpen, got %v", err)
		}
	})

	t.Run("no frames", func(t *testing.T) {
		cam := NewMockCamera()
		cam.Open()
		if _, err := cam.ReadFrame(); !errors.Is(err, ErrEndOfStream) {
			t.Errorf("expected ErrEndOfStream, got %v", err)
		}
	})

	t.Run("frame size", func(t *testing.T) {
		cam := NewBlankCamera(320, 240, 1)
		defer cam.Release()
		cam.Open()

		f, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() error = %v", err)
		}
		defer f.Close()
		if f.Cols() != 320 || f.Rows() != 240 {
			t.Errorf("frame size = %dx%d, want 320x240", f.Cols(), f.Rows())
		}
	})
}
