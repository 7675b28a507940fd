package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/airpiano/internal/capture"
	"github.com/ayusman/airpiano/internal/metrics"
	"github.com/ayusman/airpiano/internal/overlay"
	"github.com/ayusman/airpiano/internal/piano"
	"github.com/ayusman/airpiano/internal/server"
)

// Run opens the camera and processes frames until ctx is cancelled, the
// renderer reports the exit key or a finite source runs out of frames.
// Every resource is released before Run returns.
//
// Per frame:
// 1. Read and mirror a frame
// 2. Run hand detection, or reuse the last hands when the motion gate is closed
// 3. Hit-test fingertips, gate and fire notes
// 4. Draw the overlay, show it and publish it to the stream and state hub
func (a *App) Run(ctx context.Context) error {
	if err := a.camera.Open(); err != nil {
		a.Close()
		return fmt.Errorf("open camera: %w", err)
	}
	if a.renderer == nil {
		if a.settings.Window {
			a.renderer = overlay.NewWindow(WindowTitle, a.settings.ExitKey)
		} else if t, err := overlay.NewTerminal(os.Stdin, a.settings.ExitKey); err == nil {
			a.renderer = t
		} else {
			a.renderer = overlay.Headless{}
		}
	}
	defer a.Close()

	log.Println("Frame loop started")

	readErrors := 0
	for {
		select {
		case <-ctx.Done():
			log.Println("Frame loop stopped")
			return nil
		default:
		}

		frame, err := a.camera.ReadFrame()
		if err != nil {
			if errors.Is(err, capture.ErrEndOfStream) {
				log.Println("Camera stream ended")
				return nil
			}
			a.metrics.ObserveFrame(metrics.OutcomeError, 0)
			readErrors++
			if errors.Is(err, capture.ErrCameraNotOpen) || readErrors >= MaxReadErrors {
				return fmt.Errorf("read frame: %w", err)
			}
			log.Printf("Error reading frame: %v", err)
			continue
		}
		readErrors = 0

		exit := a.step(frame)
		frame.Close()
		if exit {
			log.Println("Exit key pressed")
			return nil
		}
	}
}

// step processes one frame and reports whether the user asked to exit.
func (a *App) step(frame *gocv.Mat) bool {
	start := a.now()
	outcome := metrics.OutcomeProcessed

	if a.motion.Active(frame, start) {
		hands, err := a.detector.Detect(frame)
		if err != nil {
			// No observation: keep the gate as it was and only redraw.
			if !a.detectFailing {
				log.Printf("Error detecting hands: %v", err)
				a.detectFailing = true
			}
			a.metrics.ObserveFrame(metrics.OutcomeError, 0)
			return a.present(frame, piano.Frame{})
		}
		if a.detectFailing {
			log.Println("Hand detection recovered")
			a.detectFailing = false
		}
		a.hands = hands
	} else {
		outcome = metrics.OutcomeReused
	}

	hands := a.hands
	if !a.IsEnabled() {
		hands = nil
	}

	size := image.Pt(frame.Cols(), frame.Rows())
	result := a.session.ProcessFrame(hands, size, start)

	a.record(result, start)
	a.publish(result, len(hands), start)
	exit := a.present(frame, result)

	a.metrics.ObserveFrame(outcome, a.now().Sub(start))
	return exit
}

// publish hands the frame result to the side consumers.
func (a *App) publish(result piano.Frame, hands int, now time.Time) {
	a.metrics.SetHands(hands)
	a.metrics.SetHeld(len(a.session.Gate().Held()))

	last := -1
	for _, o := range result.Fired {
		failed := !o.Played || o.Err != nil
		a.metrics.Fire(o.Note, failed)
		if o.Err != nil {
			log.Printf("Voice error: %v", o.Err)
		}
		if o.Played {
			last = o.Note
		}
	}

	a.mu.RLock()
	onNote := a.onNote
	a.mu.RUnlock()
	if last >= 0 && onNote != nil {
		onNote(a.noteName(last))
	}

	a.seq++
	a.hub.Publish(server.NewState(a.seq, now, result, a.session.Arbiter().Playing(), a.settings.Keyboard.BaseOctave))
}

// record mirrors voice starts and ends into the take recorder.
func (a *App) record(result piano.Frame, now time.Time) {
	if a.recorder == nil {
		return
	}
	velocity := uint8(a.settings.Voice.MIDI.Velocity)
	for _, o := range result.Fired {
		if o.Stopped >= 0 && a.sounding[o.Stopped] {
			a.recorder.NoteOff(a.midiKey(o.Stopped), now)
			delete(a.sounding, o.Stopped)
		}
		if o.Played {
			a.recorder.NoteOn(a.midiKey(o.Note), velocity, now)
			a.sounding[o.Note] = true
		}
	}

	playing := make(map[int]bool)
	for _, n := range a.session.Arbiter().Playing() {
		playing[n] = true
	}
	for n := range a.sounding {
		if !playing[n] {
			a.recorder.NoteOff(a.midiKey(n), now)
			delete(a.sounding, n)
		}
	}
}

// present draws the overlay onto frame, publishes and shows it.
func (a *App) present(frame *gocv.Mat, result piano.Frame) bool {
	a.painter.Draw(frame, result)
	if err := a.snapshot.Publish(frame); err != nil {
		log.Printf("Error encoding frame: %v", err)
	}
	return a.renderer.Show(frame)
}

// Close releases the camera, detector, renderer, voices and audio engine
// and writes the recording. Run calls it on return; call it directly when
// Run is never reached. Later calls do nothing.
func (a *App) Close() {
	if a.closed {
		return
	}
	a.closed = true

	if err := a.camera.Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}
	a.motion.Close()
	if a.detector != nil {
		if err := a.detector.Close(); err != nil {
			log.Printf("Error closing detector: %v", err)
		}
	}
	if a.renderer != nil {
		if err := a.renderer.Close(); err != nil {
			log.Printf("Error closing window: %v", err)
		}
	}
	if err := a.session.Close(); err != nil {
		log.Printf("Error stopping voices: %v", err)
	}

	if a.recorder != nil && a.recorder.Len() > 0 {
		if err := a.recorder.WriteFile(a.settings.Record); err != nil {
			log.Printf("Error writing recording: %v", err)
		} else {
			log.Printf("Recorded %d events to %s", a.recorder.Len(), a.settings.Record)
		}
	}

	if err := a.engine.Close(); err != nil {
		log.Printf("Error closing audio engine: %v", err)
	}
}
