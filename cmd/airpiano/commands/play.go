package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayusman/airpiano/internal/app"
	"github.com/ayusman/airpiano/internal/config"
	"github.com/ayusman/airpiano/internal/server"
	"github.com/ayusman/airpiano/internal/tray"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Open the camera and play",
	Long: `Open the camera, draw the keyboard and play notes until Escape is
pressed, the window is closed or the process is interrupted.`,
	Args: cobra.NoArgs,
	RunE: runPlay,
}

func init() {
	f := playCmd.Flags()
	f.Int("octaves", 0, "number of octaves to draw")
	f.String("policy", "", "voice policy: mono or poly")
	f.String("engine", "", "audio engine: midi, sample or mock")
	f.String("bank", "", "voice bank to play")
	f.String("midi-port", "", "MIDI output port name")
	f.String("record", "", "write the take to this .mid file")
	f.Int("camera", 0, "camera device index")
	f.Bool("no-window", false, "run without the overlay window")
	f.String("addr", "", "HTTP server address")
	f.Bool("no-server", false, "do not start the HTTP server")
	f.Bool("tray", false, "show the system tray menu")

	rootCmd.AddCommand(playCmd)
}

// applyPlayFlags overrides cfg with every flag set on the command line.
func applyPlayFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("octaves") {
		cfg.Keyboard.Octaves, _ = f.GetInt("octaves")
	}
	if f.Changed("policy") {
		cfg.Voice.Policy, _ = f.GetString("policy")
	}
	if f.Changed("engine") {
		cfg.Voice.Engine, _ = f.GetString("engine")
	}
	if f.Changed("bank") {
		cfg.Voice.Bank, _ = f.GetString("bank")
	}
	if f.Changed("midi-port") {
		cfg.Voice.MIDI.Port, _ = f.GetString("midi-port")
	}
	if f.Changed("record") {
		cfg.Record, _ = f.GetString("record")
	}
	if f.Changed("camera") {
		cfg.Camera.Device, _ = f.GetInt("camera")
	}
	if noWindow, _ := f.GetBool("no-window"); noWindow {
		cfg.Window = false
	}
	if f.Changed("addr") {
		cfg.Server.Addr, _ = f.GetString("addr")
		cfg.Server.Enabled = true
	}
	if noServer, _ := f.GetBool("no-server"); noServer {
		cfg.Server.Enabled = false
	}
	if f.Changed("tray") {
		cfg.Tray, _ = f.GetBool("tray")
	}
	return cfg.Validate()
}

func runPlay(cmd *cobra.Command, args []string) error {
	p := newPrinter(cmd)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyPlayFlags(cmd, cfg); err != nil {
		return p.Error("Invalid option", err.Error(), []string{"See: airpiano play --help"})
	}
	if cfg.Tray && cfg.Window {
		// The tray owns the main thread.
		log.Println("Tray enabled, running without the overlay window")
		cfg.Window = false
	}

	st, err := openStore(cmd, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	a, err := app.New(app.Config{Settings: cfg, Store: st})
	if err != nil {
		return p.Error("Failed to start", err.Error(), []string{
			"List voice banks with: airpiano voices list",
			"Run with --engine mock to play without audio",
		})
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	streamURL := ""
	if cfg.Server.Enabled {
		srv := server.New(a.ServerConfig(findWebDir(cfg.DataDir)))
		streamURL = "http://" + cfg.Server.Addr + "/api/stream"
		go func() {
			if err := srv.Run(ctx, cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Server failed: %v", err)
			}
		}()
		p.Step("Serving on http://%s\n", cfg.Server.Addr)
	}

	p.Success("Playing %d keys (%s voices, %s engine). Press Escape to stop.\n",
		a.Layout().Notes(), cfg.Voice.Policy, cfg.Voice.Engine)

	if cfg.Tray {
		err = runWithTray(ctx, stop, a, streamURL)
	} else {
		err = a.Run(ctx)
	}
	if err != nil {
		return p.Error("Playback stopped", err.Error(), []string{
			fmt.Sprintf("Check that camera %d is connected and not in use", cfg.Camera.Device),
		})
	}

	if r := a.Recorder(); r != nil && r.Len() > 0 {
		p.Success("Recording saved to %s\n", cfg.Record)
	}
	return nil
}

// runWithTray runs the frame loop in the background while the tray menu
// owns the main thread. Either side ending stops the other.
func runWithTray(ctx context.Context, stop context.CancelFunc, a *app.App, streamURL string) error {
	h := tray.Handlers{Toggle: a.SetEnabled, Quit: stop}
	if streamURL != "" {
		h.Open = func() {
			if err := openURL(streamURL); err != nil {
				log.Printf("Error opening browser: %v", err)
			}
		}
	}
	t := tray.New(h)
	a.OnNote(t.SetLastNote)

	done := make(chan error, 1)
	go func() {
		done <- a.Run(ctx)
		t.Quit()
	}()

	t.Run()
	stop()
	return <-done
}

// openURL opens url in the default browser.
func openURL(url string) error {
	var c *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		c = exec.Command("open", url)
	case "windows":
		c = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		c = exec.Command("xdg-open", url)
	}
	return c.Start()
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	paths := []string{"web", "../web", "../../web"}
	if dataDir != "" {
		paths = append(paths, filepath.Join(dataDir, "web"))
	}
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
