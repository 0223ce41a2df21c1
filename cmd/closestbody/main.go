package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ayusman/closestbody/internal/analysis"
	"github.com/ayusman/closestbody/internal/app"
	"github.com/ayusman/closestbody/internal/capture"
	"github.com/ayusman/closestbody/internal/config"
	"github.com/ayusman/closestbody/internal/detector"
	"github.com/ayusman/closestbody/internal/log"
	"github.com/ayusman/closestbody/internal/server"
	"github.com/ayusman/closestbody/internal/store"
	"github.com/ayusman/closestbody/internal/stream"
	"github.com/ayusman/closestbody/internal/tray"
)

func main() {
	if err := run(); err != nil {
		log.Error("closestbody failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log.Init(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st *store.Store
	if cfg.Store.Enabled {
		st, err = store.New(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()
		log.Info("recording to store", "path", st.Path())
	}

	analysisCfg := cfg.AnalysisConfig()

	var streams *stream.Server
	if cfg.Stream.Enabled {
		streams = stream.NewServer(streamConfig(cfg.Stream.Addr, analysisCfg))
		if err := streams.Start(); err != nil {
			return fmt.Errorf("start stream server: %w", err)
		}
		defer streams.Stop()
	}

	hub := server.NewHub()
	preview := server.NewPreview()

	appCfg := app.Config{
		Analysis:    analysisCfg,
		FPS:         cfg.Camera.FPS,
		FrameWidth:  cfg.Camera.Width,
		FrameHeight: cfg.Camera.Height,
		Stream:      streams,
		Hub:         hub,
		Preview:     preview,
		Store:       st,
	}
	if cfg.Output.Text {
		appCfg.Text = os.Stdout
	}

	camera := capture.NewCamera(capture.Options{
		DeviceID: cfg.Camera.DeviceID,
		Width:    cfg.Camera.Width,
		Height:   cfg.Camera.Height,
		FPS:      cfg.Camera.FPS,
	})

	a, err := app.New(appCfg, camera, newDetector(cfg.Detector))
	if err != nil {
		return err
	}
	if err := a.Start(); err != nil {
		return err
	}
	defer a.Stop()

	if cfg.HTTP.Enabled {
		staticDir := cfg.HTTP.StaticDir
		if staticDir == "" {
			staticDir = findWebDir()
		}
		httpSrv := &http.Server{
			Addr: cfg.HTTP.Addr,
			Handler: server.New(server.Config{
				StaticDir: staticDir,
				Store:     st,
				Hub:       hub,
				Preview:   preview,
				Pipeline:  a,
			}),
		}
		go func() {
			log.Info("http server listening", "addr", cfg.HTTP.Addr, "static", staticDir)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server failed", "error", err)
				stop()
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			httpSrv.Shutdown(shutdownCtx)
		}()
	}

	if cfg.Tray.Enabled {
		t := tray.New(a.IsEnabled())
		t.OnToggle(a.SetEnabled)
		t.OnQuit(stop)
		a.OnResult(t.SetResult)
		go func() {
			<-ctx.Done()
			t.Quit()
		}()
		// systray must own the main goroutine
		t.Run()
		return nil
	}

	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

func streamConfig(addr string, a analysis.Config) stream.Config {
	c := stream.DefaultConfig()
	c.Addr = addr
	c.HandSize = a.HandSize
	c.HeadSize = a.HeadSize
	return c
}

// newDetector starts the pose service, falling back to the mock detector
// when it is unavailable or mocking is requested.
func newDetector(c config.DetectorConfig) detector.Detector {
	if c.Mock {
		log.Info("using mock pose detector")
		return detector.NewMockDetector()
	}

	d, err := detector.NewServiceDetector(detector.Config{
		ScriptPath:    c.ScriptPath,
		PythonPath:    c.PythonPath,
		IdleTimeout:   c.IdleTimeout,
		MinConfidence: c.MinConfidence,
	})
	if err != nil {
		log.Warn("pose service not available, using mock detector", "error", err)
		return detector.NewMockDetector()
	}
	log.Info("using pose service detector")
	return d
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.closestbody/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".closestbody", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
