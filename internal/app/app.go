// Package app runs the closestbody capture and analysis loop.
package app

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/closestbody/internal/analysis"
	"github.com/ayusman/closestbody/internal/capture"
	"github.com/ayusman/closestbody/internal/detector"
	"github.com/ayusman/closestbody/internal/log"
	"github.com/ayusman/closestbody/internal/output"
	"github.com/ayusman/closestbody/internal/server"
	"github.com/ayusman/closestbody/internal/store"
	"github.com/ayusman/closestbody/internal/stream"
	"gocv.io/x/gocv"
)

// EnabledSetting is the settings key holding the persisted enabled state.
const EnabledSetting = "analysis.enabled"

// Config holds configuration options for the application. Every sink is
// optional.
type Config struct {
	Analysis analysis.Config
	FPS      int
	// FrameWidth and FrameHeight are recorded with each session.
	FrameWidth  int
	FrameHeight int

	// Text receives the per-frame text block when set.
	Text io.Writer
	// Stream publishes skeleton and colour messages to TCP clients.
	Stream *stream.Server
	// Hub broadcasts each result to WebSocket clients.
	Hub *server.Hub
	// Preview keeps the latest annotated frame for the MJPEG endpoint.
	Preview *server.Preview
	// Store records sessions and frames and persists the enabled state.
	Store *store.Store
}

// Message is the JSON document broadcast to WebSocket clients.
type Message struct {
	Seq       int64 `json:"seq"`
	Timestamp int64 `json:"timestamp"`
	analysis.Result
}

// App orchestrates capture, detection, analysis and the output sinks.
type App struct {
	config   Config
	camera   capture.Camera
	detector detector.Detector
	analyzer *analysis.Analyzer
	text     *output.TextWriter

	enabled bool
	mu      sync.RWMutex
	stopCh  chan struct{}
	done    chan struct{}

	session  *store.Session
	seq      int64
	onResult func(analysis.Result)

	frames  atomic.Uint64
	engaged atomic.Uint64
	errs    atomic.Uint64
}

// New creates an App reading from camera and detecting with det. The
// enabled state is restored from the store when one is configured and
// defaults to true otherwise.
func New(config Config, camera capture.Camera, det detector.Detector) (*App, error) {
	if camera == nil || det == nil {
		return nil, errors.New("app needs a camera and a detector")
	}
	analyzer, err := analysis.New(config.Analysis)
	if err != nil {
		return nil, err
	}
	if config.FPS <= 0 {
		config.FPS = capture.DefaultFPS
	}
	if config.FrameWidth <= 0 || config.FrameHeight <= 0 {
		config.FrameWidth, config.FrameHeight = capture.DefaultWidth, capture.DefaultHeight
	}

	a := &App{
		config:   config,
		camera:   camera,
		detector: det,
		analyzer: analyzer,
		enabled:  true,
	}
	if config.Text != nil {
		a.text = output.NewTextWriter(config.Text)
	}

	if config.Store != nil {
		v, err := config.Store.Settings().Get(EnabledSetting)
		switch {
		case err == nil:
			if enabled, perr := strconv.ParseBool(v); perr == nil {
				a.enabled = enabled
			}
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("load enabled setting: %w", err)
		}
	}

	return a, nil
}

// SetEnabled enables or disables analysis. The state is persisted when a
// store is configured.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	a.enabled = enabled
	a.mu.Unlock()

	if a.config.Store != nil {
		if err := a.config.Store.Settings().Set(EnabledSetting, strconv.FormatBool(enabled)); err != nil {
			log.Warn("persist enabled setting", "error", err)
		}
	}
	log.Info("analysis toggled", "enabled", enabled)
}

// IsEnabled returns whether analysis is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// OnResult registers a callback invoked after each analysed frame.
func (a *App) OnResult(fn func(analysis.Result)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onResult = fn
}

// Start opens the camera, begins a recording session when a store is
// configured and starts the capture loop. Starting a running App is a no-op.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	a.camera.SetFPS(a.config.FPS)

	if a.config.Store != nil {
		sess, err := a.config.Store.Sessions().Create(a.config.FrameWidth, a.config.FrameHeight)
		if err != nil {
			a.camera.Close()
			return fmt.Errorf("create session: %w", err)
		}
		a.session = sess
		a.seq = 0
		log.Info("recording session started", "session", sess.ID)
	}

	a.stopCh = make(chan struct{})
	a.done = make(chan struct{})
	go a.run(a.stopCh, a.done)

	log.Info("analysis pipeline started", "fps", a.config.FPS)
	return nil
}

// Stop halts the capture loop, ends the session and releases the camera
// and detector.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, done := a.stopCh, a.done
	a.stopCh, a.done = nil, nil
	a.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-done

	a.mu.Lock()
	sess := a.session
	a.session = nil
	a.mu.Unlock()
	if sess != nil {
		if err := a.config.Store.Sessions().End(sess.ID); err != nil {
			log.Warn("end session", "session", sess.ID, "error", err)
		}
	}

	if err := a.camera.Close(); err != nil {
		log.Warn("close camera", "error", err)
	}
	if err := a.detector.Close(); err != nil {
		log.Warn("close detector", "error", err)
	}

	log.Info("analysis pipeline stopped")
}

// run ticks at the configured FPS and analyses one camera frame per tick
// while enabled.
func (a *App) run(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(time.Second / time.Duration(a.config.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if !a.IsEnabled() {
				continue
			}

			frame, err := a.camera.ReadFrame()
			if err != nil {
				a.errs.Add(1)
				log.Warn("read frame", "error", err)
				continue
			}
			if frame.Empty() {
				frame.Close()
				continue
			}

			_, err = a.ProcessFrame(frame)
			frame.Close()
			if err != nil {
				log.Warn("process frame", "error", err)
			}
		}
	}
}

// ProcessFrame detects, analyses and publishes one frame synchronously.
// Sink failures are logged and do not fail the frame; only a detector
// error is returned.
func (a *App) ProcessFrame(frame *gocv.Mat) (analysis.Result, error) {
	skeletons, err := a.detector.Detect(frame)
	if err != nil {
		a.errs.Add(1)
		return analysis.Result{}, fmt.Errorf("detect: %w", err)
	}

	res := a.analyzer.Analyze(analysis.Frame{
		Skeletons: skeletons,
		Width:     frame.Cols(),
		Height:    frame.Rows(),
	})

	a.frames.Add(1)
	if res.Engaged {
		a.engaged.Add(1)
	}

	a.publish(time.Now(), frame, res)
	return res, nil
}

func (a *App) publish(now time.Time, frame *gocv.Mat, res analysis.Result) {
	pixels := capture.NewMatSource(frame)

	a.mu.Lock()
	a.seq++
	seq := a.seq
	sess := a.session
	onResult := a.onResult
	a.mu.Unlock()

	if a.text != nil {
		if err := a.text.WriteFrame(res, pixels); err != nil {
			log.Warn("text output", "error", err)
		}
	}
	if a.config.Stream != nil {
		a.config.Stream.Publish(now, res, pixels)
	}
	if a.config.Hub != nil {
		a.config.Hub.Publish(Message{Seq: seq, Timestamp: now.UnixMilli(), Result: res})
	}
	if a.config.Preview != nil {
		if err := a.config.Preview.Update(frame, res); err != nil {
			log.Warn("preview", "error", err)
		}
	}
	if sess != nil {
		if _, err := a.config.Store.Frames().Record(sess.ID, seq, now, res); err != nil {
			log.Warn("record frame", "session", sess.ID, "seq", seq, "error", err)
		}
	}
	if onResult != nil {
		onResult(res)
	}
}

// Status implements server.Pipeline.
func (a *App) Status() server.PipelineStatus {
	a.mu.RLock()
	st := server.PipelineStatus{
		Enabled: a.enabled,
		Running: a.stopCh != nil,
	}
	if a.session != nil {
		st.SessionID = a.session.ID
	}
	a.mu.RUnlock()

	st.Frames = a.frames.Load()
	st.Engaged = a.engaged.Load()
	st.Errors = a.errs.Load()
	if a.config.Stream != nil {
		st.Stream = a.config.Stream.Stats()
	}
	return st
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// Analyzer returns the frame analyzer.
func (a *App) Analyzer() *analysis.Analyzer {
	return a.analyzer
}
