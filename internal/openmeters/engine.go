// Package openmeters wires the audio-server connection, graph controller,
// routing monitor, virtual sink, meter tap, and visual manager into one
// facade. Grounded on the teacher's client/app.go App: a thin struct that
// holds subsystem instances and delegates to them (startup/shutdown,
// Get*/Set*/Apply* methods) rather than a dependency-injection framework.
package openmeters

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/httpsworldview/openmeters/internal/audioserver"
	"github.com/httpsworldview/openmeters/internal/capture"
	"github.com/httpsworldview/openmeters/internal/config"
	"github.com/httpsworldview/openmeters/internal/dsp"
	"github.com/httpsworldview/openmeters/internal/dsp/loudness"
	"github.com/httpsworldview/openmeters/internal/dsp/oscilloscope"
	"github.com/httpsworldview/openmeters/internal/dsp/spectrogram"
	"github.com/httpsworldview/openmeters/internal/dsp/spectrum"
	"github.com/httpsworldview/openmeters/internal/dsp/stereometer"
	"github.com/httpsworldview/openmeters/internal/dsp/waveform"
	"github.com/httpsworldview/openmeters/internal/graph/controller"
	"github.com/httpsworldview/openmeters/internal/logging"
	"github.com/httpsworldview/openmeters/internal/metertap"
	"github.com/httpsworldview/openmeters/internal/routing"
	"github.com/httpsworldview/openmeters/internal/visual"
)

const sinkChannels = 2

// Engine owns every subsystem instance and is the one entry point a
// frontend (a GPU renderer, a CLI, a test harness) talks to. Keep this
// struct thin: delegate to Controller, Monitor, and Manager.
type Engine struct {
	log    *slog.Logger
	server audioserver.Server

	controller *controller.Controller
	monitor    *routing.Monitor
	sink       *capture.Sink
	tap        *metertap.Tap
	visual     *visual.Manager

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	cfgMu sync.Mutex
	cfg   config.Config
}

// New constructs an Engine over an already-connected audioserver.Server.
// Call Start to begin the controller/monitor/tap goroutines.
func New(server audioserver.Server, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		log:        logger,
		server:     server,
		controller: controller.New(server, logging.For(logger, "graph_controller")),
		visual:     visual.New(),
		cfg:        config.Default(),
	}
}

// Start brings up the graph controller, registers the virtual capture
// sink, starts the routing monitor and meter tap, and begins dispatching
// drained frames to the visual manager. ApplyConfig should be called
// afterward to activate the persisted module settings.
func (e *Engine) Start() error {
	e.controller.Start()

	sink, err := capture.Register(e.server, audioserver.SinkProps{
		Name:        "openmeters",
		Description: "OpenMeters audio tap",
		Channels:    sinkChannels,
	})
	if err != nil {
		return err
	}
	e.sink = sink
	e.visual.SetFormat(visual.Format{Channels: sink.Format().Channels, SampleRate: sink.Format().SampleRate})

	e.monitor = routing.New(e.server, e.controller.Subscribe(), logging.For(e.log, "routing_monitor"))
	e.monitor.SetVirtualSinkID(sink.NodeID())
	e.monitor.Start()

	e.tap = metertap.New(capture.Ring(), logging.For(e.log, "metertap"))
	e.tap.Start()

	e.stopCh = make(chan struct{})
	e.running.Store(true)
	e.wg.Add(1)
	go e.dispatchLoop(e.tap.Subscribe())

	return nil
}

// Shutdown tears every subsystem down in the reverse order Start brought
// them up, mirroring the teacher's App.shutdown sequencing.
func (e *Engine) Shutdown() {
	if !e.running.CompareAndSwap(true, false) {
		return
	}
	close(e.stopCh)
	e.wg.Wait()

	if e.tap != nil {
		e.tap.Shutdown()
	}
	if e.monitor != nil {
		e.monitor.Shutdown()
	}
	e.controller.Shutdown()
	e.server.Destroy()
}

func (e *Engine) dispatchLoop(frames <-chan []float32) {
	defer e.wg.Done()
	for {
		select {
		case <-e.stopCh:
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			e.visual.IngestSamples(frame)
		}
	}
}

// Snapshot returns the most recently aggregated set of per-module
// snapshots for the renderer to draw.
func (e *Engine) Snapshot() visual.Snapshot {
	return e.visual.Snapshot()
}

// UIState returns the routing monitor's latest published state, if one
// has been delivered since the last call.
func (e *Engine) UIState() (routing.UIState, bool) {
	if e.monitor == nil {
		return routing.UIState{}, false
	}
	return e.monitor.UIState()
}

// SetCaptureMode submits a capture-mode change to the routing monitor.
func (e *Engine) SetCaptureMode(mode routing.CaptureMode) {
	e.submit(routing.SetCaptureModeCommand{Mode: mode})
}

// SetDeviceTarget submits a device-capture target change.
func (e *Engine) SetDeviceTarget(target routing.DeviceTarget) {
	e.submit(routing.SetDeviceTargetCommand{Target: target})
}

// SetNodeDisabled submits a per-application enable/disable toggle.
func (e *Engine) SetNodeDisabled(nodeID uint32, disabled bool) {
	e.submit(routing.SetNodeDisabledCommand{NodeID: nodeID, Disabled: disabled})
}

func (e *Engine) submit(cmd routing.UICommand) {
	if e.monitor == nil {
		return
	}
	e.monitor.Submit(cmd)
}

// GetConfig returns the persisted configuration from disk.
func (e *Engine) GetConfig() config.Config {
	return config.Load()
}

// SaveConfig persists cfg to disk.
func (e *Engine) SaveConfig(cfg config.Config) error {
	return config.Save(cfg)
}

// ApplyConfig loads the persisted configuration and activates it: which
// modules are enabled, and each enabled module's processor settings. This
// is the translation glue between the config package's JSON-friendly
// string enums and each dsp processor's concrete Config type — kept out
// of internal/config itself since that package must stay independent of
// the DSP processors (see DESIGN.md).
func (e *Engine) ApplyConfig() {
	cfg := config.Load()
	e.cfgMu.Lock()
	e.cfg = cfg
	e.cfgMu.Unlock()

	enabled := map[dsp.Kind]bool{}
	for _, name := range cfg.EnabledModules {
		enabled[kindFromString(name)] = true
	}
	for _, kind := range []dsp.Kind{
		dsp.KindLoudness, dsp.KindSpectrum, dsp.KindSpectrogram,
		dsp.KindWaveform, dsp.KindStereometer, dsp.KindOscilloscope,
	} {
		e.visual.SetEnabled(kind, enabled[kind])
	}

	e.visual.ApplyModuleSettings(dsp.KindLoudness, loudness.Config{
		MomentaryWindow: cfg.Loudness.MomentaryWindowSeconds,
		FloorDB:         cfg.Loudness.FloorDB,
	})
	e.visual.ApplyModuleSettings(dsp.KindSpectrum, spectrum.Config{
		FFTSize:               cfg.Spectrum.FFTSize,
		HopSize:               cfg.Spectrum.HopSize,
		Window:                windowFromString(cfg.Spectrum.Window),
		Averaging:             averagingFromString(cfg.Spectrum.Averaging),
		ExponentialFactor:     cfg.Spectrum.ExponentialFactor,
		PeakHoldDecayDBPerSec: cfg.Spectrum.PeakHoldDecayDBPerSec,
		FrequencyScale:        frequencyScaleFromString(cfg.Spectrum.FrequencyScale),
	})
	e.visual.ApplyModuleSettings(dsp.KindSpectrogram, spectrogram.Config{
		FFTSize:                     cfg.Spectrogram.FFTSize,
		HopSize:                     cfg.Spectrogram.HopSize,
		Window:                      windowFromString(cfg.Spectrogram.Window),
		FrequencyScale:              spectrogramFrequencyScaleFromString(cfg.Spectrogram.FrequencyScale),
		HistoryLength:               cfg.Spectrogram.HistoryLength,
		UseReassignment:             cfg.Spectrogram.UseReassignment,
		ReassignmentPowerFloorDB:    cfg.Spectrogram.ReassignmentPowerFloorDB,
		ReassignmentMaxCorrectionHz: cfg.Spectrogram.ReassignmentMaxCorrectionHz,
		DisplayBinCount:             cfg.Spectrogram.DisplayBinCount,
	})
	e.visual.ApplyModuleSettings(dsp.KindWaveform, waveform.Config{
		ScrollSpeed: cfg.Waveform.ScrollSpeed,
		MaxColumns:  cfg.Waveform.MaxColumns,
	})
	e.visual.ApplyModuleSettings(dsp.KindStereometer, stereometer.Config{
		CorrelationWindow: cfg.Stereometer.CorrelationWindowSeconds,
		SegmentDuration:   cfg.Stereometer.SegmentDurationSeconds,
		TargetSampleCount: cfg.Stereometer.TargetSampleCount,
	})
	e.visual.ApplyModuleSettings(dsp.KindOscilloscope, oscilloscope.Config{
		SegmentDuration: cfg.Oscilloscope.SegmentDurationSeconds,
		TriggerLevel:    float32(cfg.Oscilloscope.TriggerLevel),
		TriggerEdge:     edgeFromString(cfg.Oscilloscope.TriggerEdge),
		TriggerChannel:  cfg.Oscilloscope.TriggerChannel,
	})

	if cfg.DeviceTargetNodeID != nil {
		e.SetDeviceTarget(routing.DeviceTarget{NodeID: *cfg.DeviceTargetNodeID, HasNodeID: true})
	}
	if cfg.CaptureMode == "device" {
		e.SetCaptureMode(routing.CaptureDevice)
	} else {
		e.SetCaptureMode(routing.CaptureApplications)
	}
	for _, id := range cfg.DisabledNodes {
		e.SetNodeDisabled(id, true)
	}
}

func kindFromString(name string) dsp.Kind {
	switch name {
	case "loudness":
		return dsp.KindLoudness
	case "spectrum":
		return dsp.KindSpectrum
	case "spectrogram":
		return dsp.KindSpectrogram
	case "waveform":
		return dsp.KindWaveform
	case "stereometer":
		return dsp.KindStereometer
	case "oscilloscope":
		return dsp.KindOscilloscope
	default:
		return -1
	}
}
