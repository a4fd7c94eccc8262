// Package pipeline sequences the tracking stages at a fixed frame cadence
// and owns the component and adapter lifecycles.
package pipeline

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/openvtuber/go-facelink/internal/log"
	"github.com/openvtuber/go-facelink/pkg/tracking"
)

// FrameRateHz is the target cadence of the frame loop.
const FrameRateHz = 30

// shutdownTimeout bounds how long Stop waits for adapters to release their
// transports.
const shutdownTimeout = 2 * time.Second

// Source yields one tracking sample per frame. Next may block briefly while
// the upstream detector produces a frame; it should honor ctx cancellation.
// Returning io.EOF ends the pipeline cleanly.
type Source interface {
	Next(ctx context.Context) (tracking.Sample, error)
}

// Adapter is an outbound protocol endpoint. SendTrackingData is best-effort:
// implementations log transport failures and must not block the frame loop.
type Adapter interface {
	SendTrackingData(params map[string]float64) error
	Disconnect()
}

// Pipeline drives samples through calibration, precision enhancement,
// smoothing, and mapping, then fans the resulting parameter sets out to the
// protocol adapters. It runs on its own loop; the control surface mutates
// tuning concurrently through the (internally locked) components.
type Pipeline struct {
	source     Source
	calibrator *tracking.Calibrator
	enhancer   *tracking.Enhancer
	smoother   *tracking.Smoother
	mapper     *tracking.Mapper

	vmc Adapter // rotation/quaternion protocol
	vts Adapter // named-parameter session protocol

	rate time.Duration
	stop chan struct{}

	// OnFrame, when set, is invoked with the fully processed sample after
	// each frame. Set before Run; invoked from the pipeline goroutine.
	OnFrame func(tracking.Sample)

	frameCount uint64
	sendErrors uint64
}

// New creates a pipeline over the given source and stages. Either adapter
// may be nil when that protocol is disabled.
func New(source Source, calibrator *tracking.Calibrator, enhancer *tracking.Enhancer,
	smoother *tracking.Smoother, mapper *tracking.Mapper, vmc, vts Adapter) *Pipeline {
	return &Pipeline{
		source:     source,
		calibrator: calibrator,
		enhancer:   enhancer,
		smoother:   smoother,
		mapper:     mapper,
		vmc:        vmc,
		vts:        vts,
		rate:       time.Second / FrameRateHz,
		stop:       make(chan struct{}),
	}
}

// Calibrator exposes the calibration control surface.
func (p *Pipeline) Calibrator() *tracking.Calibrator { return p.calibrator }

// Enhancer exposes the precision tuning surface.
func (p *Pipeline) Enhancer() *tracking.Enhancer { return p.enhancer }

// Smoother exposes the smoothing tuning surface.
func (p *Pipeline) Smoother() *tracking.Smoother { return p.smoother }

// Mapper exposes the sensitivity/deadzone tuning surface.
func (p *Pipeline) Mapper() *tracking.Mapper { return p.mapper }

// Run executes the frame loop until the context is canceled, Stop is
// called, or the source reports io.EOF. Adapters are disconnected on the
// way out, bounded by shutdownTimeout.
func (p *Pipeline) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.rate)
	defer ticker.Stop()
	defer p.shutdown()

	log.Info("pipeline started", "rate_hz", FrameRateHz)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stop:
			return nil
		case <-ticker.C:
			sample, err := p.source.Next(ctx)
			if err != nil {
				if errors.Is(err, io.EOF) {
					log.Info("frame source exhausted")
					return nil
				}
				if errors.Is(err, context.Canceled) {
					return nil
				}
				log.Warn("frame source error", "err", err)
				continue
			}
			p.processFrame(sample)
		}
	}
}

// processFrame runs one sample through the stage order:
// calibration -> precision -> smoothing -> mapping -> adapters.
func (p *Pipeline) processFrame(sample tracking.Sample) {
	p.frameCount++

	calibrated := sample
	if p.calibrator.Calibrating() {
		// Frames feed the calibration session raw; offsets apply once the
		// session completes.
		if p.calibrator.CollectSample(sample) {
			log.Info("calibration session finished")
		}
	} else {
		calibrated = p.calibrator.ApplyCalibration(sample)
	}

	enhanced := p.enhancer.Enhance(calibrated)
	smoothed := p.smoother.Smooth(enhanced)

	if p.vmc != nil {
		if err := p.vmc.SendTrackingData(p.mapper.ToVMCParams(smoothed)); err != nil {
			p.sendErrors++
			log.Warn("vmc send failed", "err", err)
		}
	}
	if p.vts != nil {
		if err := p.vts.SendTrackingData(p.mapper.ToVTSParams(smoothed)); err != nil {
			p.sendErrors++
			log.Warn("vts send failed", "err", err)
		}
	}

	if p.OnFrame != nil {
		p.OnFrame(smoothed)
	}

	if p.frameCount%300 == 0 {
		log.Debug("pipeline heartbeat",
			"frames", p.frameCount,
			"send_errors", p.sendErrors,
			"calibrated", p.calibrator.Calibrated())
	}
}

// Stop halts the frame loop. Safe to call once; Run's shutdown path closes
// the adapters.
func (p *Pipeline) Stop() {
	close(p.stop)
}

// shutdown disconnects both adapters, bounded by shutdownTimeout so a hung
// transport cannot stall process exit.
func (p *Pipeline) shutdown() {
	done := make(chan struct{})
	go func() {
		if p.vmc != nil {
			p.vmc.Disconnect()
		}
		if p.vts != nil {
			p.vts.Disconnect()
		}
		close(done)
	}()

	select {
	case <-done:
		log.Info("pipeline stopped")
	case <-time.After(shutdownTimeout):
		log.Warn("adapter shutdown timed out")
	}
}
