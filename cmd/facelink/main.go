// facelink reads newline-delimited JSON tracking samples from a face
// detector on stdin, runs them through the tracking pipeline, and forwards
// the results to the configured avatar renderers.
//
// Usage:
//
//	face-detector | facelink -config facelink.toml
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/openvtuber/go-facelink/internal/config"
	"github.com/openvtuber/go-facelink/internal/log"
	"github.com/openvtuber/go-facelink/pkg/pipeline"
	"github.com/openvtuber/go-facelink/pkg/tracking"
	"github.com/openvtuber/go-facelink/pkg/vmc"
	"github.com/openvtuber/go-facelink/pkg/vts"
)

func main() {
	configPath := flag.String("config", "facelink.toml", "path to TOML config file")
	calibrate := flag.Bool("calibrate", false, "run a calibration session at startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	log.Init(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calibrator := tracking.NewCalibrator(cfg.Calibration.Samples)
	enhancer := newEnhancer(cfg.Precision)
	smoother := tracking.NewSmoother(cfg.Smoothing.Alpha)
	smoother.SetEnabled(cfg.Smoothing.Enabled)
	mapper := newMapper(cfg.Sensitivity, cfg.Deadzone)

	var vmcAdapter, vtsAdapter pipeline.Adapter
	if cfg.VMC.Enabled {
		vmcAdapter = vmc.NewSender(cfg.VMC.Host, cfg.VMC.Port, true)
	}
	if cfg.VTS.Enabled {
		opts := []vts.Option{vts.WithPlugin(cfg.VTS.PluginName, cfg.VTS.PluginDeveloper, "")}
		if !cfg.VTS.Probe {
			opts = append(opts, vts.WithoutProbe())
		}
		client := vts.NewClient(cfg.VTS.Host, cfg.VTS.Port, true, opts...)
		go drainEvents(client)
		if err := client.Connect(ctx); err != nil {
			log.Warn("renderer session unavailable, continuing without it", "err", err)
		}
		vtsAdapter = client
	}

	p := pipeline.New(&stdinSource{dec: json.NewDecoder(os.Stdin)},
		calibrator, enhancer, smoother, mapper, vmcAdapter, vtsAdapter)

	if *calibrate {
		calibrator.StartCalibration()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("shutting down")
		cancel()
	}()

	if err := p.Run(ctx); err != nil && err != context.Canceled {
		log.Error("pipeline exited with error", "err", err)
		os.Exit(1)
	}
}

// stdinSource yields samples streamed as JSON objects by the external
// detector process. Decode blocks until the detector emits the next frame.
type stdinSource struct {
	dec *json.Decoder
}

func (s *stdinSource) Next(ctx context.Context) (tracking.Sample, error) {
	var sample tracking.Sample
	if err := s.dec.Decode(&sample); err != nil {
		return sample, err
	}
	return sample.Clamped(), nil
}

func newEnhancer(p config.Precision) *tracking.Enhancer {
	e := tracking.NewEnhancer()
	e.SetParams(tracking.EnhancerParams{
		Multiplier:     &p.Multiplier,
		NoiseReduction: &p.NoiseReduction,
		NoiseThreshold: &p.NoiseThreshold,
		HeadRotation:   &p.HeadRotation,
		EyeBlink:       &p.EyeBlink,
		Mouth:          &p.Mouth,
	})
	if p.Enabled {
		e.Enable(p.Multiplier)
	}
	return e
}

func newMapper(sens, dz config.Channels) *tracking.Mapper {
	m := tracking.NewMapper()
	apply := func(ch tracking.Channel, mult, dead float64) {
		m.SetMultiplier(ch, mult)
		m.SetDeadzone(ch, dead)
	}
	apply(tracking.ChannelHeadYaw, sens.HeadYaw, dz.HeadYaw)
	apply(tracking.ChannelHeadPitch, sens.HeadPitch, dz.HeadPitch)
	apply(tracking.ChannelHeadRoll, sens.HeadRoll, dz.HeadRoll)
	apply(tracking.ChannelEyeLeft, sens.EyeLeft, dz.EyeLeft)
	apply(tracking.ChannelEyeRight, sens.EyeRight, dz.EyeRight)
	apply(tracking.ChannelMouthOpen, sens.MouthOpen, dz.MouthOpen)
	apply(tracking.ChannelMouthWide, sens.MouthWide, dz.MouthWide)
	return m
}

// drainEvents logs session events so handshake progress and renderer errors
// are visible on the console.
func drainEvents(client *vts.Client) {
	for ev := range client.Events() {
		switch ev.Type {
		case vts.EventAuthenticated:
			log.Info("renderer session authenticated")
		case vts.EventAuthFailed:
			log.Error("renderer rejected plugin", "reason", ev.Message)
		case vts.EventAPIError:
			log.Error("renderer api error", "message", ev.Message)
		case vts.EventDisconnected:
			log.Warn("renderer session lost", "reason", ev.Message)
		}
	}
}
