// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/relabs-tech/leveler/internal/calibration"
	"github.com/relabs-tech/leveler/internal/config"
	"github.com/relabs-tech/leveler/internal/connection"
	"github.com/relabs-tech/leveler/internal/render"
	"github.com/relabs-tech/leveler/internal/tilt"
)

const wsWriteTimeout = 2 * time.Second

// RunClient connects to the device at cfg.DeviceHost, renders both views,
// serves them over HTTP, mirrors them to MQTT when a broker is configured
// and reads operator commands from in. It returns when ctx is done or the
// operator quits.
func RunClient(ctx context.Context, cfg *config.Config, logger *slog.Logger, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := connection.NewMetrics(registry)

	rollRenderer, err := newRenderer(render.AxisRoll, cfg.RollImage, cfg.SurfaceSize)
	if err != nil {
		return err
	}
	pitchRenderer, err := newRenderer(render.AxisPitch, cfg.PitchImage, cfg.SurfaceSize)
	if err != nil {
		return err
	}

	model := tilt.NewModel()
	form := calibration.NewForm(model.Snapshot().Calibration)
	store := NewViewStore()
	sinks := []FrameSink{store}

	if cfg.MQTTBroker != "" {
		client := connectMQTT(cfg, "", logger.With("component", "mqtt"), nil)
		defer client.Disconnect(250)
		sinks = append(sinks, NewPublisher(client, cfg.TopicTilt, func() string { return store.State().String() }, logger))
	}

	pipeline := NewPipeline(model, rollRenderer, pitchRenderer, form, logger, metrics, sinks...)

	manager := connection.NewManager(connection.Options{
		URL:            connection.DeviceURL(cfg.DeviceHost, cfg.DeviceWSPath),
		Dialer:         connection.WebSocketDialer{WriteTimeout: wsWriteTimeout},
		Handler:        pipeline,
		PollInterval:   cfg.PollInterval,
		ReconnectDelay: cfg.ReconnectDelay,
		Logger:         logger,
		Metrics:        metrics,
		OnStateChange:  store.SetState,
	})

	reader := bufio.NewReader(in)
	ctrl := calibration.NewController(form, calibration.NewConsolePrompter(reader, out), manager, logger)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ViewServerPort),
		Handler: NewViewHandler(store, form, registry, logger),
	}
	serverDone := make(chan error, 1)
	go func() {
		err := serveHTTP(ctx, srv, logger.With("component", "view-server"))
		if err != nil {
			logger.Error("view server failed", "addr", srv.Addr, "error", err)
			cancel()
		}
		serverDone <- err
	}()

	// The console goroutine may stay blocked on a read after ctx is done;
	// it holds no resources that need releasing.
	go func() {
		if err := RunConsole(ctx, reader, out, ctrl, store); errors.Is(err, errQuit) {
			cancel()
		} else if err != nil {
			logger.Warn("console stopped", "error", err)
		}
	}()

	err = manager.Run(ctx)
	cancel()
	if srvErr := <-serverDone; srvErr != nil {
		return fmt.Errorf("view server: %w", srvErr)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newRenderer(axis render.Axis, imagePath string, size int) (*render.Renderer, error) {
	var bg image.Image
	if imagePath != "" {
		img, err := render.LoadImage(imagePath)
		if err != nil {
			return nil, err
		}
		bg = img
	} else {
		bg = render.DefaultBackground(axis)
	}
	surface, err := render.NewImageSurface(size)
	if err != nil {
		return nil, err
	}
	return render.New(axis, surface, bg), nil
}
