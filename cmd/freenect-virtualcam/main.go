// Command freenect-virtualcam relays Kinect depth/video frames into a
// virtual video device (v4l2loopback on Linux), reconnecting forever
// when the sensor disappears.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	virtualcam "github.com/gllmAR/freenect-virtualcam"
	"github.com/gllmAR/freenect-virtualcam/internal/freenect"
	"github.com/gllmAR/freenect-virtualcam/internal/loopback"
	"github.com/gllmAR/freenect-virtualcam/internal/sim"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		printUsage(os.Stderr, "freenect-virtualcam")
		return 1
	}
	if opts.help {
		printUsage(os.Stdout, "freenect-virtualcam")
		return 0
	}

	logLevel := slog.LevelInfo
	if opts.debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	mode := virtualcam.ModeNone
	switch {
	case opts.ir:
		mode = virtualcam.ModeInfrared
	case opts.rgb:
		mode = virtualcam.ModeColorRGB
	}

	// Sink init failure is deliberately not fatal: the acquisition
	// pipeline keeps running and every write is logged as it fails.
	sink := loopback.New(opts.loopback)
	if err := sink.Init(virtualcam.SinkConfigFor(mode, opts.depth)); err != nil {
		slog.Warn("virtual sink unavailable, continuing without a functioning sink",
			"error", err,
			"hint", fmt.Sprintf("ensure the loopback device (%s) is created and accessible", opts.loopback),
		)
	}
	defer sink.Close()

	factory := freenect.New
	if opts.simulate {
		factory = sim.New
	}

	relay, err := virtualcam.NewRelay(virtualcam.RelayConfig{
		Mode:    mode,
		Depth:   opts.depth,
		Factory: factory,
		Sink:    sink,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting sensor streaming, press Ctrl+C to exit",
		"mode", mode.String(),
		"depth", opts.depth,
		"loopback", opts.loopback,
		"simulate", opts.simulate,
	)
	if err := relay.Run(ctx); err != nil {
		slog.Debug("relay stopped", "error", err)
	}
	return 0
}
