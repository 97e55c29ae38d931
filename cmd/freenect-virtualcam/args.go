package main

import (
	"fmt"
	"io"
)

// options is the parsed command line.
type options struct {
	ir       bool
	rgb      bool
	depth    bool
	loopback string
	simulate bool
	debug    bool
	help     bool
}

const defaultLoopbackDevice = "/dev/video2"

// parseArgs scans argv by hand. The flag package cannot express this
// tool's contract: zero arguments print usage and exit 0, while an
// unknown flag is an error and exit 1.
func parseArgs(args []string) (*options, error) {
	opts := &options{loopback: defaultLoopbackDevice}

	if len(args) == 0 {
		opts.help = true
		return opts, nil
	}

	for i := 0; i < len(args); i++ {
		switch arg := args[i]; arg {
		case "--help", "-h":
			opts.help = true
			return opts, nil
		case "--ir":
			opts.ir = true
		case "--rgb":
			opts.rgb = true
		case "--depth":
			opts.depth = true
		case "--loopback":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--loopback requires a device path argument")
			}
			i++
			opts.loopback = args[i]
		case "--simulate":
			opts.simulate = true
		case "--debug":
			opts.debug = true
		default:
			return nil, fmt.Errorf("unknown argument: %s", arg)
		}
	}

	if opts.ir && opts.rgb {
		return nil, fmt.Errorf("cannot enable both IR and RGB streaming simultaneously")
	}
	if !opts.ir && !opts.rgb && !opts.depth {
		return nil, fmt.Errorf("no streaming mode enabled; use --ir, --rgb, and/or --depth")
	}

	return opts, nil
}

// printUsage writes the usage text.
func printUsage(w io.Writer, prog string) {
	fmt.Fprintf(w, `Usage: %s [--ir | --rgb] [--depth] [--loopback <dev>] [--simulate] [--debug] [--help]
Options:
  --ir               Enable infrared (IR) streaming (8-bit grayscale).
  --rgb              Enable RGB video streaming.
  --depth            Enable depth streaming.
  --loopback <dev>   v4l2loopback device to write to (default: %s).
  --simulate         Use the built-in simulated sensor instead of hardware.
  --debug            Enable debug logging.
  --help             Display this help message.

Notes:
  You can enable either --ir or --rgb for the video stream (not both simultaneously).
  Depth streaming can be enabled along with either video mode (but sharing one virtual
  device between two different formats may not work properly).
`, prog, defaultLoopbackDevice)
}
