package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/banshee-data/lense/internal/geom"
	"github.com/banshee-data/lense/internal/serialmux"
)

// Camera sources selectable with -camera.
const (
	cameraSynthetic = "synthetic"
	cameraPcap      = "pcap"
	cameraWebcam    = "webcam"
	cameraDenied    = "denied"
)

const defaultDBPath = "lense.db"

type options struct {
	devMode     bool
	camera      string
	device      int
	captureFPS  int
	pcapPath    string
	pcapPort    int
	pcapLoop    bool
	poseAddr    string
	poseListen  string
	fixture     string
	viewport    string
	pointer     string
	baud        int
	framing     string
	listen      string
	dbPath      string
	noRecord    bool
	configPath  string
	headless    bool
	showVersion bool

	viewportSize geom.Size
}

func parseFlags(args []string, out io.Writer) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("lense", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.BoolVar(&o.devMode, "dev", false, "Run in dev mode: synthetic camera and fixture estimator")
	fs.StringVar(&o.camera, "camera", cameraWebcam, "Camera source: webcam, pcap, synthetic or denied")
	fs.IntVar(&o.device, "device", 0, "Webcam device index")
	fs.IntVar(&o.captureFPS, "fps", 30, "Capture frame rate for webcam and synthetic sources")
	fs.StringVar(&o.pcapPath, "pcap", "", "Capture file to replay when -camera=pcap")
	fs.IntVar(&o.pcapPort, "pcap-port", 0, "UDP port carrying frames in the capture file (0 accepts any)")
	fs.BoolVar(&o.pcapLoop, "pcap-loop", false, "Restart the capture file at EOF")
	fs.StringVar(&o.poseAddr, "pose", "localhost:50051", "Hand pose gRPC service address")
	fs.StringVar(&o.poseListen, "pose-listen", "", "Serve the fixture estimator over gRPC on this address")
	fs.StringVar(&o.fixture, "fixture", "", "Estimate hands from a fixture file instead of the gRPC service")
	fs.StringVar(&o.viewport, "viewport", "1280x720", "Viewport size WxH (initial window size)")
	fs.StringVar(&o.pointer, "pointer", "", "Serial port of a pointer device, or 'loopback'")
	fs.IntVar(&o.baud, "baud", serialmux.DefaultBaudRate, "Pointer device baud rate")
	fs.StringVar(&o.framing, "framing", serialmux.DefaultFraming, "Pointer device framing, e.g. 8N1")
	fs.StringVar(&o.listen, "listen", ":8080", "HTTP listen address (empty disables the API)")
	fs.StringVar(&o.dbPath, "db", defaultDBPath, "Session database path")
	fs.BoolVar(&o.noRecord, "no-record", false, "Do not record the session")
	fs.StringVar(&o.configPath, "config", "", "Tuning config JSON file")
	fs.BoolVar(&o.headless, "headless", false, "Run without a window")
	fs.BoolVar(&o.showVersion, "version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.devMode {
		if !isSet(fs, "camera") {
			o.camera = cameraSynthetic
		}
		if !isSet(fs, "fixture") {
			o.fixture = "fixtures/hands.jsonl"
		}
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	return o, nil
}

func isSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func (o *options) validate() error {
	switch o.camera {
	case cameraSynthetic, cameraWebcam, cameraDenied:
	case cameraPcap:
		if o.pcapPath == "" {
			return fmt.Errorf("-camera=pcap requires -pcap")
		}
	default:
		return fmt.Errorf("unknown camera %q", o.camera)
	}
	if o.fixture == "" && o.poseAddr == "" {
		return fmt.Errorf("either -pose or -fixture is required")
	}
	if o.poseListen != "" && o.fixture == "" {
		return fmt.Errorf("-pose-listen serves the fixture estimator and requires -fixture")
	}
	vp, err := geom.ParseSize(o.viewport)
	if err != nil {
		return err
	}
	o.viewportSize = vp
	if o.captureFPS <= 0 {
		return fmt.Errorf("-fps must be positive, got %d", o.captureFPS)
	}
	if o.pointer != "" && o.pointer != "loopback" {
		if _, err := (serialmux.PortOptions{BaudRate: o.baud, Framing: o.framing}).Mode(); err != nil {
			return err
		}
	}
	return nil
}

// recording reports whether a session database should be opened.
func (o *options) recording() bool {
	return !o.noRecord && o.dbPath != ""
}
