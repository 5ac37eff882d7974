package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/banshee-data/lense/internal/api"
	"github.com/banshee-data/lense/internal/capture"
	"github.com/banshee-data/lense/internal/config"
	"github.com/banshee-data/lense/internal/db"
	"github.com/banshee-data/lense/internal/fsutil"
	"github.com/banshee-data/lense/internal/lense"
	"github.com/banshee-data/lense/internal/pose"
	"github.com/banshee-data/lense/internal/render"
	"github.com/banshee-data/lense/internal/serialmux"
	"github.com/banshee-data/lense/internal/version"
	"github.com/banshee-data/lense/internal/window"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			dbPath, err := migrateDBPath()
			if err != nil {
				log.Fatalf("migrate: %v", err)
			}
			if err := db.RunMigrateCommand(os.Args[2:], dbPath, os.Stdout); err != nil {
				log.Fatalf("migrate: %v", err)
			}
			return
		case "report":
			if err := runReport(os.Args[2:], os.Stdout, fsutil.OSFileSystem{}); err != nil {
				log.Fatalf("report: %v", err)
			}
			return
		case "status":
			if err := runStatus(context.Background(), os.Args[2:], os.Stdout, nil); err != nil {
				log.Fatalf("status: %v", err)
			}
			return
		}
	}

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}
	if opts.showVersion {
		fmt.Println(version.String())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		log.Fatalf("lense: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}

func loadTuning(path string) (*config.TuningConfig, error) {
	tuning := config.EmptyTuningConfig()
	if path != "" {
		var err error
		if tuning, err = config.LoadTuningConfig(path); err != nil {
			return nil, err
		}
	}
	overrides, err := config.ParseEnvOverrides()
	if err != nil {
		return nil, err
	}
	if err := tuning.ApplyEnv(overrides); err != nil {
		return nil, err
	}
	return tuning, nil
}

func newSource(o *options, tuning *config.TuningConfig) capture.Source {
	size := tuning.GetCaptureSize()
	switch o.camera {
	case cameraSynthetic:
		return capture.NewSynthetic(size, o.captureFPS)
	case cameraDenied:
		s := capture.NewSynthetic(size, o.captureFPS)
		s.Deny = true
		return s
	case cameraPcap:
		return &capture.PcapReplay{Path: o.pcapPath, Port: o.pcapPort, Size: size, Speed: 1, Loop: o.pcapLoop}
	}
	return &capture.Webcam{Device: o.device, Size: size, FPS: o.captureFPS}
}

// servePose starts an in-process hand pose service backed by the fixture
// estimator, so the gRPC path can be exercised without a model server.
func servePose(ctx context.Context, wg *sync.WaitGroup, addr, fixture string) (string, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("pose listen: %w", err)
	}
	backend := &pose.LoaderBackend{Loader: pose.FixtureLoader{Path: fixture}}
	srv := grpc.NewServer()
	pose.NewGRPCService(backend).Register(srv)

	wg.Add(1)
	go func() {
		defer wg.Done()
		go func() {
			<-ctx.Done()
			srv.GracefulStop()
		}()
		log.Printf("pose service listening on %s", lis.Addr())
		if err := srv.Serve(lis); err != nil {
			log.Printf("pose service stopped: %v", err)
		}
		backend.Close()
	}()
	return lis.Addr().String(), nil
}

// migrateDBPath resolves the database for "lense migrate" from LENSE_DB.
func migrateDBPath() (string, error) {
	o, err := config.ParseEnvOverrides()
	if err != nil {
		return "", err
	}
	return o.DatabasePath(defaultDBPath), nil
}

func openPointer(o *options) (serialmux.SerialMuxInterface, error) {
	switch o.pointer {
	case "":
		return serialmux.NewDisabledSerialMux(), nil
	case "loopback":
		return serialmux.NewLoopbackSerialMux(), nil
	}
	return serialmux.OpenPort(o.pointer, serialmux.PortOptions{BaudRate: o.baud, Framing: o.framing})
}

func run(ctx context.Context, o *options) error {
	tuning, err := loadTuning(o.configPath)
	if err != nil {
		return err
	}
	cfg := lense.ConfigFromTuning(tuning)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pointer, err := openPointer(o)
	if err != nil {
		return fmt.Errorf("failed to open pointer device: %w", err)
	}
	defer pointer.Close()

	var store *db.DB
	if o.recording() {
		store, err = db.NewDB(o.dbPath)
		if err != nil {
			return fmt.Errorf("failed to open session database: %w", err)
		}
		defer store.Close()
	}

	// Create a wait group for the HTTP server, serial monitor, recorder and
	// pose service routines. They stop before the pointer and store close.
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	var loader pose.Loader = pose.GRPCLoader{Address: o.poseAddr}
	if o.fixture != "" {
		loader = pose.FixtureLoader{Path: o.fixture}
		if o.poseListen != "" {
			addr, err := servePose(ctx, &wg, o.poseListen, o.fixture)
			if err != nil {
				return err
			}
			loader = pose.GRPCLoader{Address: addr}
		}
	}

	// window mode reads the viewport from the window; headless uses -viewport
	var viewport lense.ViewportSource = lense.FixedViewport(o.viewportSize)
	var lens *window.Lens
	targets := render.Multi{render.NewLogTarget(5 * time.Second)}
	if !o.headless {
		lens = window.NewLens(o.viewportSize, 0)
		viewport = lens
		targets = append(targets, lens)
	}

	device := serialmux.NewDeviceState()
	if o.pointer != "" {
		if err := pointer.Initialise(); err != nil {
			return fmt.Errorf("failed to initialise pointer device: %w", err)
		}
		log.Printf("initialised pointer device %s", o.pointer)

		serialTarget := render.NewSerialTarget(pointer, tuning.GetPointerMinDelta())
		targets = append(targets, serialTarget)

		// run the monitor routine to manage IO on the serial port
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := pointer.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("failed to monitor pointer device: %v", err)
			}
			log.Print("monitor routine terminated")
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			device.Watch(ctx, pointer)
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			serialTarget.Run(ctx)
		}()
	}

	var (
		recorder *db.SessionRecorder
		recDone  = make(chan struct{})
	)
	if store != nil {
		recorder, err = db.NewSessionRecorder(store, &db.Session{
			Source:         o.camera,
			Model:          cfg.Model.Model + "/" + cfg.Model.ModelType,
			Viewport:       viewport.Viewport(),
			SmoothingAlpha: cfg.SmoothingAlpha,
			KeypointIndex:  cfg.KeypointIndex,
		}, tuning.GetFlushInterval())
		if err != nil {
			return fmt.Errorf("failed to start session: %w", err)
		}
		log.Printf("recording session %s to %s", recorder.SessionID(), o.dbPath)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer close(recDone)
			recorder.Run(ctx)
		}()
	} else {
		close(recDone)
	}

	deps := lense.Deps{
		Source:   newSource(o, tuning),
		Loader:   loader,
		Target:   targets,
		Viewport: viewport,
	}
	if recorder != nil {
		deps.Recorder = recorder
	}
	p, err := lense.New(cfg, deps)
	if err != nil {
		return err
	}

	if o.listen != "" {
		serverOpts := []api.Option{api.WithDevice(device)}
		if store != nil {
			serverOpts = append(serverOpts, api.WithDB(store), api.WithSession(recorder.SessionID))
		}
		mux := api.NewServer(p, tuning, serverOpts...).ServeMux()
		pointer.AttachAdminRoutes(mux)
		if store != nil {
			store.AttachAdminRoutes(mux)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveHTTP(ctx, o.listen, api.LoggingMiddleware(mux))
		}()
	}

	var runErr error
	if o.headless {
		runErr = p.Run(ctx)
	} else {
		infDone := make(chan error, 1)
		go func() { infDone <- p.RunInference(ctx) }()
		winErr := window.Run(ctx, window.Config{
			Title:    "lense " + version.Version,
			Size:     o.viewportSize,
			TPS:      cfg.RefreshHz,
			LensSize: window.DefaultConfig().LensSize,
		}, lens, p)
		cancel()
		runErr = <-infDone
		if winErr != nil {
			runErr = errors.Join(runErr, fmt.Errorf("window: %w", winErr))
		}
	}
	cancel()
	<-recDone

	if recorder != nil {
		st := p.Status()
		if err := recorder.Close(st.State.String(), st.Error); err != nil {
			log.Printf("failed to close session: %v", err)
		}
	}
	return runErr
}

func serveHTTP(ctx context.Context, addr string, h http.Handler) {
	server := &http.Server{
		Addr:    addr,
		Handler: h,
	}

	// Start server in a goroutine so it doesn't block
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()
	log.Printf("HTTP API listening on %s", addr)

	// Wait for context cancellation to shut down server
	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		// Force close the server if graceful shutdown fails
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}

	log.Printf("HTTP server routine stopped")
}
