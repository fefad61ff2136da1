package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/rov.teleop/internal/api"
	"github.com/banshee-data/rov.teleop/internal/config"
	"github.com/banshee-data/rov.teleop/internal/db"
	"github.com/banshee-data/rov.teleop/internal/input"
	"github.com/banshee-data/rov.teleop/internal/monitoring"
	"github.com/banshee-data/rov.teleop/internal/serialmux"
	"github.com/banshee-data/rov.teleop/internal/teleop"
	"github.com/banshee-data/rov.teleop/internal/telemetry"
	"github.com/banshee-data/rov.teleop/internal/timeutil"
	"github.com/banshee-data/rov.teleop/internal/version"
)

var (
	configPath    = flag.String("config", config.DefaultConfigPath, "Path to teleop JSON configuration (empty for built-in defaults)")
	listen        = flag.String("listen", ":8080", "HTTP listen address")
	grpcListen    = flag.String("grpc-listen", "localhost:50061", "Telemetry gRPC listen address (empty to disable)")
	dbPath        = flag.String("db", "teleop.db", "Actuator event log database (empty to disable)")
	disableSerial = flag.Bool("disable-serial", false, "Run without the controller board; commands are discarded")
	logFile       = flag.String("log-file", "", "Also write logs to this size-rotated file")
	debug         = flag.Bool("debug", false, "Log every encoded thruster command")
)

func loadConfig(path string) (*config.TeleopConfig, error) {
	if path == "" {
		return config.DefaultTeleopConfig(), nil
	}
	return config.LoadTeleopConfig(path)
}

// engineConfig maps the on-disk configuration onto the engine's.
func engineConfig(cfg *config.TeleopConfig) teleop.Config {
	return teleop.Config{
		Mapping: cfg.GetMapping(),
		Gains: teleop.Gains{
			Surge: cfg.GetSurgeGain(),
			Heave: cfg.GetHeaveGain(),
			Yaw:   cfg.GetYawGain(),
		},
		ThrusterOffset: cfg.GetThrusterOffsetM(),
		LightRate:      cfg.GetLightRate(),
	}
}

func openSerial(cfg *config.TeleopConfig, disabled bool) (serialmux.SerialMuxInterface, error) {
	if disabled {
		log.Printf("serial disabled: actuator commands will be discarded")
		return serialmux.NewDisabledSerialMux(), nil
	}
	return serialmux.NewRealSerialMux(cfg.GetSerialPort(), serialmux.PortOptions{BaudRate: cfg.GetBaudRate()})
}

// logBoardLine reports one line received from the controller board.
func logBoardLine(line string) {
	switch serialmux.ClassifyLine(line) {
	case serialmux.LineTypeError:
		monitoring.Logf("[board] error: %s", line)
	case serialmux.LineTypeTelemetry:
		monitoring.Debugf("[board] telemetry: %v", serialmux.ParseTelemetry(line))
	default:
		monitoring.Debugf("[board] %s", line)
	}
}

func main() {
	flag.Parse()

	if *logFile != "" {
		logger, closer := monitoring.NewRotatingLogger(monitoring.RotatingLogConfig{Path: *logFile, Tee: true})
		defer closer.Close()
		log.SetOutput(logger.Writer())
		log.SetFlags(logger.Flags())
		monitoring.SetLogger(logger.Printf)
	}
	monitoring.SetDebug(*debug)
	log.Printf("teleop %s", version.Current())

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	board, err := openSerial(cfg, *disableSerial)
	if err != nil {
		log.Fatalf("failed to open controller board port %s: %v", cfg.GetSerialPort(), err)
	}
	defer board.Close()

	if err := board.Initialize(); err != nil {
		log.Fatalf("failed to initialize controller board: %v", err)
	}
	log.Printf("controller board in safe state")

	publishers := teleop.MultiPublisher{teleop.NewSerialPublisher(board)}

	var eventLog *db.DB
	if *dbPath != "" {
		eventLog, err = db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("failed to open event log: %v", err)
		}
		defer eventLog.Close()

		cfgJSON, _ := json.Marshal(cfg)
		session, err := eventLog.StartSession(string(cfgJSON))
		if err != nil {
			log.Fatalf("failed to start session: %v", err)
		}
		log.Printf("event log session %s", session)
		publishers = append(publishers, teleop.NewRecordingPublisher(eventLog.Session(session)))
	}

	broadcaster := telemetry.NewBroadcaster()
	defer broadcaster.Close()
	publishers = append(publishers, broadcaster)

	engine, err := teleop.NewEngine(engineConfig(cfg), publishers)
	if err != nil {
		log.Fatalf("failed to build thrust allocation: %v", err)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := board.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		id, c := board.Subscribe()
		defer board.Unsubscribe(id)
		for {
			select {
			case line, ok := <-c:
				if !ok {
					return
				}
				logBoardLine(line)
			case <-ctx.Done():
				log.Printf("subscribe routine terminated")
				return
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		d := teleop.NewDispatcher(engine, timeutil.RealClock{}, cfg.GetResendInterval())
		if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("dispatcher stopped: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		l := input.NewUDPListener(input.UDPListenerConfig{
			Address: cfg.GetUDPListen(),
			Handler: engine,
		})
		if err := l.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("gamepad listener stopped: %v", err)
		}
	}()

	if *grpcListen != "" {
		srv := telemetry.NewServer(telemetry.Config{ListenAddr: *grpcListen}, broadcaster)
		if err := srv.Start(); err != nil {
			log.Fatalf("failed to start telemetry server: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ctx.Done()
			broadcaster.Close()
			srv.Stop(5 * time.Second)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()
		if eventLog != nil {
			if err := eventLog.AttachAdminRoutes(mux); err != nil {
				log.Printf("event log admin routes unavailable: %v", err)
			}
		}
		board.AttachAdminRoutes(mux)

		var events api.EventSource
		if eventLog != nil {
			events = eventLog
		}
		mux.Handle("/api/", api.NewServer(board, engine, events).ServeMux())

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()

	// leave the vehicle as we found it
	if err := board.Initialize(); err != nil {
		log.Printf("failed to return controller board to safe state: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}
