package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/axterm-radio/netwatch/internal/api"
	"github.com/axterm-radio/netwatch/internal/ax25"
	"github.com/axterm-radio/netwatch/internal/config"
	"github.com/axterm-radio/netwatch/internal/engine"
	"github.com/axterm-radio/netwatch/internal/kiss"
	"github.com/axterm-radio/netwatch/internal/store"
	"github.com/axterm-radio/netwatch/internal/timeutil"
	"github.com/axterm-radio/netwatch/internal/version"
)

var (
	listen      = flag.String("listen", ":8080", "Listen address")
	serialPath  = flag.String("serial", "/dev/ttyUSB0", "KISS TNC serial device")
	baud        = flag.Int("baud", 9600, "Serial baud rate")
	tcpAddr     = flag.String("tcp", "", "KISS-over-TCP address (overrides -serial)")
	dbFile      = flag.String("db", "netwatch.db", "SQLite database path")
	configPath  = flag.String("config", "", "Tuning config JSON path")
	fixturePath = flag.String("fixtures", "", "Replay a raw KISS capture file instead of opening a TNC")
)

// flushInterval bounds how long a received frame waits before it reaches
// the engine and the archive.
const flushInterval = 2 * time.Second

// decodeBatch converts raw AX.25 frames into packet events, dropping
// anything malformed.
func decodeBatch(frames [][]byte, ts time.Time) []ax25.PacketEvent {
	events := make([]ax25.PacketEvent, 0, len(frames))
	for _, frame := range frames {
		ev, err := ax25.Decode(frame, ts)
		if err != nil {
			log.Printf("dropping undecodable frame (%d bytes): %v", len(frame), err)
			continue
		}
		events = append(events, ev)
	}
	return events
}

// replayFixtures pushes a captured KISS byte stream through the splitter
// and returns the decoded events.
func replayFixtures(path string) ([]ax25.PacketEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var splitter kiss.Splitter
	frames := splitter.Push(data)
	return decodeBatch(frames, time.Now()), nil
}

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	log.Printf("netwatch %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	cfg := &config.TuningConfig{}
	if *configPath != "" {
		loaded, err := config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	db, err := store.Open(*dbFile)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	clock := timeutil.RealClock{}
	eng := engine.New(cfg, clock)

	// Restore analytics state and recent history from the previous run.
	links, err := db.LoadLinks()
	if err != nil {
		log.Fatalf("Failed to load link records: %v", err)
	}
	routes, err := db.LoadRoutes()
	if err != nil {
		log.Fatalf("Failed to load routes: %v", err)
	}
	eng.ImportState(links, routes)

	now := clock.Now()
	if n, err := db.PrunePackets(now.Add(-7 * 24 * time.Hour)); err != nil {
		log.Printf("failed to prune packet archive: %v", err)
	} else if n > 0 {
		log.Printf("pruned %d archived packets", n)
	}
	warm, err := db.PacketsBetween(now.Add(-24*time.Hour), now)
	if err != nil {
		log.Fatalf("Failed to load packet archive: %v", err)
	}

	var feed *kiss.Feed
	if *fixturePath == "" {
		if *tcpAddr != "" {
			feed, err = kiss.DialTCP(*tcpAddr)
		} else {
			feed, err = kiss.OpenSerial(*serialPath, *baud)
		}
		if err != nil {
			log.Fatalf("Failed to open KISS feed: %v", err)
		}
		defer feed.Close()
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// engine fold/rebuild loop
	wg.Add(1)
	go func() {
		defer wg.Done()
		eng.Run(ctx)
	}()

	if len(warm) > 0 {
		log.Printf("replaying %d archived packets", len(warm))
		if err := eng.Submit(ctx, warm); err != nil {
			log.Printf("failed to submit archived packets: %v", err)
		}
	}

	if *fixturePath != "" {
		events, err := replayFixtures(*fixturePath)
		if err != nil {
			log.Fatalf("Failed to replay fixtures: %v", err)
		}
		log.Printf("replayed %d events from %s", len(events), *fixturePath)
		if err := eng.Submit(ctx, events); err != nil {
			log.Printf("failed to submit fixture events: %v", err)
		}
	} else {
		// run the monitor routine to manage IO on the KISS transport
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := feed.Monitor(ctx); err != nil && err != context.Canceled {
				log.Printf("failed to monitor KISS feed: %v", err)
			}
			log.Print("monitor routine terminated")
		}()

		// collect frames into batches for the engine and the archive
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(flushInterval)
			defer ticker.Stop()

			var pending [][]byte
			flush := func(ctx context.Context) {
				if len(pending) == 0 {
					return
				}
				events := decodeBatch(pending, clock.Now())
				pending = nil
				if len(events) == 0 {
					return
				}
				if err := db.ArchivePackets(events); err != nil {
					log.Printf("failed to archive packets: %v", err)
				}
				if err := eng.Submit(ctx, events); err != nil {
					log.Printf("failed to submit batch: %v", err)
				}
			}

			for {
				select {
				case frame, ok := <-feed.Frames():
					if !ok {
						flush(ctx)
						return
					}
					pending = append(pending, frame)
				case <-ticker.C:
					flush(ctx)
				case <-ctx.Done():
					// The run context is already canceled; give the tail
					// batch its own deadline so it still reaches the
					// archive and the engine's shutdown drain.
					tailCtx, cancel := context.WithTimeout(context.Background(), flushInterval)
					flush(tailCtx)
					cancel()
					log.Printf("frame collector terminated")
					return
				}
			}
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(eng, cfg, clock).ServeMux()
		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("listening on %s", *listen)
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
	}()

	wg.Wait()

	// Persist analytics state once the engine loop has stopped.
	links, routes = eng.ExportState()
	if err := db.SaveLinks(links); err != nil {
		log.Printf("failed to save link records: %v", err)
	}
	if err := db.SaveRoutes(routes); err != nil {
		log.Printf("failed to save routes: %v", err)
	}
	log.Printf("saved %d links and %d routes", len(links), len(routes))
}
