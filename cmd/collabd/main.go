// Command collabd serves the real-time collaborative document sync
// protocol: one websocket endpoint fanning out CRDT updates and awareness
// state per document name, wired together the way the teacher's main.go
// bootstraps its room/store/server trio from CLI flags.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"collabd/internal/ids"
	"collabd/internal/room"
	"collabd/internal/snapstore"
	"collabd/internal/transport"
)

func main() {
	addr := flag.String("addr", ":2976", "websocket listen address")
	dbPath := flag.String("db", "collabd.db", "SQLite snapshot database path")
	machineID := flag.Uint64("machine-id", 1, "snowflake machine id for peer connection ids (0-1023)")
	defaultLimits := transport.DefaultConfig()
	ratePerSecond := flag.Float64("inbound-rate", defaultLimits.RatePerSecond, "inbound frames per second allowed per peer session")
	rateBurst := flag.Int("inbound-burst", defaultLimits.Burst, "inbound rate limiter burst size per peer session")
	sinkBuffer := flag.Int("sink-buffer", defaultLimits.SinkBuffer, "outbound frame queue depth per peer")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	snapshots, err := snapstore.Open(*dbPath)
	if err != nil {
		slog.Error("open snapshot store", "err", err)
		os.Exit(1)
	}
	defer snapshots.Close()

	idGen, err := ids.NewGenerator(*machineID)
	if err != nil {
		slog.Error("create connection id generator", "err", err)
		os.Exit(1)
	}

	registry := room.NewRegistry(snapshots.OnRoomDestroyed)
	srv := transport.New(registry, idGen, transport.Config{
		RatePerSecond: *ratePerSecond,
		Burst:         *rateBurst,
		SinkBuffer:    *sinkBuffer,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("collabd listening", "addr", *addr, "db", *dbPath, "machine_id", *machineID)
	if err := srv.Run(ctx, *addr); err != nil {
		slog.Error("server stopped with error", "err", err)
		os.Exit(1)
	}
	slog.Info("collabd stopped")
}
