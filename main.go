package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"

	"relay/server/store"
)

func main() {
	if len(os.Args) > 1 {
		cliDB := os.Getenv("SERVER_DB_PATH")
		if cliDB == "" {
			cliDB = "data/server.db"
		}
		if RunCLI(os.Args[1:], cliDB) {
			return
		}
	}

	cfg := LoadConfig()

	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	addr := flag.String("addr", net.JoinHostPort(cfg.Host, cfg.Port), "control-plane listen address")
	fileAddr := flag.String("file-addr", net.JoinHostPort(cfg.Host, cfg.FilePort), "file data-plane listen address")
	adminAddr := flag.String("admin-addr", net.JoinHostPort(cfg.Host, cfg.AdminPort), "operational HTTP listen address")
	flag.Parse()

	slog.SetLogLoggerLevel(cfg.SlogLevel())

	st, err := store.New(*dbPath)
	if err != nil {
		log.Fatalf("[store] %v", err)
	}
	defer st.Close()

	hub := NewHub(cfg, st, *fileAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		slog.Info("server: shutdown signal received")
		cancel()
	}()

	cleaner := NewPresenceCleaner(hub, cfg.PresenceScanInterval, cfg.SessionTimeout)
	go cleaner.Run(ctx)
	go hub.offline.Run(ctx)

	go func() {
		if err := hub.bridge.Listen(*fileAddr); err != nil {
			slog.Warn("file bridge: listener stopped", "err", err)
		}
	}()

	admin := NewAdminServer(hub)
	go admin.Run(ctx, *adminAddr)

	srv := NewServer(hub, *addr)
	go func() {
		<-ctx.Done()
		srv.Close()
		hub.bridge.Close()
	}()

	slog.Info("server: starting", "control_addr", *addr, "file_addr", *fileAddr, "admin_addr", *adminAddr)
	if err := srv.Serve(); err != nil {
		log.Fatalf("[server] %v", err)
	}
}
