// Command server runs the presence relay: it accepts stream connections,
// listens for datagrams, authenticates both against the configured auth
// service, and relays roster and movement events between every connected
// peer. Grounded on the teacher's cmd/api/main.go bootstrap-and-signal
// shutdown shape and on original_source/src/main.rs's listener setup.
package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"presencerelay/internal/authclient"
	"presencerelay/internal/config"
	"presencerelay/internal/relay"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("[relay] %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return err
	}
	defer listener.Close()

	udpAddr, err := net.ResolveUDPAddr("udp", cfg.ListenAddr)
	if err != nil {
		return err
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	defer udpConn.Close()

	auth := authclient.New(cfg.APIOrigin, &http.Client{Timeout: cfg.AuthRequestTimeout})
	server := relay.New(listener, udpConn, auth, cfg.AuthRequestTimeout)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Printf("[relay] listening on %s (stream + datagram)", cfg.ListenAddr)

	err = server.Run(ctx)
	if err == context.Canceled {
		log.Print("[relay] shutting down")
		return nil
	}
	return err
}
