// Package main starts the arkomp runtime and handles termination.
//
// The process hosts operator plugins and routes control commands and events
// to them until it receives SIGINT or SIGTERM.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	arkompcmd "github.com/louisbranch/arkomp/internal/cmd/arkomp"
	"github.com/louisbranch/arkomp/internal/platform/config"
)

func main() {
	cfg, err := arkompcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix("[ARKOMP] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := arkompcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
