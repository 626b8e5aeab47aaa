package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/noah-isme/tutor-admin/pkg/config"
	"github.com/noah-isme/tutor-admin/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli := &commandLine{cfg: cfg, logger: logr, stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	if err := cli.run(ctx, os.Args); err != nil {
		if !errors.Is(err, errHelp) && !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, err) //nolint:errcheck
		}
		os.Exit(1)
	}
}
