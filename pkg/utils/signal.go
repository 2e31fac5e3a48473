package utils

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SetupSignalContext returns a context cancelled on SIGINT or SIGTERM.
// A second signal kills the process outright.
func SetupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
