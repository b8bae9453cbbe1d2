package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pawpal/composite-service/internal/app"
)

func main() {
	application, err := app.New()
	if err != nil {
		fmt.Printf("Failed to init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Run()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		application.Log.Error("server stopped", "error", err)
		application.Close()
		os.Exit(1)
	case sig := <-quit:
		application.Log.Info("shutting down", "signal", sig.String())
	}
}
