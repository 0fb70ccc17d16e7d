package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/thegaspygames/canciones/internal/app"
	"github.com/thegaspygames/canciones/internal/config"
	"github.com/thegaspygames/canciones/internal/download"
	"github.com/thegaspygames/canciones/internal/progress"
	"github.com/thegaspygames/canciones/internal/tui"
)

func main() {
	configFlag := flag.String("config", "", "Path to config file")
	flag.Parse()

	settings, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	events := make(chan progress.Event, 64)
	svc, err := app.NewServices(settings, nil, tui.Forward(events))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	newMirror := func(onProgress progress.Func) *download.Manager {
		return download.NewManager(&settings.Download, svc.Aggregator, svc.HTTP, onProgress)
	}

	if err := tui.Run(svc.Controller, newMirror, events); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
