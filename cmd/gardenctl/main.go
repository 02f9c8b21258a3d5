package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/gardenctl/internal/logging"
	"github.com/danmuck/gardenctl/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to gardenctl TOML config")
	flag.Parse()

	logging.ConfigureRuntime()

	cfg := service.DefaultConfig()
	if *configPath != "" {
		loaded, err := loadServiceConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "gardenctl: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	svc := service.NewWithConfig(cfg)
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "gardenctl: %v\n", err)
		os.Exit(1)
	}
}
