package main

import (
	"flag"
	"log"

	"github.com/danmuck/gardenctl/internal/config"
)

func main() {
	output := flag.String("output", "cmd/gardenctl/gardenctl.toml", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "cmd/gardenctl/gardenctl.toml", "config path for validation")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		if _, err := config.Validate(*input); err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated gardenctl config at %s", *input)
		return
	}

	if err := config.WriteTemplate(*output, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote gardenctl config template to %s", *output)
}
