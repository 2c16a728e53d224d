package main

import (
	"flag"
	"log"

	"github.com/danmuck/tlvhello/internal/config"
)

const defaultPath = "cmd/tlvserver/config.toml"

func main() {
	kind := flag.String("kind", "server", "config kind: server")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to cmd/tlvserver/config.toml)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *kind != "server" {
		log.Fatalf("unknown kind: %s", *kind)
	}

	if *validate {
		path := *input
		if path == "" {
			path = defaultPath
		}
		cfg, err := config.LoadServer(path)
		if err != nil {
			log.Fatal(err)
		}
		out, err := config.Render(cfg)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated %s config at %s\n%s", *kind, path, out)
		return
	}

	target := *output
	if target == "" {
		target = defaultPath
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, target)
}
