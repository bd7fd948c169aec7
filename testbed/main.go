package main

import (
	"os"

	"github.com/pangaea-engine/pangaea/engine"
	"github.com/pangaea-engine/pangaea/engine/core"
)

func main() {
	os.Exit(run())
}

// run carries the exit code back to main so deferred teardown (pipeline
// cache save, device destruction) happens before the process exits.
func run() int {
	configPath := "pangaea.toml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	config, err := engine.LoadConfig(configPath)
	if err != nil {
		core.LogError("invalid configuration: %v", err)
		return 1
	}

	app, err := engine.NewApplication(config)
	if err != nil {
		core.LogError("failed to create application: %v", err)
		return 1
	}
	defer app.Shutdown()

	if err := app.Initialize(); err != nil {
		core.LogError("failed to initialize: %v", err)
		return 1
	}

	if err := app.Run(); err != nil {
		return 1
	}
	return 0
}
