package main

import (
	"github.com/nektos/artifact-relay/cmd"
	"github.com/nektos/artifact-relay/pkg/common"
)

var version = "dev"

func main() {
	// Ctrl+C or SIGTERM stop accepting requests, a second one aborts the running ones
	ctx, cancel := common.CreateGracefulShutdownContext()
	defer cancel()

	// run the command
	cmd.Execute(ctx, version)
}
