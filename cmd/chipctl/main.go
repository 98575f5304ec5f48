package main

import (
	"github.com/robotalks/chiplink/pkg/cli/sh"
	"github.com/robotalks/chiplink/pkg/env"

	_ "github.com/robotalks/chiplink/pkg/cli/cmds/all"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
