package all

import (
	// all commands
	_ "github.com/robotalks/chiplink/pkg/cli/cmds/chip"
	_ "github.com/robotalks/chiplink/pkg/cli/cmds/firmware"
)
