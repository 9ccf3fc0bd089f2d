package main

import (
	"github.com/buildbeaver/autopin/cmd/autopin-tools/commands"
	_ "github.com/buildbeaver/autopin/cmd/autopin-tools/commands/evaluate"
	_ "github.com/buildbeaver/autopin/cmd/autopin-tools/commands/migrate"
	_ "github.com/buildbeaver/autopin/cmd/autopin-tools/commands/pins"
)

func main() {
	commands.Execute()
}
