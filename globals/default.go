package globals

import "github.com/hashicorp/go-hclog"

// AppLogger is shared by every package of the client core. The level is lowered or raised from the configuration
// once it has been read.
var AppLogger = hclog.New(&hclog.LoggerOptions{
	Name:  "neowatch",
	Level: hclog.LevelFromString("INFO"),
})
