/*
flag Package set up cli flags shared across services

Usage:

	Flags listed in this package are shared across boundaries and service-agnostic
	For service dependent flags please define in their respective package
*/

package flag

import (
	"flag"
)

const (
	APIServer = "api_server"
	Migrator  = "migrator"
)

var (
	IsDevelopment *bool
	ServiceName   *string
	ByPassAuth    *bool
)

func init() {
	IsDevelopment = flag.Bool("dev", true, "set to true if the current run is for development. default value is true")
	ServiceName = flag.String("service", APIServer, "'api_server' or 'migrator'")
	ByPassAuth = flag.Bool("bypass_auth", false, "skip jwt validation, development only")
}

// Parse reads the command line. Called from main, never from init, so other
// packages (the testing package included) can still register flags of their
// own before parsing happens.
func Parse() {
	flag.Parse()
}
