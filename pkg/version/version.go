// Package version exposes the build version set through -ldflags.
package version

import "runtime/debug"

// version is overridden at build time:
//
//	go build -ldflags "-X github.com/rshade/ecojourney/pkg/version.version=v1.2.3"
var version = ""

// GetVersion returns the linker-provided version, then the module version
// recorded in the build info, then "dev".
func GetVersion() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
