// Package version reports the ctckit build. Values are set at link time:
//
//	go build -ldflags "-X github.com/kbukum/ctckit/version.Version=0.2.0" ./cmd/ctckit
//
// and otherwise filled from the module build info.
package version
