package oxidot

// Version is the oxidot release version, overridable at build time:
//
//	go build -ldflags "-X github.com/awkless/oxidot.Version=0.2.0"
var Version = "0.1.0"

// FullVersion returns the version with a 'v' prefix.
func FullVersion() string {
	return "v" + Version
}
