package relay

import "fmt"

const agentName = "shadowrelay"

// version can be overridden via ldflags at build time.
var version = "dev"

// Version returns the current relay version label.
func Version() string {
	return version
}

// UserAgent returns the User-Agent sent with every forwarded record.
func UserAgent() string {
	return fmt.Sprintf("%s/%s", agentName, version)
}
