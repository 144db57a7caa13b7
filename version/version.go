package version

import (
	"encoding/hex"
	"fmt"
	"runtime"
)

var (
	NAME     = "EmuHost"
	VERSION  = "unknown"
	REVISION = "HEAD"
	BUILTAT  = "now"
)

func String() string {
	return fmt.Sprintf(
		"Version:        %s\nGit hash:       %s\nBuilt:          %s\nGolang version: %s\nOS/Arch:        %s/%s\n",
		VERSION, REVISION, BUILTAT, runtime.Version(), runtime.GOOS, runtime.GOARCH,
	)
}

// Revision returns REVISION as a 20-byte commit id. Builds without a full
// git hash yield zeros.
func Revision() [20]byte {
	var rev [20]byte
	b, err := hex.DecodeString(REVISION)
	if err == nil && len(b) == len(rev) {
		copy(rev[:], b)
	}
	return rev
}
