package version

import "github.com/tonlight/tonlight/types"

var (
	// GitCommit is the current HEAD set using ldflags.
	GitCommit string

	// Version is the built softwares version.
	Version = TLSemVer
)

func init() {
	if GitCommit != "" {
		Version += "-" + GitCommit
	}
}

const (
	// TLSemVer is the current version of tonlight.
	// It's the Semantic Version of the software.
	TLSemVer = "0.3.0"

	// TrustedStateSchema versions the trusted state file format.
	TrustedStateSchema = types.TrustedStateSchema
)
