package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersion(t *testing.T) {
	assert.True(t, strings.HasPrefix(Version, TLSemVer))
	assert.Equal(t, "tonlight/trusted-state/v1", TrustedStateSchema)
}
