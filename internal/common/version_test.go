package common

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFillFromBuildInfo(t *testing.T) {
	v, b, c := Version, Build, GitCommit
	t.Cleanup(func() { Version, Build, GitCommit = v, b, c })

	Version, Build, GitCommit = "dev", "unknown", "unknown"
	fillFromBuildInfo(&debug.BuildInfo{
		Main: debug.Module{Version: "v1.2.3"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.time", Value: "2024-01-01T00:00:00Z"},
		},
	}, true)
	assert.Equal(t, "v1.2.3 (build: 2024-01-01T00:00:00Z, commit: 0123456)", GetFullVersion())

	Version = "v9"
	fillFromBuildInfo(&debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}, true)
	assert.Equal(t, "v9", GetVersion(), "ldflags values win")

	fillFromBuildInfo(nil, false)
	assert.Equal(t, "0123456", GetGitCommit())
}
