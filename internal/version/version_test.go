package version

import "testing"

func TestFullIncludesCommit(t *testing.T) {
	prevVersion, prevCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = prevVersion, prevCommit })

	Version, Commit = "1.2.3", "abc1234"
	if got := Full(); got != "ghpkg 1.2.3 (abc1234)" {
		t.Fatalf("unexpected version string: %s", got)
	}
}
