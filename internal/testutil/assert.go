package testutil

import "strings"

func (v *TestVault) checkFile(relPath string, ok func(content string) bool, expectation string) {
	v.t.Helper()
	if content := v.ReadFile(relPath); !ok(content) {
		v.t.Errorf("%s: expected %s, got:\n%s", relPath, expectation, content)
	}
}

// AssertFileContains fails the test unless relPath contains substr.
func (v *TestVault) AssertFileContains(relPath, substr string) {
	v.t.Helper()
	v.checkFile(relPath, func(c string) bool { return strings.Contains(c, substr) }, "to contain "+quote(substr))
}

// AssertFileNotContains fails the test if relPath contains substr.
func (v *TestVault) AssertFileNotContains(relPath, substr string) {
	v.t.Helper()
	v.checkFile(relPath, func(c string) bool { return !strings.Contains(c, substr) }, "not to contain "+quote(substr))
}

// AssertFileUnchanged fails the test unless relPath still holds want.
func (v *TestVault) AssertFileUnchanged(relPath, want string) {
	v.t.Helper()
	v.checkFile(relPath, func(c string) bool { return c == want }, "unchanged content "+quote(want))
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, "\n", `\n`) + `"`
}
