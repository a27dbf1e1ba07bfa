package pipeline

import (
	"strings"

	vstrings "github.com/vireo-lang/vireo/internal/util/strings"
)

// shortName derives a stable snake_case identifier from a callable path or a
// type rendering: generic arguments are dropped, only the last path segment
// survives. "app.NewConn" becomes "new_conn", "app.Repo<app.User>" becomes
// "repo".
func shortName(s string) string {
	if i := strings.IndexByte(s, '<'); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "::"); i >= 0 {
		s = s[i+2:]
	}
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		s = s[i+1:]
	}
	s = vstrings.ToIdentifier(vstrings.ToSnakeCase(s))
	if s == "" {
		return "v"
	}
	return s
}
