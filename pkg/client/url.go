package client

import "strings"

// ResolveURL joins a relative API path with the configured base address.
//
// Absolute URLs pass through unchanged so operators can point individual
// endpoints at a different origin per environment without code changes.
// Otherwise the leading slash of path and the trailing slash of base are
// stripped and the two are joined with exactly one slash. An empty base
// behaves like "/".
func ResolveURL(base, path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}

	base = strings.TrimSuffix(base, "/")
	path = strings.TrimPrefix(path, "/")

	return base + "/" + path
}
