package client

import "testing"

func TestResolveURL(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		path     string
		expected string
	}{
		{
			name:     "root base with absolute path",
			base:     "/",
			path:     "/api/x",
			expected: "/api/x",
		},
		{
			name:     "trailing slash base with relative path",
			base:     "https://h/api/",
			path:     "v1/list",
			expected: "https://h/api/v1/list",
		},
		{
			name:     "empty base",
			base:     "",
			path:     "foo",
			expected: "/foo",
		},
		{
			name:     "host base with leading slash path",
			base:     "https://h",
			path:     "/foo",
			expected: "https://h/foo",
		},
		{
			name:     "absolute http url passes through",
			base:     "https://h/api",
			path:     "http://other-host/v1/units",
			expected: "http://other-host/v1/units",
		},
		{
			name:     "absolute https url passes through",
			base:     "/",
			path:     "https://other-host/v1/units",
			expected: "https://other-host/v1/units",
		},
		{
			name:     "both sides carry separators",
			base:     "https://h/api/",
			path:     "/v1/list",
			expected: "https://h/api/v1/list",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveURL(tt.base, tt.path)
			if got != tt.expected {
				t.Errorf("ResolveURL(%q, %q) = %q, want %q", tt.base, tt.path, got, tt.expected)
			}
		})
	}
}
