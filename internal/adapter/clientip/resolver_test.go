package clientip

import (
	"net/http/httptest"
	"testing"
)

func TestResolver_Resolve(t *testing.T) {
	tests := []struct {
		name           string
		forwardedIndex int
		headers        map[string]string
		want           string
	}{
		{
			name:           "edge header wins over everything",
			forwardedIndex: 0,
			headers: map[string]string{
				"CF-Connecting-IP": "203.0.113.7",
				"X-Real-IP":        "10.0.0.2",
				"X-Forwarded-For":  "198.51.100.1, 10.0.0.1",
			},
			want: "203.0.113.7",
		},
		{
			name:           "real-ip header when edge absent",
			forwardedIndex: 0,
			headers: map[string]string{
				"X-Real-IP":       "10.0.0.2",
				"X-Forwarded-For": "198.51.100.1",
			},
			want: "10.0.0.2",
		},
		{
			name:           "first forwarded-for entry",
			forwardedIndex: 0,
			headers: map[string]string{
				"X-Forwarded-For": "198.51.100.1, 10.0.0.1, 10.0.0.2",
			},
			want: "198.51.100.1",
		},
		{
			name:           "configurable forwarded-for index",
			forwardedIndex: 1,
			headers: map[string]string{
				"X-Forwarded-For": "198.51.100.1, 10.0.0.1, 10.0.0.2",
			},
			want: "10.0.0.1",
		},
		{
			name:           "index past end clamps to last entry",
			forwardedIndex: 5,
			headers: map[string]string{
				"X-Forwarded-For": "198.51.100.1, 10.0.0.1",
			},
			want: "10.0.0.1",
		},
		{
			name:           "no headers at all",
			forwardedIndex: 0,
			headers:        map[string]string{},
			want:           Unknown,
		},
		{
			name:           "whitespace-only values are skipped",
			forwardedIndex: 0,
			headers: map[string]string{
				"CF-Connecting-IP": "  ",
				"X-Real-IP":        "10.0.0.2",
			},
			want: "10.0.0.2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := NewResolver("CF-Connecting-IP", "X-Real-IP", tt.forwardedIndex)
			req := httptest.NewRequest("GET", "/api/checkout", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			got := resolver.Resolve(req)
			if got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}
