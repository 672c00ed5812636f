package retrieval

import "testing"

func TestSplitQdrantURL(t *testing.T) {
	tests := []struct {
		raw     string
		host    string
		port    int
		useTLS  bool
		wantErr bool
	}{
		{raw: "https://example.qdrant.io:6334", host: "example.qdrant.io", port: 6334, useTLS: true},
		{raw: "http://localhost:6334", host: "localhost", port: 6334, useTLS: false},
		{raw: "example.qdrant.io", host: "example.qdrant.io", port: 6334, useTLS: true},
		{raw: "http://localhost", host: "localhost", port: 6334, useTLS: false},
		{raw: "https://example.qdrant.io:abc", wantErr: true},
	}

	for _, tt := range tests {
		host, port, useTLS, err := SplitQdrantURL(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.raw, err)
			continue
		}
		if host != tt.host || port != tt.port || useTLS != tt.useTLS {
			t.Errorf("%s: got (%s, %d, %v), want (%s, %d, %v)", tt.raw, host, port, useTLS, tt.host, tt.port, tt.useTLS)
		}
	}
}
