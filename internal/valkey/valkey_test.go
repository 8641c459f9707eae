package valkey

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestConnect_Schemes(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)

	tests := []struct {
		name string
		url  string
	}{
		{"valkey scheme", "valkey://" + mr.Addr()},
		{"upper-cased valkey scheme", "VALKEY://" + mr.Addr()},
		{"redis scheme", "redis://" + mr.Addr()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client, err := Connect(context.Background(), tt.url, time.Second)
			if err != nil {
				t.Fatalf("Connect(%q) error = %v", tt.url, err)
			}
			defer client.Close()
			if err := client.Ping(context.Background()).Err(); err != nil {
				t.Errorf("Ping() error = %v", err)
			}
		})
	}
}

func TestConnect_BadURL(t *testing.T) {
	t.Parallel()

	if _, err := Connect(context.Background(), "http://localhost:6379", time.Second); err == nil {
		t.Error("Connect() with an http scheme succeeded, want error")
	}
	if _, err := Connect(context.Background(), "valkey://\x7f", time.Second); err == nil {
		t.Error("Connect() with a malformed URL succeeded, want error")
	}
}

func TestConnect_Unreachable(t *testing.T) {
	t.Parallel()

	// A reserved port nothing listens on.
	_, err := Connect(context.Background(), "valkey://127.0.0.1:1", 100*time.Millisecond)
	if err == nil {
		t.Error("Connect() to a closed port succeeded, want error")
	}
}
