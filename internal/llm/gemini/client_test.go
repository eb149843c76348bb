package gemini

import (
	"context"
	"testing"
	"time"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(context.Background(), Config{}, nil); err == nil {
		t.Fatal("empty api key must be rejected")
	}
}

func TestNewClientDefaults(t *testing.T) {
	c, err := NewClient(context.Background(), Config{APIKey: "test-key"}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer c.Close()

	if c.cfg.Model != "gemini-2.0-flash" {
		t.Errorf("model = %q", c.cfg.Model)
	}
	if c.cfg.Timeout != 30*time.Second {
		t.Errorf("timeout = %v", c.cfg.Timeout)
	}
	if c.model == nil {
		t.Error("generative model not configured")
	}
}
