package db

import (
	"context"
	"testing"
)

func TestOpen_InvalidURL(t *testing.T) {
	if _, err := Open(context.Background(), "postgres://%zz"); err == nil {
		t.Fatal("expected parse error for malformed url")
	}
}
