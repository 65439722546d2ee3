package db

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestOpenGormRejectsBadDSN(t *testing.T) {
	if _, err := OpenGorm(context.Background(), Config{DSN: "postgres://%zz"}); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoggerWritesThroughSlog(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(Config{LogSQL: true, Logger: slog.New(slog.NewTextHandler(&buf, nil))})
	l.Info(context.Background(), "hello %s", "gorm")
	if !strings.Contains(buf.String(), "hello gorm") || !strings.Contains(buf.String(), "component=gorm") {
		t.Fatalf("log output = %q", buf.String())
	}
}
