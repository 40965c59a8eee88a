package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestGormLoggerAdapterTrace(t *testing.T) {
	tests := []struct {
		name     string
		level    LogLevel
		begin    time.Time
		err      error
		contains string
		empty    bool
	}{
		{"normal query hidden at info", LogLevelInfo, time.Now(), nil, "", true},
		{"normal query at trace", LogLevelTrace, time.Now(), nil, "sql query", false},
		{"record not found is not an error", LogLevelInfo, time.Now(), gorm.ErrRecordNotFound, "", true},
		{"query error", LogLevelInfo, time.Now(), errors.New("disk I/O error"), "query error", false},
		{"slow query", LogLevelInfo, time.Now().Add(-time.Second), nil, "slow query", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			adapter := NewGormLoggerAdapter(NewSlogLogger(buf, tt.level, time.UTC), 100*time.Millisecond)

			adapter.Trace(context.Background(), tt.begin, func() (string, int64) {
				return "SELECT * FROM observations", 1
			}, tt.err)

			if tt.empty {
				assert.Empty(t, buf.String())
				return
			}
			assert.Contains(t, buf.String(), tt.contains)
		})
	}
}
