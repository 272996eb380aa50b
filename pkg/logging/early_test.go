package logging

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEarlyLog(t *testing.T) {
	tests := []struct {
		name string
		log  func(l *EarlyLog)
		want string
	}{
		{
			name: "error",
			log:  func(l *EarlyLog) { l.Error("Failed to load config: %v", errors.New("no such file")) },
			want: "logtrigger: error: Failed to load config: no such file\n",
		},
		{
			name: "warn",
			log:  func(l *EarlyLog) { l.Warn("Some rules are inert") },
			want: "logtrigger: warn: Some rules are inert\n",
		},
		{
			name: "joined errors",
			log: func(l *EarlyLog) {
				l.Error("Invalid config: %v", errors.Join(errors.New("bad port"), errors.New("bad topic")))
			},
			want: "logtrigger: error: Invalid config: bad port\nlogtrigger: error: bad topic\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(NewEarlyLog(&buf))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}
