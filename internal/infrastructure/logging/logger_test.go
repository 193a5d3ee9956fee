package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "default", cfg: DefaultConfig()},
		{name: "development", cfg: Config{Level: "debug", Development: true}},
		{name: "bad level", cfg: Config{Level: "loud"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger.Component("test"))
		})
	}
}

func TestOrNop(t *testing.T) {
	var l *Logger
	assert.NotNil(t, l.OrNop().Logger)

	nop := NewNop()
	assert.Same(t, nop, nop.OrNop())
}
