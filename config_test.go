package lamp

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := defaultConfig()
	assert.Equal(t, 30*time.Second, c.DefaultTimeout)
	assert.Equal(t, 2, c.MaxRetries)
	assert.Equal(t, time.Second, c.RetryDelay)
	assert.Equal(t, 4000, c.CacheThreshold)
	assert.NotNil(t, c.Logger)
	assert.Nil(t, c.HTTPClient, "providers keep their own transport unless one is configured")
	require.NoError(t, c.Validate())
}

func TestClientOptions(t *testing.T) {
	tests := []struct {
		name    string
		opt     ClientOption
		check   func(t *testing.T, c *ClientConfig)
		wantErr bool
	}{
		{
			name: "timeout",
			opt:  WithTimeout(45 * time.Second),
			check: func(t *testing.T, c *ClientConfig) {
				assert.Equal(t, 45*time.Second, c.DefaultTimeout)
			},
		},
		{
			name:    "zero timeout rejected",
			opt:     WithTimeout(0),
			wantErr: true,
		},
		{
			name: "retries",
			opt:  WithRetries(5, 2*time.Second),
			check: func(t *testing.T, c *ClientConfig) {
				assert.Equal(t, 5, c.MaxRetries)
				assert.Equal(t, 2*time.Second, c.RetryDelay)
			},
		},
		{
			name:    "negative retries rejected",
			opt:     WithRetries(-1, time.Second),
			wantErr: true,
		},
		{
			name: "cache threshold",
			opt:  WithCacheThreshold(8000),
			check: func(t *testing.T, c *ClientConfig) {
				assert.Equal(t, 8000, c.CacheThreshold)
			},
		},
		{
			name:    "zero cache threshold rejected",
			opt:     WithCacheThreshold(0),
			wantErr: true,
		},
		{
			name:    "nil logger rejected",
			opt:     WithLogger(nil),
			wantErr: true,
		},
		{
			name: "logger",
			opt:  WithLogger(slog.Default()),
			check: func(t *testing.T, c *ClientConfig) {
				assert.NotNil(t, c.Logger)
			},
		},
		{
			name:    "nil http client rejected",
			opt:     WithHTTPClient(nil),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaultConfig()
			err := tt.opt(c)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, c)
			}
		})
	}
}

func TestMaskKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want string
	}{
		{"normal key", "sk-or-v1-abcdef123456", "sk-o...56"},
		{"short key fully masked", "sk-12345", "***"},
		{"empty key", "", "***"},
		{"boundary length", "12345678", "***"},
		{"just over boundary", "123456789", "1234...89"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaskKey(tt.key)
			assert.Equal(t, tt.want, got)
			if len(tt.key) > 8 {
				assert.NotContains(t, got, tt.key[4:len(tt.key)-2], "middle of the key must never appear")
			}
		})
	}
}
