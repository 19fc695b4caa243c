package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name     string        `env:"NAME,required"`
	Port     int           `env:"PORT"`
	Debug    bool          `env:"DEBUG"`
	TTL      time.Duration `env:"TTL"`
	Markers  []string      `env:"MARKERS" envSeparator:","`
	Args     []string      `env:"ARGS" envSeparator:" "`
	Empty    string        `env:"EMPTY"`
	Untagged string
}

func TestMarshalEnv(t *testing.T) {
	out, err := MarshalEnv(&sample{
		Name:     "factbot",
		Port:     8080,
		Debug:    true,
		TTL:      90 * time.Second,
		Markers:  []string{"llama", "gpt-oss"},
		Args:     []string{"-y", "search-server"},
		Untagged: "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, "NAME=factbot\nPORT=8080\nDEBUG=true\nTTL=1m30s\nMARKERS=llama,gpt-oss\nARGS=-y search-server\n", out)
}

func TestMarshalEnv_AllZero(t *testing.T) {
	out, err := MarshalEnv(&sample{})
	require.NoError(t, err)
	assert.Empty(t, out)
}
