package internal

import (
	"testing"

	"github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ALLOWED_ORIGINS", "localhost:*, example.com")

	var config Config
	_, err := env.UnmarshalFromEnviron(&config)

	req.NoError(err)
	req.NoError(config.Validate())
	req.Equal(StoreBadger, config.StoreMode)
	req.Equal(20, config.HistoryLimit)
	req.Equal([]string{"localhost:*", "example.com"}, config.Origins())
}

func TestConfig_Validate(t *testing.T) {
	req := require.New(t)
	valid := Config{StoreMode: StoreMemory, BufferSize: 1, ConnectionBufferSize: 1, CharReplacement: "*"}
	req.NoError(valid.Validate())

	invalid := valid
	invalid.StoreMode = "redis"
	req.Error(invalid.Validate())

	invalid = valid
	invalid.CharReplacement = "**"
	req.Error(invalid.Validate())
}

func TestDefaultMapper(t *testing.T) {
	req := require.New(t)

	row := DefaultMapper("msg:room:global:01HX0000000000000000000000", []byte("x"))

	req.Equal("msg", row.Namespace)
	req.Equal("ROOM", row.Type)
	req.Equal("01HX0000", row.EntityID)
}
