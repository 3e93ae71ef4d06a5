package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(Config{Format: "json", Level: "debug", Component: "tedecom"}, &buf)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	log.Debug().Str("report_id", "r-1").Msg("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "tedecom", entry["component"])
	assert.Equal(t, "r-1", entry["report_id"])
	assert.Equal(t, "debug", entry["level"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.WarnLevel, parseLevel("WARN"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.ErrorLevel, parseLevel("error"))
}
