package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_ConsoleAndFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "nested", "bot.log")
	Init(Options{Timezone: "Asia/Riyadh", File: path, Out: &buf})
	defer Close()

	l := With("expiry")
	l.Info().Str("run_id", "r1").Msg("开始检查")
	Debug().Msg("不应输出")

	out := buf.String()
	assert.Contains(t, out, "开始检查")
	assert.Contains(t, out, "component=expiry")
	assert.Contains(t, out, "run_id=r1")
	assert.NotContains(t, out, "不应输出")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"expiry"`)
}

func TestInit_DebugLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Debug: true, Timezone: "not/a-zone", Out: &buf})
	defer Init(Options{Out: &bytes.Buffer{}})

	Debug().Msg("调试信息")
	assert.Contains(t, buf.String(), "调试信息")
}
