package logger

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldConstructors(t *testing.T) {
	tests := []struct {
		name     string
		field    Field
		expected Field
	}{
		{
			name:     "String field",
			field:    String("session", "abc"),
			expected: Field{Key: "session", Value: "abc"},
		},
		{
			name:     "Int field",
			field:    Int("channels", 2),
			expected: Field{Key: "channels", Value: 2},
		},
		{
			name:     "Int64 field",
			field:    Int64("frames", 48000),
			expected: Field{Key: "frames", Value: int64(48000)},
		},
		{
			name:     "Float64 field",
			field:    Float64("ratio", 0.5),
			expected: Field{Key: "ratio", Value: 0.5},
		},
		{
			name:     "Bool field",
			field:    Bool("leading", true),
			expected: Field{Key: "leading", Value: true},
		},
		{
			name:     "Duration field",
			field:    Duration("elapsed", 250*time.Millisecond),
			expected: Field{Key: "elapsed", Value: 250 * time.Millisecond},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected.Key, tt.field.Key)
			assert.Equal(t, tt.expected.Value, tt.field.Value)
		})
	}
}

func TestErr(t *testing.T) {
	field := Err(errors.New("decode failed"))
	assert.Equal(t, "error", field.Key)
	assert.Error(t, field.Value.(error))

	field = Err(nil)
	assert.Equal(t, "error", field.Key)
	assert.Nil(t, field.Value)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input       string
		expected    Level
		expectError bool
	}{
		{input: "debug", expected: DebugLevel},
		{input: "INFO", expected: InfoLevel},
		{input: "", expected: InfoLevel},
		{input: "warning", expected: WarnLevel},
		{input: " error ", expected: ErrorLevel},
		{input: "verbose", expected: InfoLevel, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestNewWithWriter_Levels(t *testing.T) {
	tests := []struct {
		name      string
		level     Level
		log       func(l Logger)
		expectOut bool
	}{
		{name: "debug at debug", level: DebugLevel, log: func(l Logger) { l.Debug("x") }, expectOut: true},
		{name: "debug at info", level: InfoLevel, log: func(l Logger) { l.Debug("x") }, expectOut: false},
		{name: "info at warn", level: WarnLevel, log: func(l Logger) { l.Info("x") }, expectOut: false},
		{name: "error at error", level: ErrorLevel, log: func(l Logger) { l.Error("x") }, expectOut: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(NewWithWriter(&buf, tt.level))
			assert.Equal(t, tt.expectOut, buf.Len() > 0)
		})
	}
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, InfoLevel).
		WithPrefix("record").
		With(String("session", "s-1"))

	log.Info("slice stored",
		Int("index", 3),
		Int64("frames", 4800),
		Bool("flushed", true),
		Err(errors.New("boom")))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "record", entry["component"])
	assert.Equal(t, "s-1", entry["session"])
	assert.Equal(t, "slice stored", entry["message"])
	assert.Equal(t, float64(3), entry["index"])
	assert.Equal(t, float64(4800), entry["frames"])
	assert.Equal(t, true, entry["flushed"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLogger_Writer(t *testing.T) {
	var buf bytes.Buffer
	writer := NewWithWriter(&buf, InfoLevel).Writer()

	n, err := writer.Write([]byte("command output\n"))
	assert.NoError(t, err)
	assert.Equal(t, 15, n)
	assert.Contains(t, buf.String(), `"message":"command output"`)
}

func TestNop(t *testing.T) {
	log := Nop()
	assert.NotPanics(t, func() {
		log.Info("ignored", String("k", "v"))
		log.WithPrefix("x").Error("ignored")
	})
}
