package config

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeJSONCRemovesCommentsAndTrailingCommas(t *testing.T) {
	input := `
{
  // line comment
  "items": [
    "one", /* block comment */
    "two",
  ],
  "nested": {
    "enabled": true,
  },
}
`

	normalized, err := normalizeJSONC(input)
	require.NoError(t, err)
	require.NotContains(t, normalized, "//")
	require.NotContains(t, normalized, "/*")
	require.NotContains(t, normalized, ",]")
	require.NotContains(t, normalized, ",}")
}

func TestNormalizeJSONCRetainsCommentLikeTextInsideStrings(t *testing.T) {
	input := `{"value":"contains // and /* comment-like */ text",}`
	normalized, err := normalizeJSONC(input)
	require.NoError(t, err)
	require.Contains(t, normalized, "// and /* comment-like */")
}

func TestNormalizeJSONCPreservesOffsets(t *testing.T) {
	input := "{\n  /* note */ \"log\": {\"level\": \"debug\",}, // tail\n}"
	normalized, err := normalizeJSONC(input)
	require.NoError(t, err)
	require.Len(t, normalized, len(input))
	require.Equal(t, strings.Index(input, `"log"`), strings.Index(normalized, `"log"`))
	require.Equal(t, strings.Count(input, "\n"), strings.Count(normalized, "\n"))
}

func TestNormalizeJSONCUnterminatedBlockCommentFails(t *testing.T) {
	_, err := normalizeJSONC("{ /* unterminated ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unterminated block comment")
}

func TestEnsureSingleJSONValueRejectsExtraPayload(t *testing.T) {
	decoder := json.NewDecoder(strings.NewReader(`{"one":1}{"two":2}`))
	var payload map[string]any
	require.NoError(t, decoder.Decode(&payload))

	err := ensureSingleJSONValue(decoder)
	require.Error(t, err)
	require.Contains(t, err.Error(), "multiple JSON values")
}

func TestOffsetToLineCol(t *testing.T) {
	content := "line1\nline2\nline3"
	line, col := offsetToLineCol(content, 1)
	require.Equal(t, 1, line)
	require.Equal(t, 1, col)

	line, col = offsetToLineCol(content, 8) // line2, col2
	require.Equal(t, 2, line)
	require.Equal(t, 2, col)

	line, col = offsetToLineCol(content, 999)
	require.Equal(t, 3, line)
	require.Equal(t, 5, col)
}

func TestStringListUnmarshalJSON(t *testing.T) {
	var list stringList
	require.NoError(t, list.UnmarshalJSON([]byte(`["a","b"]`)))
	require.Equal(t, []string{"a", "b"}, []string(list))

	require.NoError(t, list.UnmarshalJSON([]byte(`"a, b, , c"`)))
	require.Equal(t, []string{"a", "b", "c"}, []string(list))

	err := list.UnmarshalJSON([]byte(`123`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "expected string array")
}

func TestParseJSONCRejectsInvalidCommandArgv(t *testing.T) {
	_, _, err := Parse(`{"clipboard_cmd":"unterminated ' quote"}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid clipboard_cmd")
}

func TestParseJSONCFullDocument(t *testing.T) {
	cfg, warnings, err := Parse(`{
  // backends in preference order
  "recognition": {
    "backends": "deepgram, google",
    "language": " de-DE ",
    "continuous": false,
    "interim_results": false,
  },
  "audio": {"input": "Elgato", "fallback": "default"},
  "google": {"credentials_file": " /tmp/key.json ", "model": "latest_long", "automatic_punctuation": false},
  "deepgram": {"api_key_env": "DG_KEY", "model": "nova-3", "smart_format": false},
  "transcript": {"trailing_space": false},
  "clipboard_cmd": "wl-copy --trim-newline",
  "log": {"level": "DEBUG"},
  "metrics": {"listen": "127.0.0.1:9464"},
}`, Default())
	require.NoError(t, err)
	require.Empty(t, warnings)

	require.Equal(t, []string{"deepgram", "google"}, cfg.Recognition.Backends)
	require.Equal(t, "de-DE", cfg.Recognition.Language)
	require.False(t, cfg.Recognition.Continuous)
	require.False(t, cfg.Recognition.InterimResults)
	require.Equal(t, "Elgato", cfg.Audio.Input)
	require.Equal(t, "/tmp/key.json", cfg.Google.CredentialsFile)
	require.Equal(t, "latest_long", cfg.Google.Model)
	require.False(t, cfg.Google.AutomaticPunctuation)
	require.Equal(t, "DG_KEY", cfg.Deepgram.APIKeyEnv)
	require.Equal(t, "nova-3", cfg.Deepgram.Model)
	require.False(t, cfg.Deepgram.SmartFormat)
	require.False(t, cfg.Transcript.TrailingSpace)
	require.Equal(t, []string{"wl-copy", "--trim-newline"}, cfg.Clipboard.Argv)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "127.0.0.1:9464", cfg.Metrics.Listen)
}

func TestParseJSONCRejectsMultipleTopLevelValues(t *testing.T) {
	_, _, err := Parse(`{"log":{"level":"info"}}{"log":{"level":"warn"}}`, Default())
	require.Error(t, err)
	require.True(
		t,
		strings.Contains(err.Error(), "multiple JSON values") || strings.Contains(err.Error(), "unknown field"),
		"unexpected error: %v",
		err,
	)
}

func TestParseJSONCTypeErrorIncludesLocation(t *testing.T) {
	_, _, err := Parse(`{
  "recognition": {"language": 123}
}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 2")
	require.Contains(t, err.Error(), "column")
}

func TestParseJSONCUnknownFieldIncludesLocation(t *testing.T) {
	_, _, err := Parse(`{
  "recognition": {
    "langauge": "en-US"
  }
}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown field")
	require.Contains(t, err.Error(), "line 3")
}

func TestParseJSONCDeduplicatesBackendsWithWarning(t *testing.T) {
	cfg, warnings, err := Parse(`{"recognition": {"backends": ["Google", "google", "deepgram"]}}`, Default())
	require.NoError(t, err)
	require.Equal(t, []string{"google", "deepgram"}, cfg.Recognition.Backends)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, "more than once")
}

func TestParseDoesNotMutateBase(t *testing.T) {
	base := Default()
	_, _, err := Parse(`{"recognition": {"backends": ["script"]}, "script": {"path": "/tmp/demo.yaml"}}`, base)
	require.NoError(t, err)
	require.Equal(t, Default(), base)
}

func TestParseEmptyContentReturnsBase(t *testing.T) {
	cfg, warnings, err := Parse("  \n ", Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, Default(), cfg)
}
