package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

func decodeJSONC(content string) (filePayload, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return filePayload{}, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload filePayload
	if err := decoder.Decode(&payload); err != nil {
		return filePayload{}, locateJSONError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return filePayload{}, locateJSONError(normalized, err)
	}
	return payload, nil
}

// normalizeJSONC blanks comments and trailing commas in place, so byte
// offsets reported by encoding/json still point into the user's file.
func normalizeJSONC(content string) (string, error) {
	buf := []byte(content)
	if err := blankComments(buf); err != nil {
		return "", err
	}
	blankTrailingCommas(buf)
	return string(buf), nil
}

type scanState int

const (
	scanCode scanState = iota
	scanString
	scanLineComment
	scanBlockComment
)

func blankComments(buf []byte) error {
	state := scanCode
	for i := 0; i < len(buf); i++ {
		ch := buf[i]
		switch state {
		case scanString:
			switch ch {
			case '\\':
				i++
			case '"':
				state = scanCode
			}
		case scanLineComment:
			if ch == '\n' || ch == '\r' {
				state = scanCode
				continue
			}
			buf[i] = ' '
		case scanBlockComment:
			if ch == '*' && i+1 < len(buf) && buf[i+1] == '/' {
				buf[i], buf[i+1] = ' ', ' '
				i++
				state = scanCode
				continue
			}
			if ch != '\n' && ch != '\r' {
				buf[i] = ' '
			}
		default:
			if ch == '"' {
				state = scanString
				continue
			}
			if ch != '/' || i+1 >= len(buf) {
				continue
			}
			switch buf[i+1] {
			case '/':
				state = scanLineComment
			case '*':
				state = scanBlockComment
			default:
				continue
			}
			buf[i], buf[i+1] = ' ', ' '
			i++
		}
	}

	if state == scanBlockComment {
		return errors.New("unterminated block comment in JSONC")
	}
	return nil
}

func blankTrailingCommas(buf []byte) {
	inString := false
	comma := -1
	for i := 0; i < len(buf); i++ {
		ch := buf[i]
		if inString {
			switch ch {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}

		switch ch {
		case ' ', '\n', '\r', '\t':
		case ',':
			comma = i
		case '}', ']':
			if comma >= 0 {
				buf[comma] = ' '
			}
			comma = -1
		case '"':
			inString = true
			comma = -1
		default:
			comma = -1
		}
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return errors.New("multiple JSON values are not allowed")
	}
	return err
}

// locateJSONError prefixes decoder errors with a line and column when one can
// be derived.
func locateJSONError(content string, err error) error {
	offset := int64(-1)

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	default:
		// encoding/json reports unknown fields without an offset.
		if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
			if idx := strings.Index(content, field); idx >= 0 {
				offset = int64(idx + 1)
			}
		}
	}

	if offset < 0 {
		return err
	}
	line, col := offsetToLineCol(content, offset)
	return fmt.Errorf("line %d column %d: %w", line, col, err)
}

// offsetToLineCol converts a 1-based byte offset into a 1-based line and column.
func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}
	limit := min(int(offset), len(content))
	if limit == 0 {
		return 1, 1
	}

	prefix := content[:limit-1]
	line := 1 + strings.Count(prefix, "\n")
	col := len(prefix) - (strings.LastIndexByte(prefix, '\n') + 1) + 1
	return line, col
}
