package security

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Request body limits.
const (
	DefaultMaxBodySize  = 64 << 10
	DefaultMaxJSONDepth = 8
)

// Body validation errors.
var (
	ErrBodyTooLarge = errors.New("request body exceeds maximum size")
	ErrJSONTooDeep  = errors.New("JSON nesting exceeds maximum depth")
	ErrInvalidJSON  = errors.New("invalid JSON")
)

// ValidateBody checks a tool argument document before it is decoded. Tool
// arguments are flat objects, so both limits are tight. Non-positive
// limits select the defaults.
func ValidateBody(data []byte, maxSize, maxDepth int) error {
	if maxSize <= 0 {
		maxSize = DefaultMaxBodySize
	}
	if len(data) > maxSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrBodyTooLarge, len(data), maxSize)
	}
	return validateDepth(data, maxDepth)
}

func validateDepth(data []byte, limit int) error {
	if limit <= 0 {
		limit = DefaultMaxJSONDepth
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	depth := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidJSON, err)
		}
		switch tok {
		case json.Delim('{'), json.Delim('['):
			depth++
			if depth > limit {
				return fmt.Errorf("%w: depth %d (max %d)", ErrJSONTooDeep, depth, limit)
			}
		case json.Delim('}'), json.Delim(']'):
			depth--
		}
	}
}
