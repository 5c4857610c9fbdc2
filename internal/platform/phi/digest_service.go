package phi

import (
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog"
)

// NewDigesterFromConfig builds the application Digester from configuration
// values.
//
// If lookupKeyHex is empty the lookup index is disabled and a warning is
// logged; patient resolution then falls back to verifying every stored digest.
// A non-empty key must be a 64-character hex string. An invalid key is an
// error so the application refuses to start misconfigured.
func NewDigesterFromConfig(cost int, lookupKeyHex string, logger zerolog.Logger) (*Digester, error) {
	if lookupKeyHex == "" {
		logger.Warn().Msg("identifier lookup index disabled: IDENTIFIER_LOOKUP_KEY is not set, patient resolution is O(n)")
		return NewDigester(cost, nil)
	}

	keyBytes, err := hex.DecodeString(lookupKeyHex)
	if err != nil {
		return nil, fmt.Errorf("IDENTIFIER_LOOKUP_KEY is not valid hex: %w", err)
	}
	if len(keyBytes) != 32 {
		return nil, fmt.Errorf("IDENTIFIER_LOOKUP_KEY must be 32 bytes (64 hex chars), got %d bytes", len(keyBytes))
	}

	d, err := NewDigester(cost, keyBytes)
	if err != nil {
		return nil, err
	}
	logger.Info().Msg("identifier lookup index enabled")
	return d, nil
}
