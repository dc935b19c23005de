package config

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// Endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// YieldAPI is the base URL of the HTTP yield feed. Empty selects the static table.
	YieldAPI string
	// WebPort is the port the HTTP API listens on.
	WebPort uint16
)

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	YieldAPI = getEnvOrDefault("YIELD_API", "")

	port, err := getEnvAsUint64OrDefault("WEB_PORT", 8080)
	if err != nil {
		return err
	}
	if port == 0 || port > 65535 {
		return fmt.Errorf("WEB_PORT must be between 1 and 65535, got %d", port)
	}
	WebPort = uint16(port)

	log.Debug().
		Str("YieldAPI", YieldAPI).
		Uint16("WebPort", WebPort).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}
