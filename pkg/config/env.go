package config

import (
	"bufio"
	"os"
	"strings"
)

// LoadEnv loads environment variables from a .env file if it exists.
func LoadEnv(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		// .env file is optional
		return nil
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Only set if not already set in environment
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}

	return scanner.Err()
}

// GetRPCEndpoints returns the configured RPC endpoints, or nil.
func GetRPCEndpoints() []string {
	envEndpoints := os.Getenv("RPC_ENDPOINTS")
	if envEndpoints == "" {
		return nil
	}

	endpoints := strings.Split(envEndpoints, ",")
	result := make([]string, 0, len(endpoints))
	for _, endpoint := range endpoints {
		trimmed := strings.TrimSpace(endpoint)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// GetWSEndpoint returns the pubsub websocket endpoint, or empty.
func GetWSEndpoint() string {
	return strings.TrimSpace(os.Getenv("WS_ENDPOINT"))
}

// GetJitoEndpoint returns the Jito block-engine endpoint, or empty.
func GetJitoEndpoint() string {
	return strings.TrimSpace(os.Getenv("JITO_RPC"))
}

// GetKeypairPath returns the fee-payer keypair file path, or empty.
func GetKeypairPath() string {
	return strings.TrimSpace(os.Getenv("KEYPAIR_PATH"))
}

// GetProgramID returns an override for the StableSwap program id, or empty
// to use the default.
func GetProgramID() string {
	return strings.TrimSpace(os.Getenv("STABLESWAP_PROGRAM_ID"))
}
