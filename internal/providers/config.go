package providers

import (
	"os"
	"strings"

	"bookpipe/internal/core"
)

// apiKeyEnvVars maps provider types to the environment variables checked
// for credentials, in order of preference. Alibaba's DashScope key has
// historically lived under several names.
var apiKeyEnvVars = map[string][]string{
	"gemini":   {"GEMINI_API_KEY"},
	"openai":   {"OPENAI_API_KEY"},
	"deepseek": {"DEEPSEEK_API_KEY"},
	"alibaba":  {"DASHSCOPE_API_KEY", "ALIBABA_API_KEY", "ALIBABA_CLOUD_API_KEY"},
}

// ResolveAPIKey looks up the API key for a provider type from the
// environment. A missing key is a configuration error: it must surface
// before any chunk processing starts, not as a mid-book call failure.
func ResolveAPIKey(providerType string) (string, error) {
	envVars, ok := apiKeyEnvVars[providerType]
	if !ok {
		return "", core.NewConfigError("no known API key environment variable for provider type %q", providerType)
	}

	for _, envVar := range envVars {
		if key := os.Getenv(envVar); key != "" {
			return key, nil
		}
	}
	return "", core.NewConfigError(
		"API key not set for provider %q: set %s", providerType, strings.Join(envVars, " or "))
}
