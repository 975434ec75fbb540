package testutil

import (
	"os"
	"testing"
)

// LiveEngine returns the base URL of a real rule engine to test against,
// skipping the test when none is configured. Most tests use the in-memory
// engine; set HEADMOD_LIVE_ENGINE to an endpoint to run the integration
// tests against a running engine instead.
func LiveEngine(t *testing.T) string {
	t.Helper()
	url := os.Getenv("HEADMOD_LIVE_ENGINE")
	if url == "" {
		t.Skip("Skipping test: set HEADMOD_LIVE_ENGINE to a rule engine endpoint")
	}
	return url
}
