package brand

import (
	"os"
	"testing"
)

func TestGet(t *testing.T) {
	b := Get()
	if b.Name == "" {
		t.Error("Brand name should not be empty")
	}
	if Version == "" {
		t.Error("Global Version should be initialized (to dev default)")
	}
	if Name == "" {
		t.Error("Exported Name should be initialized from brand.json")
	}
	if LowerName == "" {
		t.Error("Exported LowerName should be initialized from brand.json")
	}
}

func TestUserAgent(t *testing.T) {
	ua := UserAgent("1.2.3")
	if ua != Name+"/1.2.3" {
		t.Errorf("unexpected user agent: %s", ua)
	}
	if UserAgent("") != Name+"/dev" {
		t.Errorf("empty version should default to dev")
	}
}

func TestGetStateDir_EnvOverride(t *testing.T) {
	t.Setenv(ConfigEnvPrefix+"_STATE_DIR", "/tmp/custom-state")
	if got := GetStateDir(); got != "/tmp/custom-state" {
		t.Errorf("expected env override, got %s", got)
	}
}

func TestGetStateDir_PrefixFallback(t *testing.T) {
	os.Unsetenv(ConfigEnvPrefix + "_STATE_DIR")
	t.Setenv(ConfigEnvPrefix+"_PREFIX", "/tmp/prefix")
	if got := GetStateDir(); got != "/tmp/prefix/state" {
		t.Errorf("expected prefix fallback, got %s", got)
	}
}
