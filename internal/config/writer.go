package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// Render serializes the config to HCL source.
func (c *Config) Render() []byte {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	body.SetAttributeValue("listen", cty.StringVal(c.Listen))
	body.AppendNewline()

	if c.State != nil {
		b := body.AppendNewBlock("state", nil).Body()
		b.SetAttributeValue("path", cty.StringVal(c.State.Path))
		body.AppendNewline()
	}

	if c.Engine != nil && (c.Engine.Endpoint != "" || c.Engine.NativeResourceTypeBehavior) {
		b := body.AppendNewBlock("engine", nil).Body()
		if c.Engine.Endpoint != "" {
			b.SetAttributeValue("endpoint", cty.StringVal(c.Engine.Endpoint))
		}
		if c.Engine.NativeResourceTypeBehavior {
			b.SetAttributeValue("native_resource_type_behavior", cty.BoolVal(true))
		}
		body.AppendNewline()
	}

	if c.Sync != nil && c.Sync.CooldownMS > 0 {
		b := body.AppendNewBlock("sync", nil).Body()
		b.SetAttributeValue("cooldown_ms", cty.NumberIntVal(int64(c.Sync.CooldownMS)))
		body.AppendNewline()
	}

	if c.Logging != nil {
		b := body.AppendNewBlock("logging", nil).Body()
		b.SetAttributeValue("level", cty.StringVal(c.Logging.Level))
		b.SetAttributeValue("format", cty.StringVal(c.Logging.Format))
	}

	if c.API != nil && len(c.API.CORSOrigins) > 0 {
		body.AppendNewline()
		vals := make([]cty.Value, len(c.API.CORSOrigins))
		for i, o := range c.API.CORSOrigins {
			vals[i] = cty.StringVal(o)
		}
		b := body.AppendNewBlock("api", nil).Body()
		b.SetAttributeValue("cors_origins", cty.ListVal(vals))
	}

	return f.Bytes()
}

// WriteDefault writes a default config file if none exists at path.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, Default().Render(), 0o644); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
