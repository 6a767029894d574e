package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
)

// keySpec binds one flat config key to its env variable and its field in
// Config. The same table drives file loading, env overrides and the config
// CLI.
type keySpec struct {
	key     string
	env     string
	secret  bool
	apply   func(c *Config, value string) error
	extract func(c *Config) string
}

var keySpecs = []keySpec{
	{
		key: "server.port", env: "VALET_PORT",
		apply: func(c *Config, v string) error {
			port, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("server.port: %w", err)
			}
			c.Server.Port = port
			return nil
		},
		extract: func(c *Config) string { return strconv.Itoa(c.Server.Port) },
	},
	{
		key: "server.api_token", env: "VALET_API_TOKEN", secret: true,
		apply:   func(c *Config, v string) error { c.Server.APIToken = v; return nil },
		extract: func(c *Config) string { return c.Server.APIToken },
	},
	{
		key: "router.timeout", env: "VALET_ROUTER_TIMEOUT",
		apply:   func(c *Config, v string) error { c.Router.Timeout = v; return nil },
		extract: func(c *Config) string { return c.Router.Timeout },
	},
	{
		key: "primary.kind", env: "VALET_PRIMARY_KIND",
		apply:   func(c *Config, v string) error { c.Primary.Kind = v; return nil },
		extract: func(c *Config) string { return c.Primary.Kind },
	},
	{
		key: "primary.base_url", env: "VALET_PRIMARY_BASE_URL",
		apply:   func(c *Config, v string) error { c.Primary.BaseURL = v; return nil },
		extract: func(c *Config) string { return c.Primary.BaseURL },
	},
	{
		key: "primary.model", env: "VALET_PRIMARY_MODEL",
		apply:   func(c *Config, v string) error { c.Primary.Model = v; return nil },
		extract: func(c *Config) string { return c.Primary.Model },
	},
	{
		key: "primary.api_key", env: "VALET_PRIMARY_API_KEY", secret: true,
		apply:   func(c *Config, v string) error { c.Primary.APIKey = v; return nil },
		extract: func(c *Config) string { return c.Primary.APIKey },
	},
	{
		key: "fallback.kind", env: "VALET_FALLBACK_KIND",
		apply:   func(c *Config, v string) error { c.Fallback.Kind = v; return nil },
		extract: func(c *Config) string { return c.Fallback.Kind },
	},
	{
		key: "fallback.base_url", env: "VALET_FALLBACK_BASE_URL",
		apply:   func(c *Config, v string) error { c.Fallback.BaseURL = v; return nil },
		extract: func(c *Config) string { return c.Fallback.BaseURL },
	},
	{
		key: "fallback.model", env: "VALET_FALLBACK_MODEL",
		apply:   func(c *Config, v string) error { c.Fallback.Model = v; return nil },
		extract: func(c *Config) string { return c.Fallback.Model },
	},
	{
		key: "fallback.api_key", env: "VALET_FALLBACK_API_KEY", secret: true,
		apply:   func(c *Config, v string) error { c.Fallback.APIKey = v; return nil },
		extract: func(c *Config) string { return c.Fallback.APIKey },
	},
	{
		key: "storage.data_dir", env: "VALET_DATA_DIR",
		apply:   func(c *Config, v string) error { c.Storage.DataDir = v; return nil },
		extract: func(c *Config) string { return c.Storage.DataDir },
	},
	{
		key: "prompts.system", env: "VALET_SYSTEM_PROMPT",
		apply:   func(c *Config, v string) error { c.Prompts.SystemPromptPath = v; return nil },
		extract: func(c *Config) string { return c.Prompts.SystemPromptPath },
	},
	{
		key: "prompts.persona", env: "VALET_PERSONA_PROMPT",
		apply:   func(c *Config, v string) error { c.Prompts.PersonaPromptPath = v; return nil },
		extract: func(c *Config) string { return c.Prompts.PersonaPromptPath },
	},
	{
		key: "learning.context_limit", env: "VALET_CONTEXT_LIMIT",
		apply: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("learning.context_limit: %w", err)
			}
			c.Learning.ContextLimit = n
			return nil
		},
		extract: func(c *Config) string { return strconv.Itoa(c.Learning.ContextLimit) },
	},
	{
		key: "knowledge.enabled", env: "VALET_KNOWLEDGE_ENABLED",
		apply: func(c *Config, v string) error {
			enabled, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("knowledge.enabled: %w", err)
			}
			c.Knowledge.Enabled = enabled
			return nil
		},
		extract: func(c *Config) string { return strconv.FormatBool(c.Knowledge.Enabled) },
	},
	{
		key: "knowledge.embed_base_url", env: "VALET_EMBED_BASE_URL",
		apply:   func(c *Config, v string) error { c.Knowledge.EmbedBaseURL = v; return nil },
		extract: func(c *Config) string { return c.Knowledge.EmbedBaseURL },
	},
	{
		key: "knowledge.embed_model", env: "VALET_EMBED_MODEL",
		apply:   func(c *Config, v string) error { c.Knowledge.EmbedModel = v; return nil },
		extract: func(c *Config) string { return c.Knowledge.EmbedModel },
	},
	{
		key: "smarthome.base_url", env: "VALET_SMARTHOME_URL",
		apply:   func(c *Config, v string) error { c.SmartHome.BaseURL = v; return nil },
		extract: func(c *Config) string { return c.SmartHome.BaseURL },
	},
	{
		key: "log.level", env: "VALET_LOG_LEVEL",
		apply:   func(c *Config, v string) error { c.Log.Level = v; return nil },
		extract: func(c *Config) string { return c.Log.Level },
	},
}

func applyBackend(c *Config, backend Backend) {
	for _, spec := range keySpecs {
		if v, ok := backend.Get(spec.key); ok && v != "" {
			// File values are best effort; bad entries surface in validate.
			_ = spec.apply(c, v)
		}
	}
}

func applyEnvOverrides(c *Config) {
	for _, spec := range keySpecs {
		if v := os.Getenv(spec.env); v != "" {
			_ = spec.apply(c, v)
		}
	}
}

// SetKey writes one key to the config file after checking it parses.
func SetKey(key, value string) error {
	spec, ok := lookupSpec(key)
	if !ok {
		return fmt.Errorf("unknown config key %q", key)
	}
	probe := Defaults()
	if err := spec.apply(&probe, value); err != nil {
		return err
	}

	backend, err := openOrCreateFileBackend()
	if err != nil {
		return err
	}
	return backend.Set(key, value)
}

// ShowAll renders the effective configuration as key/value pairs, masking
// secrets.
func ShowAll(c *Config) map[string]string {
	out := make(map[string]string, len(keySpecs))
	for _, spec := range keySpecs {
		v := spec.extract(c)
		if spec.secret && v != "" {
			v = "********"
		}
		out[spec.key] = v
	}
	return out
}

// Keys lists all known config keys, sorted.
func Keys() []string {
	keys := make([]string, 0, len(keySpecs))
	for _, spec := range keySpecs {
		keys = append(keys, spec.key)
	}
	sort.Strings(keys)
	return keys
}

func lookupSpec(key string) (keySpec, bool) {
	for _, spec := range keySpecs {
		if spec.key == key {
			return spec, true
		}
	}
	return keySpec{}, false
}
