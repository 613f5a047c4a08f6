package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/maps"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/yacobolo/assetpipe"
)

const envPrefix = "ASSETPIPE_"

var k = koanf.New(".")

// loadConfig loads configuration with precedence: flags > env > file > defaults.
// It must be called after cobra parses flags (in PreRunE or RunE).
func loadConfig(cmd *cobra.Command) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := loadDotenv(envFile); err != nil {
		return err
	}

	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = ".assetpipe.yaml"
	}
	if err := loadConfigFromPath(configPath); err != nil {
		return err
	}

	// Only flags the user actually set, so flag defaults never shadow the
	// config file.
	if err := k.Load(posflag.ProviderWithFlag(cmd.Flags(), ".", k, func(f *pflag.Flag) (string, interface{}) {
		if !f.Changed {
			return "", nil
		}
		return f.Name, posflag.FlagVal(cmd.Flags(), f)
	}), nil); err != nil {
		return fmt.Errorf("loading command flags: %w", err)
	}

	return nil
}

// loadDotenv exports the variables of a .env file. Variables already set
// in the environment win. A missing file is not an error.
func loadDotenv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// loadConfigFromPath loads configuration from a file and environment variables.
// This is separated from loadConfig to allow testing without a cobra command.
func loadConfigFromPath(configPath string) error {
	// 1. Config file (lowest precedence among providers)
	if _, err := os.Stat(configPath); err == nil {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return fmt.Errorf("loading config file %s: %w", configPath, err)
		}
	}

	// 2. Environment variables (ASSETPIPE_* prefix)
	names := envKeys()
	if err := k.Load(env.ProviderWithValue(envPrefix, ".", func(s, v string) (string, interface{}) {
		key := envKey(names, s)
		if key == "style.vendors" {
			return key, splitList(v)
		}
		return key, v
	}), nil); err != nil {
		return fmt.Errorf("loading environment variables: %w", err)
	}

	return nil
}

// envKey maps a variable name to its config key:
//
//	ASSETPIPE_SERVER_PORT        -> server.port
//	ASSETPIPE_SERVER_LIVE_RELOAD -> server.live-reload
//	ASSETPIPE_PATHS_JS_SOURCE    -> paths.js.source
//
// Names that match no known key fall back to replacing every _ with a dot.
func envKey(names map[string]string, s string) string {
	if key, ok := names[s]; ok {
		return key
	}
	return strings.ReplaceAll(
		strings.ToLower(strings.TrimPrefix(s, envPrefix)),
		"_", ".",
	)
}

// envKeys indexes every key of the default config file by its variable name.
func envKeys() map[string]string {
	names := make(map[string]string)
	m, err := yaml.Parser().Unmarshal([]byte(defaultConfig))
	if err != nil {
		return names
	}
	flat, _ := maps.Flatten(m, nil, ".")
	for key := range flat {
		name := strings.NewReplacer(".", "_", "-", "_").Replace(strings.ToUpper(key))
		names[envPrefix+name] = key
	}
	return names
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
}

// buildConfig constructs the library's Config struct from koanf state.
func buildConfig() assetpipe.Config {
	d := assetpipe.DefaultConfig()
	config := d

	config.Dir = getStringWithFallback("dir", "dir", "")
	config.SourceRoot = getStringWithFallback("source-root", "source-root", d.SourceRoot)
	config.OutputRoot = getStringWithFallback("output-root", "output-root", d.OutputRoot)
	config.FontFacePartial = getStringWithFallback("font-face-partial", "font-face-partial", d.FontFacePartial)
	config.Concurrency = getIntWithFallback("concurrency", "concurrency", d.Concurrency)

	classes := []struct {
		name string
		dst  *assetpipe.AssetPaths
	}{
		{"js", &config.Paths.JS},
		{"css", &config.Paths.CSS},
		{"html", &config.Paths.HTML},
		{"img", &config.Paths.Img},
		{"webp", &config.Paths.WebP},
		{"svg", &config.Paths.SVG},
		{"fonts", &config.Paths.Fonts},
		{"libs", &config.Paths.Libs},
	}
	for _, c := range classes {
		prefix := "paths." + c.name + "."
		c.dst.Source = getStringWithFallback(prefix+"source", prefix+"source", c.dst.Source)
		c.dst.Watch = getStringWithFallback(prefix+"watch", prefix+"watch", c.dst.Watch)
		c.dst.Dest = getStringWithFallback(prefix+"dest", prefix+"dest", c.dst.Dest)
	}

	config.Server.Host = getStringWithFallback("host", "server.host", d.Server.Host)
	config.Server.Port = getIntWithFallback("port", "server.port", d.Server.Port)
	config.Server.LiveReload = getBoolWithFallback("live-reload", "server.live-reload", d.Server.LiveReload)

	config.Images.WebPQuality = getIntWithFallback("webp-quality", "images.webp-quality", d.Images.WebPQuality)
	config.Images.JPEGQuality = getIntWithFallback("jpeg-quality", "images.jpeg-quality", d.Images.JPEGQuality)

	config.Style.SourceMaps = getBoolWithFallback("style.source-maps", "style.source-maps", d.Style.SourceMaps)
	config.Style.SassBinary = getStringWithFallback("sass-binary", "style.sass-binary", d.Style.SassBinary)
	config.Style.Minify = getStringWithFallback("style.minify", "style.minify", d.Style.Minify)
	if vendors := k.Strings("style.vendors"); len(vendors) > 0 {
		config.Style.Vendors = vendors
	}

	config.Scripts.Target = getStringWithFallback("target", "scripts.target", d.Scripts.Target)
	config.Scripts.SourceMaps = getBoolWithFallback("scripts.source-maps", "scripts.source-maps", d.Scripts.SourceMaps)
	config.Scripts.Bundle = getStringWithFallback("scripts.bundle", "scripts.bundle", d.Scripts.Bundle)

	return config
}

// getStringWithFallback checks the flag key first, then the config file key, then returns the default.
func getStringWithFallback(flagKey, configKey, defaultVal string) string {
	if v := k.String(flagKey); v != "" {
		return v
	}
	if v := k.String(configKey); v != "" {
		return v
	}
	return defaultVal
}

// getBoolWithFallback checks the flag key first, then the config file key, then returns the default.
func getBoolWithFallback(flagKey, configKey string, defaultVal bool) bool {
	if k.Exists(flagKey) {
		return k.Bool(flagKey)
	}
	if k.Exists(configKey) {
		return k.Bool(configKey)
	}
	return defaultVal
}

// getIntWithFallback checks the flag key first, then the config file key, then returns the default.
func getIntWithFallback(flagKey, configKey string, defaultVal int) int {
	if k.Exists(flagKey) {
		return k.Int(flagKey)
	}
	if k.Exists(configKey) {
		return k.Int(configKey)
	}
	return defaultVal
}
