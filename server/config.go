package server

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors ServeConfig with the serve flag names as keys. Absent
// keys leave the current value alone.
type fileConfig struct {
	Host            *string        `yaml:"host"`
	Port            *int           `yaml:"port"`
	CircuitsDir     *string        `yaml:"circuits-dir"`
	Circuits        []string       `yaml:"circuits"`
	MaxRequestSize  *int64         `yaml:"max-request-size"`
	ReadTimeout     *time.Duration `yaml:"read-timeout"`
	WriteTimeout    *time.Duration `yaml:"write-timeout"`
	IdleTimeout     *time.Duration `yaml:"idle-timeout"`
	ShutdownTimeout *time.Duration `yaml:"shutdown-timeout"`
	MaxClockSkew    *time.Duration `yaml:"max-clock-skew"`
	EnableCORS      *bool          `yaml:"enable-cors"`
	CorsOrigins     []string       `yaml:"cors-origins"`
	EnablePprof     *bool          `yaml:"enable-pprof"`
	LogLevel        *string        `yaml:"log-level"`
	LogFormat       *string        `yaml:"log-format"`
	EnableTLS       *bool          `yaml:"enable-tls"`
	CertFile        *string        `yaml:"cert-file"`
	KeyFile         *string        `yaml:"key-file"`
}

// LoadConfigFile reads a YAML file into cfg. A key is skipped when changed
// reports that its flag was set on the command line.
func LoadConfigFile(path string, cfg *ServeConfig, changed func(flag string) bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	return applyConfig(raw, cfg, changed)
}

func applyConfig(raw []byte, cfg *ServeConfig, changed func(flag string) bool) error {
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if changed == nil {
		changed = func(string) bool { return false }
	}

	set(changed, "host", fc.Host, &cfg.Host)
	set(changed, "port", fc.Port, &cfg.Port)
	set(changed, "circuits-dir", fc.CircuitsDir, &cfg.CircuitsDir)
	if fc.Circuits != nil && !changed("circuits") {
		cfg.Circuits = fc.Circuits
	}
	set(changed, "max-request-size", fc.MaxRequestSize, &cfg.MaxRequestSize)
	set(changed, "read-timeout", fc.ReadTimeout, &cfg.ReadTimeout)
	set(changed, "write-timeout", fc.WriteTimeout, &cfg.WriteTimeout)
	set(changed, "idle-timeout", fc.IdleTimeout, &cfg.IdleTimeout)
	set(changed, "shutdown-timeout", fc.ShutdownTimeout, &cfg.ShutdownTimeout)
	set(changed, "max-clock-skew", fc.MaxClockSkew, &cfg.MaxClockSkew)
	set(changed, "enable-cors", fc.EnableCORS, &cfg.EnableCORS)
	if fc.CorsOrigins != nil && !changed("cors-origins") {
		cfg.CorsOrigins = fc.CorsOrigins
	}
	set(changed, "enable-pprof", fc.EnablePprof, &cfg.EnablePprof)
	set(changed, "log-level", fc.LogLevel, &cfg.LogLevel)
	set(changed, "log-format", fc.LogFormat, &cfg.LogFormat)
	set(changed, "enable-tls", fc.EnableTLS, &cfg.EnableTLS)
	set(changed, "cert-file", fc.CertFile, &cfg.CertFile)
	set(changed, "key-file", fc.KeyFile, &cfg.KeyFile)
	return nil
}

func set[T any](changed func(string) bool, flag string, v *T, dst *T) {
	if v != nil && !changed(flag) {
		*dst = *v
	}
}
