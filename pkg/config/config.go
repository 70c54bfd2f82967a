// Package config provides YAML configuration loading with environment variable override.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML configuration file into the given struct.
// Environment references in the file (${VAR}) are expanded before parsing,
// and fields carrying an `env` struct tag are overridden from the process
// environment afterwards.
func Load(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), out); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	applyEnvOverrides(out)

	return nil
}

// LoadOrDefault tries to load config from path. A missing file is not an
// error: the struct keeps whatever defaults it was constructed with, and
// env overrides are still applied.
func LoadOrDefault(path string, out any) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		applyEnvOverrides(out)
		return nil
	}
	return Load(path, out)
}

// applyEnvOverrides sets struct fields from environment variables using the
// `env` struct tag. Supported kinds: string, []string (comma-separated),
// int/int64 (time.Duration fields accept Go duration syntax), float64, bool.
func applyEnvOverrides(v any) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return
	}

	t := val.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := val.Field(i)

		if fieldVal.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if fieldVal.CanAddr() {
				applyEnvOverrides(fieldVal.Addr().Interface())
			}
			continue
		}

		envTag := field.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envVal, ok := os.LookupEnv(envTag)
		if !ok || !fieldVal.CanSet() {
			continue
		}

		setField(fieldVal, envVal)
	}
}

func setField(fieldVal reflect.Value, envVal string) {
	switch fieldVal.Kind() {
	case reflect.String:
		fieldVal.SetString(envVal)
	case reflect.Slice:
		if fieldVal.Type().Elem().Kind() != reflect.String {
			return
		}
		parts := strings.Split(envVal, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		fieldVal.Set(reflect.ValueOf(out))
	case reflect.Int, reflect.Int64:
		if fieldVal.Type() == reflect.TypeOf(time.Duration(0)) {
			if d, err := time.ParseDuration(envVal); err == nil {
				fieldVal.SetInt(int64(d))
			}
			return
		}
		var n int64
		if _, err := fmt.Sscanf(envVal, "%d", &n); err == nil {
			fieldVal.SetInt(n)
		}
	case reflect.Float64:
		var f float64
		if _, err := fmt.Sscanf(envVal, "%f", &f); err == nil {
			fieldVal.SetFloat(f)
		}
	case reflect.Bool:
		fieldVal.SetBool(strings.EqualFold(envVal, "true") || envVal == "1")
	}
}
