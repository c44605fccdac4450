// Package cfgschema validates the gateway's config.json against an
// embedded JSON schema before it is decoded into Config, catching a
// malformed LMN port entry or a missing DB DSN with a pointer into the
// document instead of a field-by-field decode failure.
package cfgschema

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*
var schemaFiles embed.FS

func loadEmbedded(s string) (io.ReadCloser, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	return schemaFiles.Open(u.Path)
}

func init() {
	jsonschema.Loaders["embedFS"] = loadEmbedded
}

// Validate checks r (a config.json document) against the gateway's
// config schema. It reports every violation jsonschema collects, not
// just the first.
func Validate(r io.Reader) error {
	s, err := jsonschema.Compile("embedFS://schemas/config.schema.json")
	if err != nil {
		return fmt.Errorf("cfgschema: compile embedded schema: %w", err)
	}

	var v interface{}
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return fmt.Errorf("cfgschema: decode config as JSON: %w", err)
	}

	if err := s.Validate(v); err != nil {
		return fmt.Errorf("cfgschema: %w", err)
	}
	return nil
}
