// Package utils holds small helpers shared by the tool registry and the
// server tests.
package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// DecodeJSON decodes data keeping numbers as json.Number, the form the
// schema validator and the cursor codec both expect
func DecodeJSON(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after JSON value")
	}
	return v, nil
}

// CompileSchema compiles a JSON Schema document
func CompileSchema(name string, schema json.RawMessage) (*jsonschema.Schema, error) {
	doc, err := DecodeJSON(schema)
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema %s: %w", name, err)
	}
	url := name + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource %s: %w", name, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return compiled, nil
}

// ValidateAgainstSchema validates a decoded value. The validator's
// multi-line report is folded into one line without the schema URL header.
func ValidateAgainstSchema(value interface{}, schema *jsonschema.Schema) error {
	if schema == nil {
		return nil
	}
	err := schema.Validate(value)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	lines := strings.Split(verr.Error(), "\n")
	var reasons []string
	for _, line := range lines[1:] {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-"))
		if line != "" {
			reasons = append(reasons, line)
		}
	}
	if len(reasons) == 0 {
		return err
	}
	return errors.New(strings.Join(reasons, "; "))
}
