package configfile

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Encoder turns a configuration object into file content.
type Encoder func(content any) ([]byte, error)

// EncoderFor picks the encoder matching the config file's extension.
// Unknown extensions fall back to the CommonJS module form.
func EncoderFor(path string) Encoder {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return encodeJSON
	case ".yaml", ".yml":
		return encodeYAML
	case ".mjs":
		return encodeESModule
	default:
		return encodeCommonJS
	}
}

func encodeCommonJS(content any) ([]byte, error) {
	data, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return []byte("module.exports = " + string(data)), nil
}

func encodeESModule(content any) ([]byte, error) {
	data, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return []byte("export default " + string(data)), nil
}

func encodeJSON(content any) ([]byte, error) {
	data, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return append(data, '\n'), nil
}

func encodeYAML(content any) ([]byte, error) {
	data, err := yaml.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// Decode reverses the encoders above into a generic object. It is used by
// the fixture server and by tests to read back what Write produced.
func Decode(path string, data []byte) (map[string]any, error) {
	out := map[string]any{}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return out, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return out, nil
	case ".json":
	default:
		text = strings.TrimPrefix(text, "module.exports =")
		text = strings.TrimPrefix(text, "export default")
		text = strings.TrimSuffix(strings.TrimSpace(text), ";")
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return out, nil
}
