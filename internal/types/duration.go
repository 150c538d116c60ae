package types

import (
	"encoding/json"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quantgate-lab/quantgate/pkg/errors"
)

// Duration is a time.Duration that decodes from human-readable YAML
// and JSON strings like "15s" or "5m". Plain integers are accepted as
// nanoseconds.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err == nil {
		return d.parse(raw)
	}

	var ns int64
	if err := value.Decode(&ns); err == nil {
		*d = Duration(ns)

		return nil
	}

	return errors.Newf(errors.ErrCodeInvalidParameter, "invalid duration: %s", value.Value)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		return d.parse(raw)
	}

	var ns int64
	if err := json.Unmarshal(data, &ns); err == nil {
		*d = Duration(ns)

		return nil
	}

	return errors.Newf(errors.ErrCodeInvalidParameter, "invalid duration: %s", string(data))
}

func (d *Duration) parse(raw string) error {
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidParameter, err, "invalid duration: %s", raw)
	}

	*d = Duration(parsed)

	return nil
}
