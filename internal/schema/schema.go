// Package schema loads the YAML data-format descriptors and driver config
// files external to the core (spec §6): schemas map a data ID to its name
// and field layout (supported periods come from the driver's DataDesc, not
// the schema); config files enumerate which drivers to register at startup.
package schema

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ehrlich-b/hound/internal/interfaces"
)

// FieldType enumerates the typed layout of one field within a record's
// payload bytes.
type FieldType string

const (
	TypeFloat  FieldType = "float"
	TypeDouble FieldType = "double"
	TypeInt8   FieldType = "int8"
	TypeInt16  FieldType = "int16"
	TypeInt32  FieldType = "int32"
	TypeInt64  FieldType = "int64"
	TypeUint8  FieldType = "uint8"
	TypeUint16 FieldType = "uint16"
	TypeUint32 FieldType = "uint32"
	TypeUint64 FieldType = "uint64"
	TypeBool   FieldType = "bool"
	TypeBytes  FieldType = "bytes"
)

// Field is one named, offset-free entry of a descriptor's format list; the
// driver computes byte offsets by walking fmt in order.
type Field struct {
	Name string    `yaml:"name"`
	Unit string    `yaml:"unit"`
	Type FieldType `yaml:"type"`
	Size int       `yaml:"size"`
}

// Descriptor is one document of a schema file: a data ID, its name, and
// its field layout.
type Descriptor struct {
	ID   uint32  `yaml:"id"`
	Name string  `yaml:"name"`
	Fmt  []Field `yaml:"fmt"`
}

// Schema is a full schema file: a top-level list of descriptors.
type Schema []Descriptor

// LoadSchema parses the YAML file at filepath.Join(base, file) into a
// Schema. Parsed once at driver registration and retained in memory by the
// caller (spec §6).
func LoadSchema(base, file string) (Schema, error) {
	if file == "" {
		return nil, nil
	}
	path := file
	if base != "" {
		path = filepath.Join(base, file)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s, nil
}

// RecordSize returns the total byte size of one descriptor's format list.
func (d Descriptor) RecordSize() int {
	total := 0
	for _, f := range d.Fmt {
		total += f.Size
	}
	return total
}

// ConfigArg is one typed argument entry in a config file.
type ConfigArg struct {
	Type string `yaml:"type"`
	Val  any    `yaml:"val"`
}

// ConfigEntry is one driver registration request from a config file.
type ConfigEntry struct {
	Name   string      `yaml:"name"`
	Path   string      `yaml:"path"`
	Schema string      `yaml:"schema"`
	Args   []ConfigArg `yaml:"args"`
}

// Config is a full config file: a list of driver registration requests,
// each of which triggers one RegisterDriver call.
type Config []ConfigEntry

// LoadConfig parses a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return c, nil
}

// ArgTypeFromString maps a config file's string type name to an
// interfaces.ArgType, defaulting to ArgBytes for an unrecognized name.
func ArgTypeFromString(s string) interfaces.ArgType {
	switch FieldType(s) {
	case TypeFloat:
		return interfaces.ArgFloat
	case TypeDouble:
		return interfaces.ArgDouble
	case TypeInt8:
		return interfaces.ArgInt8
	case TypeInt16:
		return interfaces.ArgInt16
	case TypeInt32:
		return interfaces.ArgInt32
	case TypeInt64:
		return interfaces.ArgInt64
	case TypeUint8:
		return interfaces.ArgUint8
	case TypeUint16:
		return interfaces.ArgUint16
	case TypeUint32:
		return interfaces.ArgUint32
	case TypeUint64:
		return interfaces.ArgUint64
	default:
		return interfaces.ArgBytes
	}
}
