// Package config defines the JSON pipeline description accepted by the
// xmlstream binary and its validation.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Pipeline is the top-level run description. Every field can also be set
// from the command line; flags win over the file.
type Pipeline struct {
	Job    string `json:"job"`
	Source Source `json:"source"`
	Parser Parser `json:"parser"`
	Sink   Sink   `json:"sink"`
}

type Source struct {
	// Kind: "file" or "stdin".
	Kind string      `json:"kind"`
	File *FileSource `json:"file,omitempty"`
}

type FileSource struct {
	Path string `json:"path"`
}

type Parser struct {
	// Mode: "generic" (any record tag) or "nmap" (host records).
	Mode      string `json:"mode"`
	RecordTag string `json:"record_tag"`
	Lenient   bool   `json:"lenient"`
}

type Sink struct {
	// Kind: "jsonl", "mongo-jsonl", "mysql-sql", "sqlite", "postgres",
	// "mssql".
	Kind   string    `json:"kind"`
	File   *FileSink `json:"file,omitempty"`
	Pretty bool      `json:"pretty"`
	DB     *DBSink   `json:"db,omitempty"`
}

type FileSink struct {
	Path string `json:"path"`
}

type DBSink struct {
	DSN       string `json:"dsn"`
	Table     string `json:"table"`
	BatchSize int    `json:"batch_size"`
}

// Load reads and decodes a pipeline config file.
func Load(path string) (Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode decodes a pipeline config from r. Unknown fields are rejected so
// typos surface at load time instead of silently using defaults.
func Decode(r io.Reader) (Pipeline, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var p Pipeline
	if err := dec.Decode(&p); err != nil {
		return Pipeline{}, fmt.Errorf("decode config: %w", err)
	}
	return p, nil
}
