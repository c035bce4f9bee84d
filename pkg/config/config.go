// Package config loads a multiplex's topology from a Jsonnet file, the way
// buildbarn-bb-storage loads all of its own service configuration.
//
// Unlike the teacher, the evaluated Jsonnet is unmarshalled with
// encoding/json into a plain Go struct rather than protojson into a
// generated Protobuf message: this repository has no wire/RPC surface of
// its own that would otherwise need a .proto-defined schema, so carrying
// one here would mean generating and maintaining message types with no
// second consumer. See DESIGN.md for the full justification.
package config

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/go-jsonnet"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/zerkella/blobmux/pkg/util"
)

// BackendKind names which adapter a BackendConfiguration instantiates.
type BackendKind string

// Supported backend kinds.
const (
	BackendKindMemory BackendKind = "memory"
	BackendKindS3     BackendKind = "s3"
	BackendKindGCS    BackendKind = "gcs"
)

// BackendConfiguration describes one entry in a multiplex's backend list.
type BackendConfiguration struct {
	ID   int32       `json:"id"`
	Kind BackendKind `json:"kind"`

	// S3 fields, populated when Kind == BackendKindS3.
	S3Region     string `json:"s3Region,omitempty"`
	S3Bucket     string `json:"s3Bucket,omitempty"`
	S3KeyPrefix  string `json:"s3KeyPrefix,omitempty"`
	S3EndpointURL string `json:"s3EndpointUrl,omitempty"`

	// GCS fields, populated when Kind == BackendKindGCS.
	GCSBucket    string `json:"gcsBucket,omitempty"`
	GCSKeyPrefix string `json:"gcsKeyPrefix,omitempty"`
	GCSAuthFile  string `json:"gcsAuthFile,omitempty"`
}

// SyncQueueConfiguration describes which Store backs the sync queue.
type SyncQueueConfiguration struct {
	// DataSourceName is a postgres connection string for lib/pq. Empty
	// means use an in-process MemoryStore instead.
	DataSourceName string `json:"dataSourceName,omitempty"`
}

// FileConfiguration is the top-level shape a multiplex's Jsonnet file
// evaluates to.
type FileConfiguration struct {
	MultiplexID int32                  `json:"multiplexId"`
	Backends    []BackendConfiguration `json:"backends"`
	SyncQueue   SyncQueueConfiguration `json:"syncQueue"`

	// DeadlineSeconds overrides mux.BackendDeadline when nonzero.
	DeadlineSeconds int64 `json:"deadlineSeconds,omitempty"`

	// SampleRate is the fraction (0..1) of requests whose stragglers'
	// results are read after a winner is found (see telemetry.Sampler).
	SampleRate float64 `json:"sampleRate"`

	ListenAddress string `json:"listenAddress"`
}

// Deadline returns the configured per-backend deadline, or d if none was
// set.
func (c FileConfiguration) Deadline(d time.Duration) time.Duration {
	if c.DeadlineSeconds <= 0 {
		return d
	}
	return time.Duration(c.DeadlineSeconds) * time.Second
}

// LoadFromFile reads a Jsonnet file (or stdin, for path "-"), evaluates it
// with every environment variable of the current process exposed through
// std.extVar(), and unmarshals the result into a FileConfiguration.
func LoadFromFile(path string) (*FileConfiguration, error) {
	var jsonnetInput []byte
	var err error
	if path == "-" {
		jsonnetInput, err = io.ReadAll(os.Stdin)
	} else {
		jsonnetInput, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, util.StatusWrapf(err, "read configuration file")
	}

	vm := jsonnet.MakeVM()
	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			return nil, status.Errorf(codes.InvalidArgument, "invalid environment variable: %#v", env)
		}
		vm.ExtVar(parts[0], parts[1])
	}

	jsonnetOutput, err := vm.EvaluateSnippet(path, string(jsonnetInput))
	if err != nil {
		return nil, util.StatusWrapf(err, "evaluate configuration")
	}

	var cfg FileConfiguration
	if err := json.Unmarshal([]byte(jsonnetOutput), &cfg); err != nil {
		return nil, util.StatusWrap(err, "unmarshal configuration")
	}
	return &cfg, nil
}
