package config

import (
	"os"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const multiplexConf = `{
	multiplexId: 1,
	backends: [
		{ id: 0, kind: 'memory' },
		{ id: 1, kind: 's3', s3Region: 'us-east-1', s3Bucket: 'my-bucket', s3KeyPrefix: 'blobs/' },
		{ id: 2, kind: 'gcs', gcsBucket: 'my-bucket' },
	],
	syncQueue: { dataSourceName: 'postgres://localhost/blobmux' },
	deadlineSeconds: 30,
	sampleRate: 0.01,
	listenAddress: ':8980',
}`

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	confPath := path.Join(dir, "multiplex.jsonnet")
	require.NoError(t, os.WriteFile(confPath, []byte(multiplexConf), 0o644))

	cfg, err := LoadFromFile(confPath)
	require.NoError(t, err)
	require.Equal(t, int32(1), cfg.MultiplexID)
	require.Len(t, cfg.Backends, 3)
	require.Equal(t, BackendKindMemory, cfg.Backends[0].Kind)
	require.Equal(t, BackendKindS3, cfg.Backends[1].Kind)
	require.Equal(t, "my-bucket", cfg.Backends[1].S3Bucket)
	require.Equal(t, BackendKindGCS, cfg.Backends[2].Kind)
	require.Equal(t, "postgres://localhost/blobmux", cfg.SyncQueue.DataSourceName)
	require.Equal(t, ":8980", cfg.ListenAddress)
	require.Equal(t, 30*time.Second, cfg.Deadline(600*time.Second))
}

func TestFileConfigurationDeadlineDefault(t *testing.T) {
	var cfg FileConfiguration
	require.Equal(t, 600*time.Second, cfg.Deadline(600*time.Second))
}
