package cfg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validConfig() *Configuration {
	return &Configuration{
		DataDir: "./test-data",
		Host:    "0.0.0.0",
		Port:    3272,
		Worker: WorkerConfiguration{
			Count:       4,
			MaxConns:    512,
			IoRatio:     50,
			BusyMinWait: 100,
		},
		Processor: ProcessorConfiguration{
			InitReadBuffer: 1 << 12,
			MaxReadBuffer:  1 << 16,
			MaxWriteTimes:  1 << 10,
			MaxWriteQueue:  1 << 10,
			MaxWriteBuffer: 1 << 12,
		},
		Admin: AdminConfiguration{
			Enabled: true,
			Address: "127.0.0.1",
			Port:    3273,
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	Config = validConfig()
	require.NoError(t, Validate())
}

func TestValidate_InvalidPort(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	Config = validConfig()
	Config.Port = 70000
	require.Error(t, Validate())
}

func TestValidate_WorkerCountMustBePositive(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	Config = validConfig()
	Config.Worker.Count = 0
	require.Error(t, Validate())
}

func TestValidate_IoRatioRange(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	Config = validConfig()
	Config.Worker.IoRatio = 0
	require.Error(t, Validate())

	Config.Worker.IoRatio = 101
	require.Error(t, Validate())
}

func TestValidate_MaxReadBufferMustDominateInit(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	Config = validConfig()
	Config.Processor.MaxReadBuffer = Config.Processor.InitReadBuffer - 1
	require.Error(t, Validate())
}

func TestValidate_AdminPortOnlyCheckedWhenEnabled(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	Config = validConfig()
	Config.Admin.Enabled = false
	Config.Admin.Port = -1
	require.NoError(t, Validate())
}

func TestDbFilePath_UsesDataDirByDefault(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	Config = validConfig()
	Config.DataDir = "/var/lib/sqlite-server"
	require.Equal(t, "/var/lib/sqlite-server/testdb", DbFilePath("testdb", ""))
}

func TestDbFilePath_HonorsDirOverride(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	Config = validConfig()
	require.Equal(t, "/mnt/data/testdb", DbFilePath("testdb", "/mnt/data"))
}

func TestMetaDbPath(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	Config = validConfig()
	Config.DataDir = "/var/lib/sqlite-server"
	require.Equal(t, "/var/lib/sqlite-server/meta.db", MetaDbPath())
}
