package cfg

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog/log"
)

// WorkerConfiguration controls the I/O worker pool.
type WorkerConfiguration struct {
	Count       int  `toml:"count"`
	MaxConns    int  `toml:"max_conns"`
	IoRatio     int  `toml:"io_ratio"`      // (0,100]; share of a tick spent draining I/O before the intake queue
	BusyMinWait int  `toml:"busy_min_wait"` // ms; longest the worker waits between busy-resume passes while any processor is busy
	PinCPU      bool `toml:"pin_cpu"`       // best-effort CPU affinity per worker goroutine, linux only
}

// ProcessorConfiguration controls per-connection buffer sizing.
type ProcessorConfiguration struct {
	InitReadBuffer int `toml:"init_read_buffer"`
	MaxReadBuffer  int `toml:"max_read_buffer"`
	MaxWriteTimes  int `toml:"max_write_times"`
	MaxWriteQueue  int `toml:"max_write_queue"`
	MaxWriteBuffer int `toml:"max_write_buffer"`
}

// TimeoutConfiguration controls the idle-timeout sweep.
type TimeoutConfiguration struct {
	AuthMS      int `toml:"auth_ms"`
	SleepMS     int `toml:"sleep_ms"`
	SleepInTxMS int `toml:"sleep_in_tx_ms"`
	BusyMS      int `toml:"busy_ms"` // 0 = surface busy immediately, <0 = wait forever
}

// LoggingConfiguration controls logging behavior.
type LoggingConfiguration struct {
	Verbose    bool   `toml:"verbose"`
	Format     string `toml:"format"` // "console" or "json"
	Trace      bool   `toml:"trace"`
	TraceError bool   `toml:"trace_error"`
}

// AdminConfiguration controls the read-only admin HTTP surface.
type AdminConfiguration struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	Port    int    `toml:"port"`
}

// PrometheusConfiguration controls metrics export.
type PrometheusConfiguration struct {
	Enabled bool `toml:"enabled"`
}

// Configuration is the main configuration structure.
type Configuration struct {
	DataDir string `toml:"data_dir"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`

	Worker     WorkerConfiguration     `toml:"worker"`
	Processor  ProcessorConfiguration  `toml:"processor"`
	Timeout    TimeoutConfiguration    `toml:"timeout"`
	Logging    LoggingConfiguration    `toml:"logging"`
	Admin      AdminConfiguration      `toml:"admin"`
	Prometheus PrometheusConfiguration `toml:"prometheus"`
}

// Command line flags
var (
	ConfigPathFlag  = flag.String("config", "config.toml", "Path to configuration file")
	DataDirFlag     = flag.String("D", "", "Data directory (overrides config)")
	WorkerCountFlag = flag.Int("worker-count", 0, "Worker count (overrides config)")
	MaxConnsFlag    = flag.Int("max-conns", 0, "Max connections per worker (overrides config)")
	HostFlag        = flag.String("host", "", "Bind host (overrides config)")
	PortFlag        = flag.Int("port", 0, "Bind port (overrides config)")
	TraceFlag       = flag.Bool("trace", false, "Enable SQL trace logging")
	TraceErrorFlag  = flag.Bool("trace-error", false, "Enable error trace logging")
)

// Default configuration
var Config = &Configuration{
	DataDir: "./data",
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

	Timeout: TimeoutConfiguration{
		AuthMS:      15_000,
		SleepMS:     8 * 3600 * 1000,
		SleepInTxMS: 60_000,
		BusyMS:      50_000,
	},

	Logging: LoggingConfiguration{
		Verbose: false,
		Format:  "console",
	},

	Admin: AdminConfiguration{
		Enabled: true,
		Address: "127.0.0.1",
		Port:    3273,
	},

	Prometheus: PrometheusConfiguration{
		Enabled: true,
	},
}

// Load loads configuration from file and applies CLI overrides
func Load(configPath string) error {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			log.Info().Str("path", configPath).Msg("Loading configuration")
			if _, err := toml.DecodeFile(configPath, Config); err != nil {
				return fmt.Errorf("failed to decode config: %w", err)
			}
		} else {
			log.Warn().Str("path", configPath).Msg("Config file not found, using defaults")
		}
	}

	if *DataDirFlag != "" {
		Config.DataDir = *DataDirFlag
	}
	if *WorkerCountFlag != 0 {
		Config.Worker.Count = *WorkerCountFlag
	}
	if *MaxConnsFlag != 0 {
		Config.Worker.MaxConns = *MaxConnsFlag
	}
	if *HostFlag != "" {
		Config.Host = *HostFlag
	}
	if *PortFlag != 0 {
		Config.Port = *PortFlag
	}
	if *TraceFlag {
		Config.Logging.Trace = true
	}
	if *TraceErrorFlag {
		Config.Logging.TraceError = true
	}

	abs, err := filepath.Abs(Config.DataDir)
	if err != nil {
		return fmt.Errorf("failed to resolve data dir: %w", err)
	}
	Config.DataDir = abs

	if err := os.MkdirAll(Config.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	return nil
}

// Validate checks configuration for errors
func Validate() error {
	if Config.Port < 1 || Config.Port > 65535 {
		return fmt.Errorf("invalid port: %d", Config.Port)
	}

	if Config.Worker.Count < 1 {
		return fmt.Errorf("worker count must be >= 1")
	}

	if Config.Worker.MaxConns < 1 {
		return fmt.Errorf("max conns must be >= 1")
	}

	if Config.Worker.IoRatio <= 0 || Config.Worker.IoRatio > 100 {
		return fmt.Errorf("io ratio must be in (0, 100], got %d", Config.Worker.IoRatio)
	}

	if Config.Worker.BusyMinWait < 0 {
		return fmt.Errorf("busy min wait must be >= 0")
	}

	if Config.Processor.InitReadBuffer < 1 {
		return fmt.Errorf("init read buffer must be >= 1")
	}

	if Config.Processor.MaxReadBuffer < Config.Processor.InitReadBuffer {
		return fmt.Errorf("max read buffer must be >= init read buffer")
	}

	if Config.Admin.Enabled && (Config.Admin.Port < 1 || Config.Admin.Port > 65535) {
		return fmt.Errorf("invalid admin port: %d", Config.Admin.Port)
	}

	return nil
}

// MetaDbPath returns the path to the meta database file.
func MetaDbPath() string {
	return filepath.Join(Config.DataDir, "meta.db")
}

// DbFilePath joins name onto dirOverride, or onto the data directory when
// dirOverride is empty. engine.Manager does not call it; it builds its
// own <dir>/<name>.db paths.
func DbFilePath(name, dirOverride string) string {
	if dirOverride != "" {
		return filepath.Join(dirOverride, name)
	}
	return filepath.Join(Config.DataDir, name)
}
