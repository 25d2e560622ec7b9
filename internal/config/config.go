package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "spoofsim.cfg.json"

// EnvPrefix prefixes environment overrides, e.g. SPOOFSIM_SIM_SEED.
const EnvPrefix = "SPOOFSIM"

type SimConfig struct {
	FrameHz float64
	Seed    uint64
	SpawnX  float64
	SpawnY  float64
	TargetX float64
	TargetY float64

	ArenaWidth  float64
	ArenaHeight float64
	ArenaMargin float64

	// WindSpeed is in units per frame, WindDirDeg 0 = up, 90 = right
	WindSpeed  float64
	WindDirDeg float64

	InitialFaults   []string
	RemediationFile string
	// Guard re-applies the remediation payload before every frame
	Guard bool

	OriginLat     float64
	OriginLon     float64
	MetersPerUnit float64
}

type TelemetryConfig struct {
	Style    string
	Interval time.Duration
	// Output is "stdout", "" to disable, or a file path
	Output string
}

type PostgresConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

type StorageConfig struct {
	// Type is one of memory, sqlite, postgres, influx
	Type           string
	MemoryCapacity int
	SQLitePath     string
	Postgres       PostgresConfig
}

type InfluxConfig struct {
	Protocol string
	Host     string
	Port     string
	Token    string
	Org      string
	Bucket   string
}

type LoggingConfig struct {
	Level          string
	File           string
	GraylogEnabled bool
	GraylogAddress string
}

type APIConfig struct {
	Addr string
}

// Load reads configuration from the JSON file in configDir and sets default
// values. A missing file is not an error; defaults and environment apply.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logFile", "")
	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("api.addr", ":8080")

	viper.SetDefault("sim.frameHz", 60.0)
	viper.SetDefault("sim.seed", 0)
	viper.SetDefault("sim.spawn.x", 100.0)
	viper.SetDefault("sim.spawn.y", 500.0)
	viper.SetDefault("sim.target.x", 1000.0)
	viper.SetDefault("sim.target.y", 350.0)
	viper.SetDefault("sim.arena.width", 1200.0)
	viper.SetDefault("sim.arena.height", 750.0)
	viper.SetDefault("sim.arena.margin", 50.0)
	viper.SetDefault("sim.wind.speed", 0.0)
	viper.SetDefault("sim.wind.dirDeg", 0.0)
	viper.SetDefault("sim.initialFaults", []string{})
	viper.SetDefault("sim.remediationFile", "")
	viper.SetDefault("sim.guard", false)
	viper.SetDefault("sim.geo.originLat", 0.0)
	viper.SetDefault("sim.geo.originLon", 0.0)
	viper.SetDefault("sim.geo.metersPerUnit", 0.0)

	viper.SetDefault("telemetry.style", "jsonl")
	viper.SetDefault("telemetry.interval", "1s")
	viper.SetDefault("telemetry.output", "stdout")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.capacity", 3600)
	viper.SetDefault("storage.sqlite.path", "./spoofsim.db")
	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", "5432")
	viper.SetDefault("storage.postgres.username", "postgres")
	viper.SetDefault("storage.postgres.password", "postgres")
	viper.SetDefault("storage.postgres.database", "spoofsim")

	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "spoofsim")
	viper.SetDefault("influx.bucket", "drone_telemetry")

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

func GetSimConfig() SimConfig {
	return SimConfig{
		FrameHz:         viper.GetFloat64("sim.frameHz"),
		Seed:            viper.GetUint64("sim.seed"),
		SpawnX:          viper.GetFloat64("sim.spawn.x"),
		SpawnY:          viper.GetFloat64("sim.spawn.y"),
		TargetX:         viper.GetFloat64("sim.target.x"),
		TargetY:         viper.GetFloat64("sim.target.y"),
		ArenaWidth:      viper.GetFloat64("sim.arena.width"),
		ArenaHeight:     viper.GetFloat64("sim.arena.height"),
		ArenaMargin:     viper.GetFloat64("sim.arena.margin"),
		WindSpeed:       viper.GetFloat64("sim.wind.speed"),
		WindDirDeg:      viper.GetFloat64("sim.wind.dirDeg"),
		InitialFaults:   viper.GetStringSlice("sim.initialFaults"),
		RemediationFile: viper.GetString("sim.remediationFile"),
		Guard:           viper.GetBool("sim.guard"),
		OriginLat:       viper.GetFloat64("sim.geo.originLat"),
		OriginLon:       viper.GetFloat64("sim.geo.originLon"),
		MetersPerUnit:   viper.GetFloat64("sim.geo.metersPerUnit"),
	}
}

func GetTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Style:    viper.GetString("telemetry.style"),
		Interval: viper.GetDuration("telemetry.interval"),
		Output:   viper.GetString("telemetry.output"),
	}
}

func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type:           viper.GetString("storage.type"),
		MemoryCapacity: viper.GetInt("storage.memory.capacity"),
		SQLitePath:     viper.GetString("storage.sqlite.path"),
		Postgres: PostgresConfig{
			Host:     viper.GetString("storage.postgres.host"),
			Port:     viper.GetString("storage.postgres.port"),
			Username: viper.GetString("storage.postgres.username"),
			Password: viper.GetString("storage.postgres.password"),
			Database: viper.GetString("storage.postgres.database"),
		},
	}
}

func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Protocol: viper.GetString("influx.protocol"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

func GetLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:          viper.GetString("logLevel"),
		File:           viper.GetString("logFile"),
		GraylogEnabled: viper.GetBool("graylog.enabled"),
		GraylogAddress: viper.GetString("graylog.address"),
	}
}

func GetAPIConfig() APIConfig {
	return APIConfig{Addr: viper.GetString("api.addr")}
}

// URL returns the server URL, e.g. http://localhost:8086.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// DSN returns the postgres connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		c.Host, c.Port, c.Username, c.Password, c.Database)
}
