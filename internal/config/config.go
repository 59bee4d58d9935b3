package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config file names.
const (
	RelayConfigName = "rf2relay.cfg.json"
	HubConfigName   = "rf2hub.cfg.json"
)

// SharedMemoryConfig holds the simulator attachment settings.
type SharedMemoryConfig struct {
	ProcessID      string `json:"processID" mapstructure:"processID"`
	CopyRetries    int    `json:"copyRetries" mapstructure:"copyRetries"`
	Mode           int    `json:"mode" mapstructure:"mode"`
	PlayerOverride bool   `json:"playerOverride" mapstructure:"playerOverride"`
	PlayerIndex    int    `json:"playerIndex" mapstructure:"playerIndex"`
}

// LivenessConfig holds the poll loop timing.
type LivenessConfig struct {
	FreezeTimeout  time.Duration `json:"freezeTimeout" mapstructure:"freezeTimeout"`
	ActiveInterval time.Duration `json:"activeInterval" mapstructure:"activeInterval"`
	IdleInterval   time.Duration `json:"idleInterval" mapstructure:"idleInterval"`
	MissLimit      int           `json:"missLimit" mapstructure:"missLimit"`
	StopTimeout    time.Duration `json:"stopTimeout" mapstructure:"stopTimeout"`
}

// RelayConfig holds the relay client settings.
type RelayConfig struct {
	Enabled            bool          `json:"enabled" mapstructure:"enabled"`
	URL                string        `json:"url" mapstructure:"url"`
	Session            string        `json:"session" mapstructure:"session"`
	ActivationKey      string        `json:"activationKey" mapstructure:"activationKey"`
	SendInterval       time.Duration `json:"sendInterval" mapstructure:"sendInterval"`
	MaxReconnect       int           `json:"maxReconnect" mapstructure:"maxReconnect"`
	InitialBackoff     time.Duration `json:"initialBackoff" mapstructure:"initialBackoff"`
	MaxBackoff         time.Duration `json:"maxBackoff" mapstructure:"maxBackoff"`
	HandshakeTimeout   time.Duration `json:"handshakeTimeout" mapstructure:"handshakeTimeout"`
	InsecureSkipVerify bool          `json:"insecureSkipVerify" mapstructure:"insecureSkipVerify"`
}

// ArbiterConfig holds the role monitor timing.
type ArbiterConfig struct {
	Interval       time.Duration `json:"interval" mapstructure:"interval"`
	StartupRetries int           `json:"startupRetries" mapstructure:"startupRetries"`
	StartupDelay   time.Duration `json:"startupDelay" mapstructure:"startupDelay"`
}

// HubConfig holds the relay hub listener settings.
type HubConfig struct {
	Listen    string `json:"listen" mapstructure:"listen"`
	Path      string `json:"path" mapstructure:"path"`
	CertFile  string `json:"certFile" mapstructure:"certFile"`
	KeyFile   string `json:"keyFile" mapstructure:"keyFile"`
	QueueSize int    `json:"queueSize" mapstructure:"queueSize"`
}

// StoreConfig selects the hub database.
type StoreConfig struct {
	Type       string `json:"type" mapstructure:"type"`
	SqlitePath string `json:"sqlitePath" mapstructure:"sqlitePath"`
	Host       string `json:"host" mapstructure:"host"`
	Port       string `json:"port" mapstructure:"port"`
	Username   string `json:"username" mapstructure:"username"`
	Password   string `json:"password" mapstructure:"password"`
	Database   string `json:"database" mapstructure:"database"`
}

// InfluxConfig holds the performance sink settings.
type InfluxConfig struct {
	Enabled  bool          `json:"enabled" mapstructure:"enabled"`
	Host     string        `json:"host" mapstructure:"host"`
	Port     string        `json:"port" mapstructure:"port"`
	Protocol string        `json:"protocol" mapstructure:"protocol"`
	Token    string        `json:"token" mapstructure:"token"`
	Org      string        `json:"org" mapstructure:"org"`
	Bucket   string        `json:"bucket" mapstructure:"bucket"`
	Interval time.Duration `json:"interval" mapstructure:"interval"`
}

// GraylogConfig holds the GELF sink settings.
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// OTelConfig holds the OpenTelemetry log and metric export settings.
type OTelConfig struct {
	Enabled        bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName    string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout   time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	MetricInterval time.Duration `json:"metricInterval" mapstructure:"metricInterval"`
	Endpoint       string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure       bool          `json:"insecure" mapstructure:"insecure"`
}

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("sharedMemory.processID", "")
	viper.SetDefault("sharedMemory.copyRetries", 10)
	viper.SetDefault("sharedMemory.mode", 0)
	viper.SetDefault("sharedMemory.playerOverride", false)
	viper.SetDefault("sharedMemory.playerIndex", -1)

	viper.SetDefault("liveness.freezeTimeout", "2s")
	viper.SetDefault("liveness.activeInterval", "10ms")
	viper.SetDefault("liveness.idleInterval", "500ms")
	viper.SetDefault("liveness.missLimit", 5)
	viper.SetDefault("liveness.stopTimeout", "2s")

	viper.SetDefault("relay.enabled", false)
	viper.SetDefault("relay.url", "wss://localhost:8765/relay")
	viper.SetDefault("relay.session", "default")
	viper.SetDefault("relay.activationKey", "")
	viper.SetDefault("relay.sendInterval", "200ms")
	viper.SetDefault("relay.maxReconnect", 0)
	viper.SetDefault("relay.initialBackoff", "1s")
	viper.SetDefault("relay.maxBackoff", "30s")
	viper.SetDefault("relay.handshakeTimeout", "10s")
	viper.SetDefault("relay.insecureSkipVerify", false)

	viper.SetDefault("arbiter.interval", "1s")
	viper.SetDefault("arbiter.startupRetries", 10)
	viper.SetDefault("arbiter.startupDelay", "200ms")

	viper.SetDefault("hub.listen", ":8765")
	viper.SetDefault("hub.path", "/relay")
	viper.SetDefault("hub.certFile", "")
	viper.SetDefault("hub.keyFile", "")
	viper.SetDefault("hub.queueSize", 16)

	viper.SetDefault("store.type", "sqlite")
	viper.SetDefault("store.sqlite.path", "./rf2hub.db")
	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "rf2hub")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "simlink")
	viper.SetDefault("influx.bucket", "relay-metrics")
	viper.SetDefault("influx.interval", "5s")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "rf2relay")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.metricInterval", "30s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// Load sets default values and reads the named JSON config file from
// configDir.
func Load(configDir, name string) error {
	SetDefaults()

	viper.SetConfigName(name)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

func GetSharedMemoryConfig() SharedMemoryConfig {
	return SharedMemoryConfig{
		ProcessID:      viper.GetString("sharedMemory.processID"),
		CopyRetries:    viper.GetInt("sharedMemory.copyRetries"),
		Mode:           viper.GetInt("sharedMemory.mode"),
		PlayerOverride: viper.GetBool("sharedMemory.playerOverride"),
		PlayerIndex:    viper.GetInt("sharedMemory.playerIndex"),
	}
}

func GetLivenessConfig() LivenessConfig {
	return LivenessConfig{
		FreezeTimeout:  viper.GetDuration("liveness.freezeTimeout"),
		ActiveInterval: viper.GetDuration("liveness.activeInterval"),
		IdleInterval:   viper.GetDuration("liveness.idleInterval"),
		MissLimit:      viper.GetInt("liveness.missLimit"),
		StopTimeout:    viper.GetDuration("liveness.stopTimeout"),
	}
}

func GetRelayConfig() RelayConfig {
	return RelayConfig{
		Enabled:            viper.GetBool("relay.enabled"),
		URL:                viper.GetString("relay.url"),
		Session:            viper.GetString("relay.session"),
		ActivationKey:      viper.GetString("relay.activationKey"),
		SendInterval:       viper.GetDuration("relay.sendInterval"),
		MaxReconnect:       viper.GetInt("relay.maxReconnect"),
		InitialBackoff:     viper.GetDuration("relay.initialBackoff"),
		MaxBackoff:         viper.GetDuration("relay.maxBackoff"),
		HandshakeTimeout:   viper.GetDuration("relay.handshakeTimeout"),
		InsecureSkipVerify: viper.GetBool("relay.insecureSkipVerify"),
	}
}

func GetArbiterConfig() ArbiterConfig {
	return ArbiterConfig{
		Interval:       viper.GetDuration("arbiter.interval"),
		StartupRetries: viper.GetInt("arbiter.startupRetries"),
		StartupDelay:   viper.GetDuration("arbiter.startupDelay"),
	}
}

func GetHubConfig() HubConfig {
	return HubConfig{
		Listen:    viper.GetString("hub.listen"),
		Path:      viper.GetString("hub.path"),
		CertFile:  viper.GetString("hub.certFile"),
		KeyFile:   viper.GetString("hub.keyFile"),
		QueueSize: viper.GetInt("hub.queueSize"),
	}
}

// GetStoreConfig returns the hub database settings. Postgres credentials
// live under db.* like the other services.
func GetStoreConfig() StoreConfig {
	return StoreConfig{
		Type:       viper.GetString("store.type"),
		SqlitePath: viper.GetString("store.sqlite.path"),
		Host:       viper.GetString("db.host"),
		Port:       viper.GetString("db.port"),
		Username:   viper.GetString("db.username"),
		Password:   viper.GetString("db.password"),
		Database:   viper.GetString("db.database"),
	}
}

func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
		Interval: viper.GetDuration("influx.interval"),
	}
}

func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		MetricInterval: viper.GetDuration("otel.metricInterval"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
	}
}
