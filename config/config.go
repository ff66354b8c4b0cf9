package config

import "time"

type StorageType string

const STORAGE_TYPE_REDIS StorageType = "redis"
const STORAGE_TYPE_SQLITE StorageType = "sqlite"
const STORAGE_TYPE_INMEM StorageType = "memory"

type SessionStoreType string

const SESSION_STORE_REDIS SessionStoreType = "redis"
const SESSION_STORE_INMEM SessionStoreType = "memory"

type SamplerSinkType string

const SAMPLER_SINK_QUEUE SamplerSinkType = "queue"
const SAMPLER_SINK_LOG_FILE SamplerSinkType = "logfile"
const SAMPLER_SINK_NONE SamplerSinkType = "none"

type Config struct {
	HttpPort         int
	Debug            bool
	RedisConfig      RedisConfig
	SqliteConfig     SqliteConfig
	StorageType      StorageType
	SessionStoreType SessionStoreType
	SessionTTL       time.Duration
	FlowDir          string
	Classifier       ClassifierConfig
	Gateway          GatewayConfig
	Engine           EngineConfig
}

type RedisConfig struct {
	Addrs     []string
	Namespace string
}

type SqliteConfig struct {
	Path string
}

type ClassifierConfig struct {
	PrimaryURL          string
	SecondaryURL        string
	RequestTimeout      time.Duration
	HealthCheckInterval time.Duration
	ConfidenceThreshold float64
	Generative          GenerativeConfig
	Sampler             SamplerConfig
}

type GenerativeConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type SamplerConfig struct {
	SinkType      SamplerSinkType
	FileName      string
	MinConfidence float64
	Capacity      int
}

type GatewayConfig struct {
	DedupWindow        time.Duration
	InterruptThreshold float64
}

type EngineConfig struct {
	MaxIterations int
}
