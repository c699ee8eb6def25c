package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. DREAM_PORT or DREAM_SYNTH_TTS_API_KEY.
const EnvPrefix = "DREAM"

type Config struct {
	Port        string          `mapstructure:"port"`
	LogLevel    string          `mapstructure:"log_level"`
	LogEncoding string          `mapstructure:"log_encoding"`
	DB          DBConfig        `mapstructure:"db"`
	Detection   DetectionConfig `mapstructure:"detection"`
	Auth        AuthConfig      `mapstructure:"auth"`
	CORS        CORSConfig      `mapstructure:"cors"`
	Dispatch    DispatchConfig  `mapstructure:"dispatch"`
	Synth       SynthConfig     `mapstructure:"synth"`
	Redis       RedisConfig     `mapstructure:"redis"`
	MQTT        MQTTConfig      `mapstructure:"mqtt"`
	Archive     ArchiveConfig   `mapstructure:"archive"`
	Otel        OtelConfig      `mapstructure:"otel"`
	Simulator   SimulatorConfig `mapstructure:"simulator"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

// DetectionConfig selects the evaluation policy used when a request does not name one.
type DetectionConfig struct {
	Policy string `mapstructure:"policy"`
}

type AuthConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type DispatchConfig struct {
	Workers   int           `mapstructure:"workers"`
	QueueSize int           `mapstructure:"queue_size"`
	Timeout   time.Duration `mapstructure:"timeout"`
	History   int           `mapstructure:"history"`
}

// SynthConfig configures narration text generation and text-to-speech.
type SynthConfig struct {
	TextEndpoint string        `mapstructure:"text_endpoint"`
	TextAPIKey   string        `mapstructure:"text_api_key"`
	TextModel    string        `mapstructure:"text_model"`
	TTSEndpoint  string        `mapstructure:"tts_endpoint"`
	TTSAPIKey    string        `mapstructure:"tts_api_key"`
	Voice        string        `mapstructure:"voice"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Retries      int           `mapstructure:"retries"`
	OutputDir    string        `mapstructure:"output_dir"`
}

type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Stream  string `mapstructure:"stream"`
	MaxLen  int64  `mapstructure:"max_len"`
}

type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Topic    string `mapstructure:"topic"`
	QoS      byte   `mapstructure:"qos"`
}

type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type OtelConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Exporter    string  `mapstructure:"exporter"` // otlp | stdout
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"` // plain HTTP to the collector
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type SimulatorConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	DeviceID string        `mapstructure:"device_id"`
	Tick     time.Duration `mapstructure:"tick"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_encoding", "console")
	v.SetDefault("db.path", "app.db")

	v.SetDefault("detection.policy", "canonical")

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.token_ttl", time.Hour)

	v.SetDefault("cors.allow_origins", []string{"*"})

	v.SetDefault("dispatch.workers", 2)
	v.SetDefault("dispatch.queue_size", 32)
	v.SetDefault("dispatch.timeout", 60*time.Second)
	v.SetDefault("dispatch.history", 100)

	v.SetDefault("synth.text_endpoint", "https://api.deepseek.com/chat/completions")
	v.SetDefault("synth.text_api_key", "")
	v.SetDefault("synth.text_model", "deepseek-chat")
	v.SetDefault("synth.tts_endpoint", "https://api.elevenlabs.io/v1/text-to-speech")
	v.SetDefault("synth.tts_api_key", "")
	v.SetDefault("synth.voice", "21m00Tcm4TlvDq8ikWAM")
	v.SetDefault("synth.timeout", 30*time.Second)
	v.SetDefault("synth.retries", 2)
	v.SetDefault("synth.output_dir", "generated_audio")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.stream", "rem:events")
	v.SetDefault("redis.max_len", 10000)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "dream-incubator")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic", "dream/+/packet")
	v.SetDefault("mqtt.qos", 1)

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.path", "data/archive")

	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.exporter", "otlp")
	v.SetDefault("otel.endpoint", "")
	v.SetDefault("otel.insecure", true)
	v.SetDefault("otel.service_name", "dream-incubator")
	v.SetDefault("otel.sample_ratio", 1.0)

	v.SetDefault("simulator.enabled", false)
	v.SetDefault("simulator.device_id", "simulated-wearable")
	v.SetDefault("simulator.tick", 2*time.Second)
}

// Load reads config.yml from dir (if present), applies DREAM_* environment overrides
// on top of the defaults, and returns the typed result.
func Load(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(dir)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config in %q: %w", dir, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	return &cfg, nil
}
