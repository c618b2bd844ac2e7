package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultJWTSecret is the placeholder signing secret used when
// ROOMGATE_JWT_SECRET is unset. The server refuses to enable admin login with it.
const DefaultJWTSecret = "replace-me"

// ServerConfig holds settings for the websocket server runtime.
type ServerConfig struct {
	ListenAddr    string
	SocketPath    string
	Database      DatabaseConfig
	JWT           JWTConfig
	Admin         AdminConfig
	Socket        SocketConfig
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	AckTimeout    time.Duration
	MaxFrameBytes int
	SendBuffer    int
	LogLevel      string
}

// ClientConfig holds settings for the terminal watcher.
type ClientConfig struct {
	ServerURL string
	Headers   map[string]string
}

// DatabaseConfig captures storage configuration.
type DatabaseConfig struct {
	Path string
}

// JWTConfig defines token issuance parameters.
type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

// AdminConfig protects the admin HTTP API. An empty PasswordHash disables
// token issuance.
type AdminConfig struct {
	PasswordHash string
}

// SocketConfig controls admission and room routing.
type SocketConfig struct {
	HeaderFields HeaderFields `yaml:"headerFields"`
	AutoJoinRoom bool         `yaml:"autoJoinRoom"`
	PropGet      bool         `yaml:"propGet"`
}

// DefaultSocketConfig enables auto-join and the property accessor.
func DefaultSocketConfig() SocketConfig {
	return SocketConfig{AutoJoinRoom: true, PropGet: true}
}

// LoadDotEnv loads a .env file into the process environment when present.
// Variables already set win.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// LoadServerConfig builds the server configuration from environment variables with sensible defaults.
func LoadServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:    envOrDefault("ROOMGATE_LISTEN_ADDR", ":9000"),
		SocketPath:    envOrDefault("ROOMGATE_SOCKET_PATH", "/socket"),
		Database:      DatabaseConfig{Path: envOrDefault("ROOMGATE_DB_PATH", "roomgate.db")},
		JWT:           loadJWTConfig(),
		Admin:         AdminConfig{PasswordHash: envOrDefault("ROOMGATE_ADMIN_PASSWORD_HASH", "")},
		Socket:        loadSocketConfig(),
		ReadTimeout:   envDuration("ROOMGATE_READ_TIMEOUT", 60*time.Second),
		WriteTimeout:  envDuration("ROOMGATE_WRITE_TIMEOUT", 10*time.Second),
		AckTimeout:    envDuration("ROOMGATE_ACK_TIMEOUT", 5*time.Second),
		MaxFrameBytes: envInt("ROOMGATE_MAX_FRAME_BYTES", 1<<20),
		SendBuffer:    envInt("ROOMGATE_SEND_BUFFER", 64),
		LogLevel:      envOrDefault("ROOMGATE_LOG_LEVEL", "info"),
	}
}

// LoadClientConfig builds the watcher configuration from environment variables.
// ROOMGATE_CLIENT_HEADERS holds comma-separated name=value pairs.
func LoadClientConfig() ClientConfig {
	headers, _ := ParseHeaderPairs(splitList(envOrDefault("ROOMGATE_CLIENT_HEADERS", "")))
	return ClientConfig{
		ServerURL: envOrDefault("ROOMGATE_SERVER_URL", "ws://localhost:9000/socket"),
		Headers:   headers,
	}
}

// LoadSocketFile reads the socket section from a YAML file, replacing the
// header fields and any toggles the file sets.
func LoadSocketFile(path string, base SocketConfig) (SocketConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read socket config: %w", err)
	}

	var doc struct {
		Socket struct {
			HeaderFields HeaderFields `yaml:"headerFields"`
			AutoJoinRoom *bool        `yaml:"autoJoinRoom"`
			PropGet      *bool        `yaml:"propGet"`
		} `yaml:"socket"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return base, fmt.Errorf("parse socket config: %w", err)
	}

	cfg := base
	if doc.Socket.HeaderFields != nil {
		cfg.HeaderFields = doc.Socket.HeaderFields
	}
	if doc.Socket.AutoJoinRoom != nil {
		cfg.AutoJoinRoom = *doc.Socket.AutoJoinRoom
	}
	if doc.Socket.PropGet != nil {
		cfg.PropGet = *doc.Socket.PropGet
	}
	return cfg, nil
}

// ParseHeaderPairs turns ["name=value", ...] into a map.
func ParseHeaderPairs(pairs []string) (map[string]string, error) {
	headers := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return headers, fmt.Errorf("invalid header %q, want name=value", pair)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

func loadSocketConfig() SocketConfig {
	cfg := DefaultSocketConfig()
	cfg.AutoJoinRoom = envBool("ROOMGATE_AUTO_JOIN_ROOM", cfg.AutoJoinRoom)
	cfg.PropGet = envBool("ROOMGATE_PROP_GET", cfg.PropGet)
	// ROOMGATE_HEADER_FIELDS accepts bare names only; descriptors need the YAML file.
	for _, name := range splitList(envOrDefault("ROOMGATE_HEADER_FIELDS", "")) {
		cfg.HeaderFields = append(cfg.HeaderFields, HeaderField{Name: name})
	}
	return cfg
}

func loadJWTConfig() JWTConfig {
	expiration := envDuration("ROOMGATE_JWT_EXPIRATION", 12*time.Hour)
	return JWTConfig{
		Secret:     envOrDefault("ROOMGATE_JWT_SECRET", DefaultJWTSecret),
		Issuer:     envOrDefault("ROOMGATE_JWT_ISSUER", "roomgate"),
		Expiration: expiration,
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOrDefault(key, value string) string {
	if env, ok := os.LookupEnv(key); ok {
		return env
	}
	return value
}

func envDuration(key string, def time.Duration) time.Duration {
	if env, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(env); err == nil {
			return parsed
		}
	}
	return def
}

func envInt(key string, def int) int {
	if env, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(env); err == nil {
			return parsed
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if env, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(env); err == nil {
			return parsed
		}
	}
	return def
}
