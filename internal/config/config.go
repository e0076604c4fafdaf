package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvPrefix is prepended to every key when reading the environment.
const EnvPrefix = "CHAINREG_"

// ProfileEnv names the variable holding the optional TOML profile path.
const ProfileEnv = EnvPrefix + "CONFIG"

type Config struct {
	Network         string // CHAINREG_NETWORK (default "testnet")
	NodeURL         string // CHAINREG_NODE_URL (default "https://api.testnet.hiro.so")
	ContractAddress string // CHAINREG_CONTRACT_ADDRESS (required)
	ContractName    string // CHAINREG_CONTRACT_NAME (default "test-contract")
	SenderAddress   string // CHAINREG_SENDER_ADDRESS (default ContractAddress)
	SignerKey       string // CHAINREG_SIGNER_KEY (hex ed25519 seed; empty = read-only)

	// Content store settings
	ContentURL        string // CHAINREG_CONTENT_URL (default "https://api.pinata.cloud")
	ContentPinPath    string // CHAINREG_CONTENT_PIN_PATH (default "/pin")
	ContentToken      string // CHAINREG_CONTENT_TOKEN
	GatewayURL        string // CHAINREG_GATEWAY_URL (default "https://gateway.pinata.cloud")
	ContentS3Bucket   string // CHAINREG_CONTENT_S3_BUCKET (selects S3 over HTTP when set)
	ContentS3Endpoint string // CHAINREG_CONTENT_S3_ENDPOINT (custom endpoint for MinIO)
	ContentS3Region   string // CHAINREG_CONTENT_S3_REGION (default "us-east-1")
	ContentS3Prefix   string // CHAINREG_CONTENT_S3_PREFIX (default "content")

	ExplorerURL string // CHAINREG_EXPLORER_URL (default "https://explorer.hiro.so")

	// Reconciliation settings
	PollInterval    time.Duration // CHAINREG_POLL_INTERVAL (default 10s; 0 = disabled)
	ReadRPS         float64       // CHAINREG_READ_RPS (default 0 = unlimited)
	ReadConcurrency int           // CHAINREG_READ_CONCURRENCY (default 8)
	NotificationTTL time.Duration // CHAINREG_NOTIFICATION_TTL (default 8s)
	FallbackHeight  uint64        // CHAINREG_FALLBACK_HEIGHT (default 100000)
	TicketOwner     string        // CHAINREG_TICKET_OWNER (default SenderAddress)

	HTTPAddr    string        // CHAINREG_HTTP_ADDR (default ":8080")
	GRPCAddr    string        // CHAINREG_GRPC_ADDR (optional, empty = no health service)
	AuthToken   string        // CHAINREG_AUTH_TOKEN (optional, empty = auth disabled)
	NATSURL     string        // CHAINREG_NATS_URL (optional, empty = no events)
	DatabaseURL string        // CHAINREG_DATABASE_URL (optional, empty = in-memory journal)
	HTTPTimeout time.Duration // CHAINREG_HTTP_TIMEOUT (default 0 = none)
}

// keys is every key a profile may set.
var keys = []string{
	"NETWORK", "NODE_URL", "CONTRACT_ADDRESS", "CONTRACT_NAME", "SENDER_ADDRESS", "SIGNER_KEY",
	"CONTENT_URL", "CONTENT_PIN_PATH", "CONTENT_TOKEN", "GATEWAY_URL",
	"CONTENT_S3_BUCKET", "CONTENT_S3_ENDPOINT", "CONTENT_S3_REGION", "CONTENT_S3_PREFIX",
	"EXPLORER_URL", "POLL_INTERVAL", "READ_RPS", "READ_CONCURRENCY", "NOTIFICATION_TTL",
	"FALLBACK_HEIGHT", "TICKET_OWNER", "HTTP_ADDR", "GRPC_ADDR", "AUTH_TOKEN", "NATS_URL",
	"DATABASE_URL", "HTTP_TIMEOUT",
}

// Load reads the profile named by CHAINREG_CONFIG, if any, and then the
// environment. Environment values win over profile values.
func Load() (*Config, error) {
	profile, err := LoadProfile(os.Getenv(ProfileEnv))
	if err != nil {
		return nil, err
	}
	return fromSource(source{profile: profile})
}

// LoadProfile decodes a TOML profile. Keys are the lower-case variable names
// without the prefix, e.g. contract_address = "ST1..." or poll_interval = "30s".
// An empty path yields an empty profile.
func LoadProfile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	var raw map[string]any
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", ProfileEnv, err)
	}
	known := make(map[string]bool, len(keys))
	for _, k := range keys {
		known[k] = true
	}
	profile := make(map[string]string, len(raw))
	var unknown []string
	for k, v := range raw {
		key := strings.ToUpper(k)
		if !known[key] {
			unknown = append(unknown, k)
			continue
		}
		profile[key] = fmt.Sprint(v)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%s: unknown keys %s", path, strings.Join(unknown, ", "))
	}
	return profile, nil
}

type source struct {
	profile map[string]string
}

// get returns the environment value for key, then the profile value, then fallback.
func (s source) get(key, fallback string) string {
	if v := s.profile[key]; v != "" {
		fallback = v
	}
	return envOrDefault(EnvPrefix+key, fallback)
}

func fromSource(s source) (*Config, error) {
	c := &Config{
		Network:           s.get("NETWORK", "testnet"),
		NodeURL:           s.get("NODE_URL", "https://api.testnet.hiro.so"),
		ContractAddress:   s.get("CONTRACT_ADDRESS", ""),
		ContractName:      s.get("CONTRACT_NAME", "test-contract"),
		SignerKey:         s.get("SIGNER_KEY", ""),
		ContentURL:        s.get("CONTENT_URL", "https://api.pinata.cloud"),
		ContentPinPath:    s.get("CONTENT_PIN_PATH", "/pin"),
		ContentToken:      s.get("CONTENT_TOKEN", ""),
		GatewayURL:        s.get("GATEWAY_URL", "https://gateway.pinata.cloud"),
		ContentS3Bucket:   s.get("CONTENT_S3_BUCKET", ""),
		ContentS3Endpoint: s.get("CONTENT_S3_ENDPOINT", ""),
		ContentS3Region:   s.get("CONTENT_S3_REGION", "us-east-1"),
		ContentS3Prefix:   s.get("CONTENT_S3_PREFIX", "content"),
		ExplorerURL:       s.get("EXPLORER_URL", "https://explorer.hiro.so"),
		HTTPAddr:          s.get("HTTP_ADDR", ":8080"),
		GRPCAddr:          s.get("GRPC_ADDR", ""),
		AuthToken:         s.get("AUTH_TOKEN", ""),
		NATSURL:           s.get("NATS_URL", ""),
		DatabaseURL:       s.get("DATABASE_URL", ""),
	}
	if c.ContractAddress == "" {
		return nil, fmt.Errorf("%sCONTRACT_ADDRESS is required", EnvPrefix)
	}
	c.SenderAddress = s.get("SENDER_ADDRESS", c.ContractAddress)
	c.TicketOwner = s.get("TICKET_OWNER", c.SenderAddress)

	var err error
	if c.PollInterval, err = duration(s, "POLL_INTERVAL", "10s"); err != nil {
		return nil, err
	}
	if c.NotificationTTL, err = duration(s, "NOTIFICATION_TTL", "8s"); err != nil {
		return nil, err
	}
	if c.HTTPTimeout, err = duration(s, "HTTP_TIMEOUT", "0"); err != nil {
		return nil, err
	}

	rps := s.get("READ_RPS", "0")
	if c.ReadRPS, err = strconv.ParseFloat(rps, 64); err != nil || c.ReadRPS < 0 {
		return nil, fmt.Errorf("%sREAD_RPS: invalid value %q", EnvPrefix, rps)
	}
	conc := s.get("READ_CONCURRENCY", "8")
	if c.ReadConcurrency, err = strconv.Atoi(conc); err != nil || c.ReadConcurrency < 1 {
		return nil, fmt.Errorf("%sREAD_CONCURRENCY: invalid value %q", EnvPrefix, conc)
	}
	height := s.get("FALLBACK_HEIGHT", "100000")
	if c.FallbackHeight, err = strconv.ParseUint(height, 10, 64); err != nil {
		return nil, fmt.Errorf("%sFALLBACK_HEIGHT: %w", EnvPrefix, err)
	}
	return c, nil
}

func duration(s source, key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(s.get(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s%s: must not be negative", EnvPrefix, key)
	}
	return d, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
