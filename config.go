package federate

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the constants spec §6 says are "known at
// program-generation time": federation topology, retry budgets, and
// this federate's role. In a generated federate binary these are
// baked into a federation.toml next to the executable and loaded with
// LoadConfig; DefaultConfig supplies the same values inline for tests
// that don't want a file on disk, mirroring the teacher's
// mcast.DefaultConfiguration helper.
type Config struct {
	FedID        FedID  `toml:"fed_id"`
	FederationID string `toml:"federation_id"`

	NumberOfFederates int `toml:"number_of_federates"`

	RTIHost string `toml:"rti_host"`
	RTIPort int    `toml:"rti_port"` // 0 means "scan"

	StartingPort   int `toml:"starting_port"`
	PortRangeLimit int `toml:"port_range_limit"`

	ConnectNumRetries         int           `toml:"connect_num_retries"`
	ConnectRetryInterval      time.Duration `toml:"-"`
	AddressQueryRetryInterval time.Duration `toml:"-"`

	ConnectRetryIntervalMillis      int64 `toml:"connect_retry_interval_millis"`
	AddressQueryRetryIntervalMillis int64 `toml:"address_query_retry_interval_millis"`

	BufferSize int `toml:"buffer_size"`

	NumberOfInboundPhysicalConnections int `toml:"number_of_inbound_physical_connections"`

	HasUpstream   bool `toml:"has_upstream"`
	HasDownstream bool `toml:"has_downstream"`

	// FastMode skips waiting for physical time to reach the
	// negotiated start time (spec §4.8 step 4).
	FastMode bool `toml:"fast_mode"`

	// StopTime is informational only, per the spec §9 open question:
	// the source treats stop_time carried in STOP as informational,
	// and this field is preserved as such, never enforced.
	StopTime int64 `toml:"stop_time"`
}

// Defaults matching the original's STARTING_PORT / PORT_RANGE_LIMIT /
// CONNECT_NUM_RETRIES / retry-interval constants (original_source
// federate.c / rti.h).
const (
	DefaultStartingPort                   = 15045
	DefaultPortRangeLimit                 = 1024
	DefaultConnectNumRetries              = 10
	DefaultConnectRetryInterval           = 2 * time.Second
	DefaultAddressQueryRetryInterval      = 250 * time.Millisecond
	DefaultBufferSize                     = 4096
)

// DefaultConfig returns a Config with the original's default retry
// budgets and port range, isolated (no upstream/downstream), for
// tests and for federates that don't need a generated file.
func DefaultConfig(fedID FedID, federationID string) *Config {
	return &Config{
		FedID:                              fedID,
		FederationID:                       federationID,
		NumberOfFederates:                  1,
		StartingPort:                       DefaultStartingPort,
		PortRangeLimit:                     DefaultPortRangeLimit,
		ConnectNumRetries:                  DefaultConnectNumRetries,
		ConnectRetryInterval:               DefaultConnectRetryInterval,
		AddressQueryRetryInterval:          DefaultAddressQueryRetryInterval,
		BufferSize:                         DefaultBufferSize,
		NumberOfInboundPhysicalConnections: 0,
	}
}

// Validate checks the configuration invariants spec §7 treats as
// fatal configuration errors, caught once at load time rather than
// partway through a connect attempt.
func (c *Config) Validate() error {
	if c.FederationID == "" {
		return ErrFederationIDEmpty
	}
	if len(c.FederationID) > 255 {
		return ErrFedNameTooLong
	}
	return nil
}

// LoadConfig parses a generated federation.toml, grounded on the
// pack-wide convention of configuring services via BurntSushi/toml.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("federate: load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.ConnectRetryInterval = time.Duration(cfg.ConnectRetryIntervalMillis) * time.Millisecond
	cfg.AddressQueryRetryInterval = time.Duration(cfg.AddressQueryRetryIntervalMillis) * time.Millisecond
	if cfg.StartingPort == 0 {
		cfg.StartingPort = DefaultStartingPort
	}
	if cfg.PortRangeLimit == 0 {
		cfg.PortRangeLimit = DefaultPortRangeLimit
	}
	if cfg.ConnectNumRetries == 0 {
		cfg.ConnectNumRetries = DefaultConnectNumRetries
	}
	if cfg.ConnectRetryInterval == 0 {
		cfg.ConnectRetryInterval = DefaultConnectRetryInterval
	}
	if cfg.AddressQueryRetryInterval == 0 {
		cfg.AddressQueryRetryInterval = DefaultAddressQueryRetryInterval
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	return &cfg, nil
}
