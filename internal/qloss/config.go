package qloss

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config holds the loss-recovery and congestion-control tunables plus the
// transport parameters each Conn needs to interpret ACKs and size its
// window. Field tags use PascalCase YAML keys, one struct per concern.
type Config struct {
	Loss       LossConfig       `yaml:"Loss"`
	Congestion CongestionConfig `yaml:"Congestion"`
	Transport  TransportConfig  `yaml:"Transport"`
}

// LossConfig carries the packet- and time-threshold loss-detection constants.
type LossConfig struct {
	PacketThreshold           int           `yaml:"PacketThreshold"`
	TimeThresholdNumerator    int           `yaml:"TimeThresholdNumerator"`
	TimeThresholdDenominator  int           `yaml:"TimeThresholdDenominator"`
	TimeGranularity           time.Duration `yaml:"TimeGranularity"`
	PersistentCongestionThreshold int       `yaml:"PersistentCongestionThreshold"`
	MaxAckGap                 int           `yaml:"MaxAckGap"`
	MaxRanges                 int           `yaml:"MaxRanges"`
}

// CongestionConfig carries the NewReno starting conditions.
type CongestionConfig struct {
	InitialWindowPackets int `yaml:"InitialWindowPackets"`
}

// TransportConfig carries the local and (initially assumed) peer transport
// parameters: maximum UDP payload size, idle timeout, and ack delay bound.
// ack_delay_exponent is not tracked here: this core only ever sees
// AckFrame.Delay after the surrounding parser has already applied it.
type TransportConfig struct {
	MaxUDPPayloadSize int           `yaml:"MaxUDPPayloadSize"`
	MaxIdleTimeout    time.Duration `yaml:"MaxIdleTimeout"`
	MaxAckDelay       time.Duration `yaml:"MaxAckDelay"`
}

// DefaultConfig returns the RFC 9002 defaults: PKT_THR=3, TIME_THR=9/8,
// TIME_GRANULARITY=1ms, PERSISTENT_CONGESTION_THR=3, MAX_ACK_GAP=2, and an
// initial window of 10 maximum-sized UDP datagrams.
func DefaultConfig() *Config {
	return &Config{
		Loss: LossConfig{
			PacketThreshold:               3,
			TimeThresholdNumerator:        9,
			TimeThresholdDenominator:      8,
			TimeGranularity:               time.Millisecond,
			PersistentCongestionThreshold: 3,
			MaxAckGap:                     defaultMaxAckGap,
			MaxRanges:                     defaultMaxRanges,
		},
		Congestion: CongestionConfig{
			InitialWindowPackets: 10,
		},
		Transport: TransportConfig{
			MaxUDPPayloadSize: 1200,
			MaxIdleTimeout:    30 * time.Second,
			MaxAckDelay:       25 * time.Millisecond,
		},
	}
}

// LoadConfig reads a YAML config file, starting from DefaultConfig and
// overlaying whatever the file specifies.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// timeThreshold returns TIME_THR expressed as a fraction applied to rtt.
func (c LossConfig) timeThreshold(rtt time.Duration) time.Duration {
	thr := rtt * time.Duration(c.TimeThresholdNumerator) / time.Duration(c.TimeThresholdDenominator)
	if thr < c.TimeGranularity {
		return c.TimeGranularity
	}
	return thr
}
