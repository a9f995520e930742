package config

import (
	"fmt"
	"runtime"
	"time"
)

// Tuning profiles.
const (
	ProfileDefault = "default"
	ProfileStress  = "stress"
	ProfileLow     = "low"
)

// Tuning holds buffer, pool and rate parameters for one deployment size.
type Tuning struct {
	// Channel buffer sizes
	EventQueue             int
	BroadcastChannelBuffer int
	ClientSendBuffer       int

	// Connection pools
	DBMaxOpenConns int
	DBMaxIdleConns int
	RedisPoolSize  int

	// Rate limiting
	MaxMessagesPerSecond int
	MaxClients           int

	// Real-time driver granularity
	TickResolution time.Duration
	PollInterval   time.Duration
}

// DefaultTuning returns sensible defaults for production.
func DefaultTuning() *Tuning {
	numCPU := runtime.NumCPU()

	return &Tuning{
		EventQueue:             1024,
		BroadcastChannelBuffer: 256,
		ClientSendBuffer:       64,

		DBMaxOpenConns: numCPU * 4,
		DBMaxIdleConns: numCPU * 2,
		RedisPoolSize:  numCPU * 2,

		MaxMessagesPerSecond: 20,
		MaxClients:           16,

		TickResolution: 100 * time.Millisecond,
		PollInterval:   200 * time.Millisecond,
	}
}

// StressTuning returns aggressive settings for autopilot load runs.
func StressTuning() *Tuning {
	numCPU := runtime.NumCPU()

	return &Tuning{
		EventQueue:             4096,
		BroadcastChannelBuffer: 512,
		ClientSendBuffer:       128,

		DBMaxOpenConns: numCPU * 8,
		DBMaxIdleConns: numCPU * 4,
		RedisPoolSize:  numCPU * 4,

		MaxMessagesPerSecond: 200,
		MaxClients:           256,

		TickResolution: 50 * time.Millisecond,
		PollInterval:   100 * time.Millisecond,
	}
}

// LowResourceTuning returns minimal settings for development.
func LowResourceTuning() *Tuning {
	return &Tuning{
		EventQueue:             64,
		BroadcastChannelBuffer: 16,
		ClientSendBuffer:       8,

		DBMaxOpenConns: 2,
		DBMaxIdleConns: 1,
		RedisPoolSize:  2,

		MaxMessagesPerSecond: 10,
		MaxClients:           4,

		TickResolution: 250 * time.Millisecond,
		PollInterval:   500 * time.Millisecond,
	}
}

// ProfileTuning returns the preset for a profile name.
func ProfileTuning(name string) (*Tuning, error) {
	switch name {
	case ProfileDefault, "":
		return DefaultTuning(), nil
	case ProfileStress:
		return StressTuning(), nil
	case ProfileLow:
		return LowResourceTuning(), nil
	}
	return nil, fmt.Errorf("unknown tuning profile %q", name)
}
