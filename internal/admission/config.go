package admission

import (
	"errors"
	"fmt"

	"github.com/concave-dev/pfbatch/internal/validate"
)

const (
	// DefaultMinBatchSize is the smallest batch size threshold accepted at
	// the configuration boundary.
	DefaultMinBatchSize = 16

	// DefaultMaxBurst is the largest batch size threshold, matching the
	// receive burst size of the packet source.
	DefaultMaxBurst = 256

	// DefaultMaxHoldTicks bounds how long a partial batch waits by default.
	DefaultMaxHoldTicks = 100
)

// ErrInvalidBatchSize is wrapped by every rejected configuration change.
var ErrInvalidBatchSize = errors.New("invalid batch size nothing changed")

// RangeError reports a configuration value outside its accepted range.
type RangeError struct {
	Field string
	Value uint64
	Min   uint64
	Max   uint64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s %d outside [%d, %d]: %v", e.Field, e.Value, e.Min, e.Max, ErrInvalidBatchSize)
}

func (e *RangeError) Unwrap() error {
	return ErrInvalidBatchSize
}

// Config is the runtime-tunable batching policy of one destination.
type Config struct {
	BatchSizeThreshold int    `json:"batchSizeThreshold"` // Flush as soon as a batch holds this many items
	MaxHoldTicks       uint64 `json:"maxHoldTicks"`       // Force a partial batch out after this many ticks
}

// Limits bound the batch size threshold accepted by Registry.Configure.
type Limits struct {
	MinBatchSize int `json:"minBatchSize" validate:"min=1"`
	MaxBurst     int `json:"maxBurst" validate:"gtefield=MinBatchSize"`
}

// DefaultLimits returns the [16, 256] batch size range.
func DefaultLimits() Limits {
	return Limits{
		MinBatchSize: DefaultMinBatchSize,
		MaxBurst:     DefaultMaxBurst,
	}
}

// DefaultConfig returns a config that flushes on a full burst or after the
// default hold time.
func DefaultConfig() Config {
	return Config{
		BatchSizeThreshold: DefaultMaxBurst,
		MaxHoldTicks:       DefaultMaxHoldTicks,
	}
}

// Validate checks the limits themselves.
func (l Limits) Validate() error {
	if err := validate.ValidateStruct(l); err != nil {
		return fmt.Errorf("invalid batch size limits [%d, %d]: %w", l.MinBatchSize, l.MaxBurst, err)
	}
	return nil
}

// Check validates cfg against the limits.
func (l Limits) Check(cfg Config) error {
	tag := fmt.Sprintf("min=%d,max=%d", l.MinBatchSize, l.MaxBurst)
	if err := validate.ValidateField(cfg.BatchSizeThreshold, tag); err != nil {
		value := uint64(0)
		if cfg.BatchSizeThreshold > 0 {
			value = uint64(cfg.BatchSizeThreshold)
		}
		return &RangeError{
			Field: "batch size",
			Value: value,
			Min:   uint64(l.MinBatchSize),
			Max:   uint64(l.MaxBurst),
		}
	}

	if err := validate.ValidateField(cfg.MaxHoldTicks, "min=1"); err != nil {
		return &RangeError{Field: "max hold ticks", Value: cfg.MaxHoldTicks, Min: 1, Max: ^uint64(0)}
	}

	return nil
}
