package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Root is the recognized option set. Durations use Go's duration syntax in
// YAML ("5s", "100ms").
type Root struct {
	StaleThreshold     time.Duration `yaml:"stale_threshold"`
	BatchHighWatermark int           `yaml:"batch_high_watermark"`
	BatchMaxAge        time.Duration `yaml:"batch_max_age"`
	MaxTicksPerSymbol  int           `yaml:"max_ticks_per_symbol"`
	RetentionWindow    time.Duration `yaml:"retention_window"`
	PrioritySymbols    []string      `yaml:"priority_symbols"`
	FlushInterval      time.Duration `yaml:"flush_interval"`
	BackoffBase        time.Duration `yaml:"backoff_base"`
	BackoffMax         time.Duration `yaml:"backoff_max"`

	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	WorkbookPath      string        `yaml:"workbook_path"`
	FeedURL           string        `yaml:"feed_url"`
	Symbols           []string      `yaml:"symbols"`
	TicksPerSecond    float64       `yaml:"ticks_per_second"`
}

// Default returns the option set with every default filled in.
func Default() Root {
	return Root{
		StaleThreshold:     5 * time.Second,
		BatchHighWatermark: 100,
		BatchMaxAge:        1 * time.Second,
		MaxTicksPerSymbol:  100,
		RetentionWindow:    5 * time.Minute,
		FlushInterval:      100 * time.Millisecond,
		BackoffBase:        500 * time.Millisecond,
		BackoffMax:         30 * time.Second,
		HeartbeatInterval:  2 * time.Second,
		WorkbookPath:       "marketdata.xlsx",
		Symbols:            []string{"GGAL", "YPFD", "PAMP", "GGAL - 24hs"},
		TicksPerSecond:     50,
	}
}

// Load reads the YAML file at path and fills unset options with defaults.
// A missing file yields the defaults; a malformed file is an error.
func Load(path string) (Root, error) {
	c := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, err
	}
	return c, nil
}

// Validate enforces the documented ranges. Callers treat a failure here as a
// configuration error (exit code 2).
func (c Root) Validate() error {
	checks := []struct {
		ok  bool
		msg string
	}{
		{c.StaleThreshold >= time.Second && c.StaleThreshold <= 5*time.Minute,
			fmt.Sprintf("stale_threshold %v out of range [1s, 5m]", c.StaleThreshold)},
		{c.BatchHighWatermark >= 1 && c.BatchHighWatermark <= 10_000,
			fmt.Sprintf("batch_high_watermark %d out of range [1, 10000]", c.BatchHighWatermark)},
		{c.BatchMaxAge >= 10*time.Millisecond && c.BatchMaxAge <= 60*time.Second,
			fmt.Sprintf("batch_max_age %v out of range [10ms, 60s]", c.BatchMaxAge)},
		{c.BatchMaxAge < c.StaleThreshold,
			fmt.Sprintf("batch_max_age %v must be strictly less than stale_threshold %v", c.BatchMaxAge, c.StaleThreshold)},
		{c.MaxTicksPerSymbol >= 1 && c.MaxTicksPerSymbol <= 1_000,
			fmt.Sprintf("max_ticks_per_symbol %d out of range [1, 1000]", c.MaxTicksPerSymbol)},
		{c.RetentionWindow >= time.Minute && c.RetentionWindow <= 10*time.Hour,
			fmt.Sprintf("retention_window %v out of range [1m, 10h]", c.RetentionWindow)},
		{c.FlushInterval > 0,
			fmt.Sprintf("flush_interval %v must be positive", c.FlushInterval)},
		{c.BackoffBase > 0,
			fmt.Sprintf("backoff_base %v must be positive", c.BackoffBase)},
		{c.BackoffMax >= c.BackoffBase,
			fmt.Sprintf("backoff_max %v must be >= backoff_base %v", c.BackoffMax, c.BackoffBase)},
		{c.HeartbeatInterval > 0,
			fmt.Sprintf("heartbeat_interval %v must be positive", c.HeartbeatInterval)},
		{c.TicksPerSecond > 0,
			fmt.Sprintf("ticks_per_second %v must be positive", c.TicksPerSecond)},
	}
	for _, ch := range checks {
		if !ch.ok {
			return fmt.Errorf("config: %s", ch.msg)
		}
	}
	return nil
}
