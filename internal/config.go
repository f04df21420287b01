package internal

import (
	"encoding/json"
	"os"
	"time"

	"github.com/qsplatform/buildcore/internal/util"
)

var Config = DefaultConfiguration()

type SecondsDuration time.Duration

func NewSecondsDuration(seconds int64) SecondsDuration {
	return SecondsDuration(time.Duration(seconds) * time.Second)
}

func (sd SecondsDuration) Duration() time.Duration {
	return time.Duration(sd)
}

func (sd SecondsDuration) MarshalJSON() ([]byte, error) {
	seconds := float64(time.Duration(sd)) / float64(time.Second)
	return json.Marshal(seconds)
}

func (sd *SecondsDuration) UnmarshalJSON(data []byte) error {
	var seconds float64
	if err := json.Unmarshal(data, &seconds); err != nil {
		return err
	}
	*sd = SecondsDuration(seconds * float64(time.Second))
	return nil
}

type Configuration struct {
	QueueSize           int64           `json:"queue_size"`
	Workers             int             `json:"workers"`
	PollIntervalSeconds SecondsDuration `json:"poll_interval_seconds"`
	LogLength           int             `json:"log_length"`
	PageSize            int64           `json:"page_size"`
	// Upper bound on tracking one external job build
	TrackTimeoutSeconds SecondsDuration `json:"track_timeout_seconds"`
	// How often overdue builds are failed when the queue is shared
	ReconcileIntervalSeconds SecondsDuration `json:"reconcile_interval_seconds"`
}

func DefaultConfiguration() *Configuration {
	return &Configuration{
		QueueSize:                100,
		Workers:                  4,
		PollIntervalSeconds:      NewSecondsDuration(5),
		LogLength:                10000,
		PageSize:                 50,
		TrackTimeoutSeconds:      NewSecondsDuration(86400),
		ReconcileIntervalSeconds: NewSecondsDuration(300),
	}
}

// InitializeConfiguration reads path into Config, writing the defaults to path
// first when it does not exist yet. Missing keys keep their default values.
func InitializeConfiguration(path string) error {
	Config = DefaultConfiguration()

	exists, err := util.PathExists(path)
	if err != nil {
		return err
	}
	if !exists {
		return writeConfiguration(path, Config)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, Config)
}

func UpdateConfiguration(path string, config *Configuration) error {
	if err := writeConfiguration(path, config); err != nil {
		return err
	}
	Config = config
	return nil
}

func writeConfiguration(path string, config *Configuration) error {
	b, err := json.MarshalIndent(config, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
