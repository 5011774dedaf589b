// Package config reads the JSON file that lists a process's boards and sensors, along with its
// network, capture and MQTT settings.
package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/edss/rocket-sensors/resource"
)

// A Config describes the components of a process and how their readings are served.
type Config struct {
	Components []resource.Config `json:"components,omitempty"`
	Network    NetworkConfig     `json:"network"`
	Capture    CaptureConfig     `json:"capture"`
	MQTT       *MQTTConfig       `json:"mqtt,omitempty"`

	ConfigFilePath string `json:"-"`
}

// Ensure validates every part of the config, records implicit dependencies and sorts components so
// each comes after the components it depends on. Component errors are combined so one pass reports
// all of them.
func (c *Config) Ensure() error {
	var errs error
	for idx := range c.Components {
		dependsOn, err := c.Components[idx].Validate(fmt.Sprintf("%s.%d", "components", idx))
		if err != nil {
			errs = multierr.Combine(errs, err)
			continue
		}
		c.Components[idx].ImplicitDependsOn = dependsOn
	}
	if errs != nil {
		return errs
	}

	if len(c.Components) > 0 {
		sorted, err := SortComponents(c.Components)
		if err != nil {
			return err
		}
		c.Components = sorted
	}

	if err := c.Network.Validate("network"); err != nil {
		return err
	}
	if err := c.Capture.Validate("capture"); err != nil {
		return err
	}
	if c.MQTT != nil {
		if err := c.MQTT.Validate("mqtt"); err != nil {
			return err
		}
	}
	return nil
}

// FindComponent finds a particular component by name.
func (c *Config) FindComponent(name string) *resource.Config {
	for idx := range c.Components {
		if c.Components[idx].Name == name {
			return &c.Components[idx]
		}
	}
	return nil
}

// SortComponents sorts components topologically based on what they depend on. Names must be unique
// and every dependency must name another component.
func SortComponents(components []resource.Config) ([]resource.Config, error) {
	componentToConfig := make(map[string]resource.Config, len(components))
	dependencies := map[string][]string{}

	for _, conf := range components {
		if _, ok := componentToConfig[conf.Name]; ok {
			return nil, errors.Errorf("component name %q is not unique", conf.Name)
		}
		componentToConfig[conf.Name] = conf
		dependencies[conf.Name] = conf.Dependencies()
	}

	for name, deps := range dependencies {
		for _, depName := range deps {
			if _, ok := componentToConfig[depName]; !ok {
				return nil, errors.Errorf("component %q depends on %q which is not configured", name, depName)
			}
		}
	}

	sorted := make([]resource.Config, 0, len(components))
	visited := map[string]bool{}

	var dfsHelper func(string, []string) error
	dfsHelper = func(name string, path []string) error {
		for idx, cmpName := range path {
			if name == cmpName {
				return errors.Errorf("circular dependency detected in component list between %s",
					strings.Join(path[idx:], ", "))
			}
		}

		path = append(path, name)
		if visited[name] {
			return nil
		}
		visited[name] = true
		for _, dep := range dependencies[name] {
			pathCopy := make([]string, len(path))
			copy(pathCopy, path)
			if err := dfsHelper(dep, pathCopy); err != nil {
				return err
			}
		}
		sorted = append(sorted, componentToConfig[name])
		return nil
	}

	for _, c := range components {
		if !visited[c.Name] {
			if err := dfsHelper(c.Name, nil); err != nil {
				return nil, err
			}
		}
	}
	return sorted, nil
}

// DefaultBindAddress is the address the HTTP API listens on when none is configured.
const DefaultBindAddress = "localhost:8080"

// NetworkConfig describes where the HTTP API listens.
type NetworkConfig struct {
	BindAddress string   `json:"bind_address"`
	CORSOrigins []string `json:"cors_origins,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (nc *NetworkConfig) Validate(path string) error {
	if nc.BindAddress == "" {
		nc.BindAddress = DefaultBindAddress
	}
	if _, _, err := net.SplitHostPort(nc.BindAddress); err != nil {
		return resource.NewConfigValidationError(path, errors.Wrap(err, "error validating bind_address"))
	}
	return nil
}

const (
	defaultCaptureInterval = time.Second
	defaultCaptureTimeout  = 500 * time.Millisecond
)

// CaptureConfig describes how often sensors are polled. An empty Sensors list polls every sensor.
type CaptureConfig struct {
	Interval string   `json:"interval,omitempty"`
	Timeout  string   `json:"timeout,omitempty"`
	Sensors  []string `json:"sensors,omitempty"`

	interval time.Duration
	timeout  time.Duration
}

// Validate parses the durations and applies defaults.
func (cc *CaptureConfig) Validate(path string) error {
	var err error
	cc.interval, err = parseDuration(cc.Interval, defaultCaptureInterval)
	if err != nil {
		return resource.NewConfigValidationError(path, errors.Wrap(err, "error validating interval"))
	}
	cc.timeout, err = parseDuration(cc.Timeout, defaultCaptureTimeout)
	if err != nil {
		return resource.NewConfigValidationError(path, errors.Wrap(err, "error validating timeout"))
	}
	if cc.timeout > cc.interval {
		return resource.NewConfigValidationError(path,
			errors.Errorf("timeout %s must not exceed interval %s", cc.timeout, cc.interval))
	}
	return nil
}

// IntervalDuration returns the parsed poll interval.
func (cc *CaptureConfig) IntervalDuration() time.Duration {
	if cc.interval == 0 {
		return defaultCaptureInterval
	}
	return cc.interval
}

// TimeoutDuration returns the parsed per-read timeout.
func (cc *CaptureConfig) TimeoutDuration() time.Duration {
	if cc.timeout == 0 {
		return defaultCaptureTimeout
	}
	return cc.timeout
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.Errorf("duration %q must be positive", s)
	}
	return d, nil
}

// DefaultTopicPrefix prefixes every published topic when none is configured.
const DefaultTopicPrefix = "rocket-sensors"

// MQTTConfig describes the broker readings are published to.
type MQTTConfig struct {
	Broker      string `json:"broker"`
	TopicPrefix string `json:"topic_prefix,omitempty"`
	ClientID    string `json:"client_id,omitempty"`
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (mc *MQTTConfig) Validate(path string) error {
	if mc.Broker == "" {
		return resource.NewConfigValidationFieldRequiredError(path, "broker")
	}
	if mc.TopicPrefix == "" {
		mc.TopicPrefix = DefaultTopicPrefix
	}
	mc.TopicPrefix = strings.TrimSuffix(mc.TopicPrefix, "/")
	return nil
}
