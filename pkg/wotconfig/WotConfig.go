// Package wotconfig with the client library configuration
package wotconfig

import (
	"bytes"
	"os"
	"text/template"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// WotConfigName the default configuration file name
const WotConfigName = "wot.yaml"

// Default operation timeouts in seconds
const DefaultMqttTimeoutSec = 10
const DefaultCoapTimeoutSec = 10

// ClientConfig with the WoT client library configuration parameters
type ClientConfig struct {
	// logging
	Loglevel string `yaml:"logLevel"` // debug, info, warning, error. Default is warning
	LogFile  string `yaml:"logFile"`  // logging to file, default is stderr only

	// protocol operation timeouts in seconds. 0 for the default.
	MqttTimeout int `yaml:"mqttTimeout,omitempty"`
	CoapTimeout int `yaml:"coapTimeout,omitempty"`

	// MQTT publish/subscribe quality of service, 0..2
	MqttQos byte `yaml:"mqttQos,omitempty"`
}

// CreateDefaultClientConfig with default values
func CreateDefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Loglevel:    "warning",
		MqttTimeout: DefaultMqttTimeoutSec,
		CoapTimeout: DefaultCoapTimeoutSec,
		MqttQos:     0,
	}
}

// LoadConfig loads the configuration from file into the given config
//  configFile path to yaml configuration file
//  config interface to typed structure matching the config. Must have yaml tags
//  substituteMap map to substitute {{.key}} with value from map, nil to ignore
// Returns nil if successful
func LoadConfig(configFile string, config interface{}, substituteMap map[string]string) error {
	rawConfig, err := os.ReadFile(configFile)
	if err != nil {
		logrus.Infof("LoadConfig: unable to load config file: %s", err)
		return err
	}
	logrus.Infof("LoadConfig: loaded config file '%s'", configFile)
	rawText := string(rawConfig)
	if substituteMap != nil {
		rawText = SubstituteText(rawText, substituteMap)
	}
	err = yaml.Unmarshal([]byte(rawText), config)
	if err != nil {
		logrus.Errorf("LoadConfig: error parsing config file '%s': %s", configFile, err)
		return err
	}
	return nil
}

// SubstituteText substitutes template strings in the text
//  text to substitute template strings in, eg "hello {{.destination}}"
//  substituteMap with replacement keywords, eg {"destination":"world"}
// Returns text with template strings replaced
func SubstituteText(text string, substituteMap map[string]string) string {
	var msg bytes.Buffer
	tpl, err := template.New("").Parse(text)
	if err != nil {
		return text
	}
	tpl.Execute(&msg, substituteMap)
	return msg.String()
}
