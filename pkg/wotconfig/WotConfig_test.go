package wotconfig_test

import (
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thingzone/wotlib-go/pkg/wotconfig"
)

func TestCreateDefaultClientConfig(t *testing.T) {
	config := wotconfig.CreateDefaultClientConfig()
	assert.Equal(t, "warning", config.Loglevel)
	assert.Equal(t, wotconfig.DefaultMqttTimeoutSec, config.MqttTimeout)
	assert.Equal(t, wotconfig.DefaultCoapTimeoutSec, config.CoapTimeout)
}

func TestLoadConfig(t *testing.T) {
	configFile := path.Join(t.TempDir(), wotconfig.WotConfigName)
	configYaml := "logLevel: info\nlogFile: {{.logsFolder}}/wot.log\nmqttTimeout: 30\n"
	require.NoError(t, os.WriteFile(configFile, []byte(configYaml), 0600))

	config := wotconfig.CreateDefaultClientConfig()
	err := wotconfig.LoadConfig(configFile, config, map[string]string{"logsFolder": "/var/log"})
	require.NoError(t, err)
	assert.Equal(t, "info", config.Loglevel)
	assert.Equal(t, "/var/log/wot.log", config.LogFile)
	assert.Equal(t, 30, config.MqttTimeout)
	// untouched fields keep their defaults
	assert.Equal(t, wotconfig.DefaultCoapTimeoutSec, config.CoapTimeout)
}

func TestLoadConfigFileNotFound(t *testing.T) {
	config := wotconfig.CreateDefaultClientConfig()
	err := wotconfig.LoadConfig("/does/not/exist/wot.yaml", config, nil)
	assert.Error(t, err)
}

func TestLoadConfigBadYaml(t *testing.T) {
	configFile := path.Join(t.TempDir(), wotconfig.WotConfigName)
	require.NoError(t, os.WriteFile(configFile, []byte("logLevel: [unterminated"), 0600))

	config := wotconfig.CreateDefaultClientConfig()
	err := wotconfig.LoadConfig(configFile, config, nil)
	assert.Error(t, err)
}

func TestSubstituteText(t *testing.T) {
	text := wotconfig.SubstituteText("hello {{.destination}}", map[string]string{"destination": "world"})
	assert.Equal(t, "hello world", text)

	// unparseable templates pass through unchanged
	text = wotconfig.SubstituteText("hello {{.broken", nil)
	assert.Equal(t, "hello {{.broken", text)
}

func TestSetLogging(t *testing.T) {
	logFile := path.Join(t.TempDir(), "wot.log")
	require.NoError(t, wotconfig.SetLogging("info", logFile))
	assert.FileExists(t, logFile)

	require.NoError(t, wotconfig.SetLogging("debug", ""))
	err := wotconfig.SetLogging("error", "/does/not/exist/wot.log")
	assert.Error(t, err)
}
