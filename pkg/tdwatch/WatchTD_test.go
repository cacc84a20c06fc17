package tdwatch_test

import (
	"os"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thingzone/wotlib-go/pkg/td"
	"github.com/thingzone/wotlib-go/pkg/tdwatch"
)

const lampTD = `{
	"id": "urn:dev:wot:com:example:servient:lamp",
	"title": "MyLampThing",
	"properties": {
		"status": {
			"type": "string",
			"writable": true,
			"forms": [{"href": "coaps://mylamp.example.com/status"}]
		}
	}
}`

func TestLoadTDFile(t *testing.T) {
	tdFile := path.Join(t.TempDir(), "lamp.json")
	require.NoError(t, os.WriteFile(tdFile, []byte(lampTD), 0600))

	thing, err := tdwatch.LoadTDFile(tdFile)
	require.NoError(t, err)
	assert.Equal(t, "urn:dev:wot:com:example:servient:lamp", thing.ID)
	assert.NotNil(t, thing.Property("status"))
}

func TestLoadTDFileErrors(t *testing.T) {
	_, err := tdwatch.LoadTDFile("/does/not/exist.json")
	assert.Error(t, err)

	badFile := path.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(badFile, []byte("not json"), 0600))
	_, err = tdwatch.LoadTDFile(badFile)
	assert.Error(t, err)

	invalidFile := path.Join(t.TempDir(), "invalid.json")
	require.NoError(t, os.WriteFile(invalidFile, []byte(`{"title": "NoID"}`), 0600))
	_, err = tdwatch.LoadTDFile(invalidFile)
	assert.Error(t, err)
}

func TestWatchTDFile(t *testing.T) {
	tdFile := path.Join(t.TempDir(), "lamp.json")
	require.NoError(t, os.WriteFile(tdFile, []byte(lampTD), 0600))

	reloaded := make(chan *td.Thing, 8)
	watcher, err := tdwatch.WatchTDFile(tdFile, func(thing *td.Thing) {
		reloaded <- thing
	})
	require.NoError(t, err)
	defer watcher.Close()

	// modify the document, expect one debounced reload
	updated := []byte(`{"id": "urn:dev:wot:com:example:servient:lamp", "title": "RenamedLamp"}`)
	require.NoError(t, os.WriteFile(tdFile, updated, 0600))

	select {
	case thing := <-reloaded:
		assert.Equal(t, "RenamedLamp", thing.Title)
	case <-time.After(3 * time.Second):
		assert.Fail(t, "no reload after file change")
	}
}

func TestWatchTDFileMissing(t *testing.T) {
	_, err := tdwatch.WatchTDFile("/does/not/exist.json", func(thing *td.Thing) {})
	assert.Error(t, err)
}
