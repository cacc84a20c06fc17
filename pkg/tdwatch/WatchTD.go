// Package tdwatch watches a Thing Description document file and reloads it on
// change. Intended for Things whose description is maintained on disk.
package tdwatch

import (
	"encoding/json"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/thingzone/wotlib-go/api"
	"github.com/thingzone/wotlib-go/pkg/td"
)

// debounce delay before reloading after the last change event
const reloadDelay = 100 * time.Millisecond

// LoadTDFile reads, validates and parses a Thing Description document file
func LoadTDFile(path string) (*td.Thing, error) {
	rawDoc, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc api.ThingTD
	if err = json.Unmarshal(rawDoc, &doc); err != nil {
		return nil, err
	}
	if err = td.ValidateTD(doc); err != nil {
		return nil, err
	}
	return td.ParseTD(doc)
}

// WatchTDFile watches a Thing Description document file and invokes the
// handler with the re-parsed Thing after each change.
// Multiple quick changes debounce into a single reload, and after each reload
// the watch is re-added to follow file renames that change the inode.
// A file that fails to validate is logged and skipped; the handler only ever
// sees valid Things.
//
//  path of the TD document file to watch
//  handler to invoke with the reloaded Thing
// Returns the fsnotify watcher. Close it when done.
func WatchTDFile(path string, handler func(thing *td.Thing)) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// the timer debounces multiple changes to the TD document
	reloadTimer := time.AfterFunc(0, func() {
		thing, loadErr := LoadTDFile(path)
		if loadErr != nil {
			logrus.Errorf("WatchTDFile: reload of %s failed: %s", path, loadErr)
		} else {
			logrus.Infof("WatchTDFile: reloaded thing description of '%s'", thing.ID)
			handler(thing)
		}
		// file renames change the inode of the filename, resubscribe
		watcher.Remove(path)
		watcher.Add(path)
	})
	reloadTimer.Stop() // don't start yet

	if err = watcher.Add(path); err != nil {
		logrus.Errorf("WatchTDFile: unable to watch %s for changes: %s", path, err)
		watcher.Close()
		return nil, err
	}
	go func() {
		for {
			select {
			case event, isOpen := <-watcher.Events:
				if !isOpen {
					return
				}
				// regardless of the kind of change, reload after the last event
				logrus.Debugf("WatchTDFile: event %s on %s", event.Op, event.Name)
				reloadTimer.Reset(reloadDelay)
			case watchErr, isOpen := <-watcher.Errors:
				if !isOpen {
					return
				}
				logrus.Errorf("WatchTDFile: watch error: %s", watchErr)
			}
		}
	}()
	return watcher, nil
}
