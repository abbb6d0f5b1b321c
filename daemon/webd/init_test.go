package webd

import (
	"os"

	"github.com/halocircle/guardd/params"
)

// newTestWebDaemon creates a WebDaemon for testing purposes.
// If datadir is empty, one will be provided for you.
func newTestWebDaemon(datadir string) (daemon *WebDaemon, teardown func() error) {
	config := params.DefaultTestWebDaemonConfig()
	if datadir != "" {
		config.DataDir = datadir
	} else {
		tmpd, err := os.MkdirTemp(os.TempDir(), "guardd-webd-test")
		if err != nil {
			panic(err)
		}
		config.DataDir = tmpd
	}
	daemon = NewWebDaemon(config)
	teardown = func() error {
		daemon.Close()
		return os.RemoveAll(config.DataDir)
	}
	return daemon, teardown
}
