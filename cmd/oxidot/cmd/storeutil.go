package cmd

import (
	"github.com/awkless/oxidot/pkg/store"
)

// openStore opens the store rooted at the --store flag, logging status
// observers through the CLI's own logger. The escape-hatch path reaches
// here without cobra's PersistentPreRunE having run, so the logger may
// still need initializing.
func openStore() (*store.Store, error) {
	if logger == nil {
		if err := initLogger(nil, nil); err != nil {
			return nil, err
		}
	}
	return store.Open(storePath, store.WithLogger(logger))
}
