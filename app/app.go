// Package app wires configuration, catalog, plan store and the selected
// provider adapter, and exposes the operations behind the CLI.
package app

import (
	"errors"
	"io"
	"switchboard/catalog"
	"switchboard/config"
	"switchboard/core"
	"switchboard/core/provider"
	"switchboard/providers"
	"switchboard/store"

	"github.com/rs/zerolog"
)

// Application holds all wired dependencies for one process run.
type Application struct {
	Config    config.Config
	Backend   providers.Backend
	Catalog   *catalog.Table
	Store     store.Store
	Provider  provider.Provider
	Tracker   *core.Tracker
	SessionID string
	Log       zerolog.Logger

	closers []io.Closer
}

// Close releases the plan store and the log file.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
