package config

import (
	"fmt"
	"os"

	dbm "github.com/tendermint/tm-db"
)

// LightStoreID names the database holding trusted states.
const LightStoreID = "light"

// DBContext names a database and the config it lives under.
type DBContext struct {
	ID     string
	Config *Config
}

// DBProvider opens the database described by a DBContext.
type DBProvider func(*DBContext) (dbm.DB, error)

// DefaultDBProvider opens ctx.ID with the configured backend inside DBDir.
// The memdb backend never touches the disk.
func DefaultDBProvider(ctx *DBContext) (dbm.DB, error) {
	backend := dbm.BackendType(ctx.Config.DBBackend)
	if backend == dbm.MemDBBackend {
		return dbm.NewMemDB(), nil
	}

	dir := ctx.Config.DBDir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create db dir %s: %w", dir, err)
	}
	db, err := dbm.NewDB(ctx.ID, backend, dir)
	if err != nil {
		return nil, fmt.Errorf("open %s db (%s): %w", ctx.ID, backend, err)
	}
	return db, nil
}
