// Package database opens GORM connections and inspects table layouts.
//
// Connect picks the dialector from Config.Driver: MySQL over TCP, or a SQLite
// file (":memory:" for tests). SQLite connections are limited to a single
// open connection.
//
// TableColumns and MissingColumns let a store verify an existing table when
// automatic migration is turned off.
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	missing, err := database.MissingColumns(db, "inventory_entities", "id", "natural_key")
package database
