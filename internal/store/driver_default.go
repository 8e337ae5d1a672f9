//go:build !(sqlite_vec && cgo)

package store

import (
	_ "modernc.org/sqlite"
)

// driverName selects the pure-Go driver in default builds.
const driverName = "sqlite"
