// Package all links every storage backend into a binary.
package all

import (
	_ "mapsync/internal/storage/mssql"
	_ "mapsync/internal/storage/postgres"
	_ "mapsync/internal/storage/sqlite"
)
