// Package all registers every database backend with the db factory.
// Import it for side effects from binaries that select a backend at runtime.
package all

import (
	_ "xmlstream/internal/sink/db/mssql"
	_ "xmlstream/internal/sink/db/postgres"
	_ "xmlstream/internal/sink/db/sqlite"
)
