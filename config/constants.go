package config

const (
	// DefaultPort is the default port of the application server
	DefaultPort = 4001

	// DefaultAdminPort serves /sys endpoints apart from the API
	DefaultAdminPort = 4002

	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"

	DefaultBackend   = BackendSQLite
	DefaultDBDriver  = "sqlite3"
	DefaultDBPath    = "data/database.db"
	DefaultBoltPath  = "data/records.bolt"
	DefaultChunkSize = 327680

	// DefaultUserAgent is the default user-agent header
	DefaultUserAgent = "localstore"

	envPrefix = "localstore"
)
