package core

// AdapterConfig holds configuration for connecting to a database.
// Host and Port may point at a local SSH tunnel endpoint rather than the
// server named in the profile.
type AdapterConfig struct {
	Type     DatabaseType
	Path     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	UseSSL   bool
	Options  map[string]string
}
