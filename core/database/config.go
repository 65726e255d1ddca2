package database

// Config holds configuration for the history database connection.
type Config struct {
	// Driver selects the backend: sqlite (default) or mysql.
	Driver string `mapstructure:"driver" default:"sqlite"`
	// Path is the database file for the sqlite driver.
	Path string `mapstructure:"path" default:"bag-sniper.db"`
	// DSN is the connection string for the mysql driver.
	DSN string `mapstructure:"dsn" default:""`
	// TimeoutSeconds is the connection verification timeout in seconds.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
}
