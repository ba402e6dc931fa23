package config

import "time"

// Config is the complete runtime configuration for the dispatch service.
// Values load from defaults first, then environment variables; the env
// names mirror the deployment contract.
type Config struct {
	Server   ServerConfig   `koanf:"server"   validate:"required"`
	Database DatabaseConfig `koanf:"database" validate:"required"`
	Dispatch DispatchConfig `koanf:"dispatch" validate:"required"`
	Runtime  RuntimeConfig  `koanf:"runtime"  validate:"required"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host        string        `koanf:"host"         env:"SERVER_HOST"`
	Port        int           `koanf:"port"         env:"SERVER_PORT"         validate:"min=1,max=65535"`
	CORSEnabled bool          `koanf:"cors_enabled" env:"SERVER_CORS_ENABLED"`
	Timeout     time.Duration `koanf:"timeout"      env:"SERVER_TIMEOUT"`
	JWTSecret   string        `koanf:"jwt_secret"   env:"JWT_SECRET"          validate:"required"`
}

// DatabaseConfig contains database connection configuration.
// Prefer ConnString; when empty a DSN is synthesized from the fields.
type DatabaseConfig struct {
	ConnString string `koanf:"conn_string" env:"DB_CONN_STRING"`
	Host       string `koanf:"host"        env:"DB_HOST"`
	Port       string `koanf:"port"        env:"DB_PORT"`
	User       string `koanf:"user"        env:"DB_USER"`
	Password   string `koanf:"password"    env:"DB_PASSWORD"`
	DBName     string `koanf:"name"        env:"DB_NAME"`
	SSLMode    string `koanf:"ssl_mode"    env:"DB_SSL_MODE"`
}

// DispatchConfig contains the dispatch/attendance policy constants.
type DispatchConfig struct {
	DefaultTimezone string `koanf:"default_timezone"  env:"TZ_DEFAULT"        validate:"required"`
	DefaultBreakMin int    `koanf:"default_break_min" env:"DEFAULT_BREAK_MIN" validate:"min=0"`
	// ToleranceWindowMin is parsed and carried but does not gate
	// auto-approval; the decision table uses the same-day test only.
	ToleranceWindowMin int     `koanf:"tolerance_window_min" env:"TOLERANCE_WINDOW_MIN" validate:"min=0"`
	GeoRadiusM         float64 `koanf:"geo_radius_m"         env:"GEO_RADIUS_M_DEFAULT" validate:"min=0"`
	ReasonMinChars     int     `koanf:"reason_min_chars"     env:"REQUIRE_REASON_MIN_CHARS" validate:"min=1"`
	EnablePush         bool    `koanf:"enable_push"          env:"ENABLE_PUSH"`
	EnableEmail        bool    `koanf:"enable_email"         env:"ENABLE_EMAIL"`
}

// RuntimeConfig contains runtime behavior configuration.
type RuntimeConfig struct {
	Environment string `koanf:"environment" env:"RUNTIME_ENVIRONMENT" validate:"oneof=development staging production"`
	LogLevel    string `koanf:"log_level"   env:"RUNTIME_LOG_LEVEL"   validate:"oneof=debug info warn error"`
	LogJSON     bool   `koanf:"log_json"    env:"RUNTIME_LOG_JSON"`
}

// Default returns a Config with development defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        3000,
			CORSEnabled: true,
			Timeout:     15 * time.Second,
			JWTSecret:   "dev-secret-do-not-use",
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    "5432",
			User:    "dispatch",
			DBName:  "dispatch",
			SSLMode: "disable",
		},
		Dispatch: DispatchConfig{
			DefaultTimezone:    "America/Vancouver",
			DefaultBreakMin:    30,
			ToleranceWindowMin: 0,
			GeoRadiusM:         150,
			ReasonMinChars:     5,
			EnablePush:         true,
			EnableEmail:        true,
		},
		Runtime: RuntimeConfig{
			Environment: "development",
			LogLevel:    "info",
		},
	}
}
