// Package config defines the environment contract for the stats site and
// handles loading and validating it at startup.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/joho/godotenv"
)

const (
	// Canonical environment variable keys.
	KeyPort         = "PORT"
	KeyGuildID      = "GUILD_ID"
	KeyDBHost       = "DB_HOST"
	KeyDBPort       = "DB_PORT"
	KeyDBUser       = "DB_USER"
	KeyDBPassword   = "DB_PASSWORD"
	KeyDBName       = "DB_NAME"
	KeyAppEnv       = "APP_ENV"
	KeyLogLevel     = "LOG_LEVEL"
	KeyLogFile      = "LOG_FILE"
	KeySiteDir      = "SITE_DIR"
	KeyQueryTimeout = "QUERY_TIMEOUT"
	KeyStatsBackend = "STATS_BACKEND"
	KeyMongoURI     = "MONGO_URI"
	KeyMongoDB      = "MONGO_DB"

	// Allowed environment values.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Supported snapshot backends.
	BackendMySQL = "mysql"
	BackendMongo = "mongo"

	// Defaults for optional settings.
	DefaultPort         = 3000
	DefaultDBPort       = 3306
	DefaultAppEnv       = EnvProduction
	DefaultLogLevel     = "info"
	DefaultSiteDir      = "site"
	DefaultQueryTimeout = 10 * time.Second
	DefaultStatsBackend = BackendMySQL
)

// VarSpec describes a single configuration key.
type VarSpec struct {
	Key         string // environment variable name
	Example     string // human-friendly sample value
	Required    bool   // whether the site must refuse to start without this value
	Default     string // default when unset (empty when required)
	Description string // what the variable controls
	Notes       string // extra guidance or policies
}

// Contract enumerates the authoritative configuration keys for the site.
// A .env file in the working directory is read when present but never
// overrides variables already supplied by the runtime.
var Contract = []VarSpec{
	{
		Key:         KeyPort,
		Example:     strconv.Itoa(DefaultPort),
		Default:     strconv.Itoa(DefaultPort),
		Description: "HTTP listen port for the site and API.",
	},
	{
		Key:         KeyGuildID,
		Example:     "123456789012345678",
		Required:    true,
		Description: "Guild served by /api/stats when no guildId query parameter is given.",
	},
	{
		Key:         KeyDBHost,
		Example:     "localhost",
		Required:    true,
		Description: "MySQL host.",
		Notes:       "Required only when " + KeyStatsBackend + "=" + BackendMySQL + ".",
	},
	{
		Key:         KeyDBPort,
		Example:     strconv.Itoa(DefaultDBPort),
		Default:     strconv.Itoa(DefaultDBPort),
		Description: "MySQL port.",
	},
	{
		Key:         KeyDBUser,
		Example:     "stats_reader",
		Required:    true,
		Description: "MySQL user.",
		Notes:       "A read-only grant on guild_stats_latest is enough.",
	},
	{
		Key:         KeyDBPassword,
		Example:     "secret",
		Description: "MySQL password.",
	},
	{
		Key:         KeyDBName,
		Example:     "guild_stats",
		Required:    true,
		Description: "MySQL database holding guild_stats_latest.",
	},
	{
		Key:         KeyAppEnv,
		Example:     EnvDevelopment + " / " + EnvProduction,
		Default:     DefaultAppEnv,
		Description: "Runtime environment; controls log format.",
	},
	{
		Key:         KeyLogLevel,
		Example:     DefaultLogLevel,
		Default:     DefaultLogLevel,
		Description: "Overrides default log level.",
	},
	{
		Key:         KeyLogFile,
		Example:     "/var/log/guild-stats/site.log",
		Description: "Optional rotated log file written alongside stderr.",
	},
	{
		Key:         KeySiteDir,
		Example:     DefaultSiteDir,
		Default:     DefaultSiteDir,
		Description: "Directory holding index.html and the assets/ folder.",
	},
	{
		Key:         KeyQueryTimeout,
		Example:     DefaultQueryTimeout.String(),
		Default:     DefaultQueryTimeout.String(),
		Description: "Upper bound for waiting on the pool plus running the stats query.",
	},
	{
		Key:         KeyStatsBackend,
		Example:     BackendMySQL + " / " + BackendMongo,
		Default:     DefaultStatsBackend,
		Description: "Where snapshots are read from.",
	},
	{
		Key:         KeyMongoURI,
		Example:     "mongodb://localhost:27017",
		Description: "MongoDB connection string.",
		Notes:       "Required only when " + KeyStatsBackend + "=" + BackendMongo + ".",
	},
	{
		Key:         KeyMongoDB,
		Example:     "guild_stats",
		Description: "MongoDB database name.",
		Notes:       "Required only when " + KeyStatsBackend + "=" + BackendMongo + ".",
	},
}

// Config mirrors resolved configuration values after loading.
type Config struct {
	Port         int
	GuildID      string
	DBHost       string
	DBPort       int
	DBUser       string
	DBPassword   string
	DBName       string
	AppEnv       string
	LogLevel     string
	LogFile      string
	SiteDir      string
	QueryTimeout time.Duration
	StatsBackend string
	MongoURI     string
	MongoDB      string
}

// Load resolves configuration from the environment, reading .env first when
// one exists in the working directory.
func Load() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:         DefaultPort,
		GuildID:      strings.TrimSpace(os.Getenv(KeyGuildID)),
		DBHost:       strings.TrimSpace(os.Getenv(KeyDBHost)),
		DBPort:       DefaultDBPort,
		DBUser:       strings.TrimSpace(os.Getenv(KeyDBUser)),
		DBPassword:   os.Getenv(KeyDBPassword),
		DBName:       strings.TrimSpace(os.Getenv(KeyDBName)),
		AppEnv:       firstNonEmpty(normalizeEnv(os.Getenv(KeyAppEnv)), DefaultAppEnv),
		LogLevel:     firstNonEmpty(os.Getenv(KeyLogLevel), DefaultLogLevel),
		LogFile:      strings.TrimSpace(os.Getenv(KeyLogFile)),
		SiteDir:      firstNonEmpty(os.Getenv(KeySiteDir), DefaultSiteDir),
		QueryTimeout: DefaultQueryTimeout,
		StatsBackend: firstNonEmpty(normalizeEnv(os.Getenv(KeyStatsBackend)), DefaultStatsBackend),
		MongoURI:     strings.TrimSpace(os.Getenv(KeyMongoURI)),
		MongoDB:      strings.TrimSpace(os.Getenv(KeyMongoDB)),
	}

	if err := validateAppEnv(cfg.AppEnv); err != nil {
		return Config{}, err
	}
	if err := validateBackend(cfg.StatsBackend); err != nil {
		return Config{}, err
	}

	missing := make([]string, 0)

	if cfg.GuildID == "" {
		missing = append(missing, KeyGuildID)
	}

	switch cfg.StatsBackend {
	case BackendMySQL:
		if cfg.DBHost == "" {
			missing = append(missing, KeyDBHost)
		}
		if cfg.DBUser == "" {
			missing = append(missing, KeyDBUser)
		}
		if cfg.DBName == "" {
			missing = append(missing, KeyDBName)
		}
	case BackendMongo:
		if cfg.MongoURI == "" {
			missing = append(missing, KeyMongoURI)
		}
		if cfg.MongoDB == "" {
			missing = append(missing, KeyMongoDB)
		}
	}

	if len(missing) > 0 {
		return Config{}, errors.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	var err error
	if cfg.Port, err = portFromEnv(KeyPort, DefaultPort); err != nil {
		return Config{}, err
	}
	if cfg.DBPort, err = portFromEnv(KeyDBPort, DefaultDBPort); err != nil {
		return Config{}, err
	}

	if raw := strings.TrimSpace(os.Getenv(KeyQueryTimeout)); raw != "" {
		timeout, parseErr := time.ParseDuration(raw)
		if parseErr != nil {
			return Config{}, errors.Wrapf(parseErr, "invalid %s", KeyQueryTimeout)
		}
		if timeout <= 0 {
			return Config{}, errors.Errorf("%s must be greater than 0", KeyQueryTimeout)
		}
		cfg.QueryTimeout = timeout
	}

	if cfg.StatsBackend == BackendMongo {
		if err := validateMongoURI(cfg.MongoURI); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

// IsDevelopment reports if APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// DBAddr joins the MySQL host and port.
func (c Config) DBAddr() string {
	return c.DBHost + ":" + strconv.Itoa(c.DBPort)
}

func loadDotEnv() error {
	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return errors.Wrap(err, "load .env")
	}

	return nil
}

func portFromEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}

	port, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	if port <= 0 || port > 65535 {
		return 0, errors.Errorf("%s must be between 1 and 65535", key)
	}

	return port, nil
}

func validateAppEnv(appEnv string) error {
	if appEnv == EnvDevelopment || appEnv == EnvProduction {
		return nil
	}

	return errors.Errorf("invalid %s: must be %q or %q", KeyAppEnv, EnvDevelopment, EnvProduction)
}

func validateBackend(backend string) error {
	if backend == BackendMySQL || backend == BackendMongo {
		return nil
	}

	return errors.Errorf("invalid %s: must be %q or %q", KeyStatsBackend, BackendMySQL, BackendMongo)
}

func validateMongoURI(uri string) error {
	if strings.HasPrefix(uri, "mongodb://") || strings.HasPrefix(uri, "mongodb+srv://") {
		return nil
	}

	return errors.Errorf("invalid %s: must start with mongodb:// or mongodb+srv://", KeyMongoURI)
}

func normalizeEnv(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}
