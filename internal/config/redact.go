package config

import (
	"fmt"
	"net/url"
	"strings"
)

const redactedValue = "redacted"

// FormatRedacted renders the resolved configuration for operators with
// secrets masked.
func FormatRedacted(cfg Config) string {
	lines := []string{
		fmt.Sprintf("port: %d", cfg.Port),
		fmt.Sprintf("guild_id: %s", cfg.GuildID),
		fmt.Sprintf("stats_backend: %s", cfg.StatsBackend),
	}

	switch cfg.StatsBackend {
	case BackendMongo:
		lines = append(lines,
			fmt.Sprintf("mongo_uri: %s", redactURI(cfg.MongoURI)),
			fmt.Sprintf("mongo_db: %s", cfg.MongoDB),
		)
	default:
		lines = append(lines,
			fmt.Sprintf("db_addr: %s", cfg.DBAddr()),
			fmt.Sprintf("db_user: %s", cfg.DBUser),
			fmt.Sprintf("db_password: %s", redactSecret(cfg.DBPassword)),
			fmt.Sprintf("db_name: %s", cfg.DBName),
		)
	}

	lines = append(lines,
		fmt.Sprintf("app_env: %s", cfg.AppEnv),
		fmt.Sprintf("log_level: %s", cfg.LogLevel),
		fmt.Sprintf("log_file: %s", firstNonEmpty(cfg.LogFile, "-")),
		fmt.Sprintf("site_dir: %s", cfg.SiteDir),
		fmt.Sprintf("query_timeout: %s", cfg.QueryTimeout),
	)

	return strings.Join(lines, "\n")
}

func redactSecret(secret string) string {
	if secret == "" {
		return "(empty)"
	}
	return redactedValue
}

// redactURI drops userinfo from a connection string, keeping host and path.
func redactURI(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return redactedValue
	}

	parsed.User = nil
	return parsed.String()
}
