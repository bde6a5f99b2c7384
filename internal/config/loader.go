package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends selectable with BOOKING_STORE.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config captures environment driven configuration values for the booking service.
type Config struct {
	Env             string
	HTTPPort        int
	Store           string
	SQLiteDSN       string
	PostgresDSN     string
	JWTSecret       string
	Location        *time.Location
	BusinessStart   time.Duration
	BusinessEnd     time.Duration
	SuggestionLimit int
	RecurrenceCap   int
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	AMQPURL         string
	CacheTTL        time.Duration
}

// Load reads .env from the working directory when present, then parses the
// process environment.
func Load() (Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit dotenv path. Values already present in the
// environment win over the file.
//
// Defaults are applied to optional fields; every missing or invalid variable
// is collected and reported in a single error.
func LoadFile(path string) (Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}

	cfg := Config{
		Env:             "development",
		HTTPPort:        8080,
		Store:           StoreSQLite,
		SQLiteDSN:       "roombooking.db",
		Location:        time.UTC,
		BusinessStart:   8 * time.Hour,
		BusinessEnd:     18 * time.Hour,
		SuggestionLimit: 3,
		RecurrenceCap:   366,
		CacheTTL:        30 * time.Second,
	}

	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 2)

	if env := lookup("BOOKING_ENV"); env != "" {
		cfg.Env = env
	}

	if portValue := lookup("BOOKING_HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "BOOKING_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if store := strings.ToLower(lookup("BOOKING_STORE")); store != "" {
		switch store {
		case StoreSQLite, StorePostgres, StoreMemory:
			cfg.Store = store
		default:
			invalid = append(invalid, "BOOKING_STORE")
		}
	}

	if dsn := lookup("BOOKING_SQLITE_DSN"); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	cfg.PostgresDSN = lookup("BOOKING_POSTGRES_DSN")
	if cfg.Store == StorePostgres && cfg.PostgresDSN == "" {
		missing = append(missing, "BOOKING_POSTGRES_DSN")
	}

	if secret := lookup("BOOKING_JWT_SECRET"); secret == "" {
		missing = append(missing, "BOOKING_JWT_SECRET")
	} else {
		cfg.JWTSecret = secret
	}

	if tz := lookup("BOOKING_TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			invalid = append(invalid, "BOOKING_TIMEZONE")
		} else {
			cfg.Location = loc
		}
	}

	if value := lookup("BOOKING_BUSINESS_START"); value != "" {
		offset, err := parseClock(value)
		if err != nil {
			invalid = append(invalid, "BOOKING_BUSINESS_START")
		} else {
			cfg.BusinessStart = offset
		}
	}

	if value := lookup("BOOKING_BUSINESS_END"); value != "" {
		offset, err := parseClock(value)
		if err != nil {
			invalid = append(invalid, "BOOKING_BUSINESS_END")
		} else {
			cfg.BusinessEnd = offset
		}
	}

	if cfg.BusinessStart >= cfg.BusinessEnd && !contains(invalid, "BOOKING_BUSINESS_START") && !contains(invalid, "BOOKING_BUSINESS_END") {
		invalid = append(invalid, "BOOKING_BUSINESS_END")
	}

	if value := lookup("BOOKING_SUGGESTION_LIMIT"); value != "" {
		limit, err := strconv.Atoi(value)
		if err != nil || limit <= 0 {
			invalid = append(invalid, "BOOKING_SUGGESTION_LIMIT")
		} else {
			cfg.SuggestionLimit = limit
		}
	}

	if value := lookup("BOOKING_RECURRENCE_CAP"); value != "" {
		hardCap, err := strconv.Atoi(value)
		if err != nil || hardCap <= 0 {
			invalid = append(invalid, "BOOKING_RECURRENCE_CAP")
		} else {
			cfg.RecurrenceCap = hardCap
		}
	}

	cfg.RedisAddr = lookup("BOOKING_REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("BOOKING_REDIS_PASSWORD")

	if value := lookup("BOOKING_REDIS_DB"); value != "" {
		db, err := strconv.Atoi(value)
		if err != nil || db < 0 {
			invalid = append(invalid, "BOOKING_REDIS_DB")
		} else {
			cfg.RedisDB = db
		}
	}

	cfg.AMQPURL = lookup("BOOKING_AMQP_URL")

	if value := lookup("BOOKING_CACHE_TTL"); value != "" {
		ttl, err := time.ParseDuration(value)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "BOOKING_CACHE_TTL")
		} else {
			cfg.CacheTTL = ttl
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("environment variables have invalid values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func lookup(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// parseClock parses an "HH:MM" wall-clock value into an offset from midnight.
func parseClock(value string) (time.Duration, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, err
	}
	return time.Duration(parsed.Hour())*time.Hour + time.Duration(parsed.Minute())*time.Minute, nil
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
