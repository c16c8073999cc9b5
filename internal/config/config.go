package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env      string `yaml:"app_env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
		// MaxBodyBytes limita el body de los POST/PUT JSON.
		MaxBodyBytes int64 `yaml:"max_body_bytes"`
	} `yaml:"server"`

	Storage struct {
		Driver   string `yaml:"driver"` // postgres | memory
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns        int    `yaml:"max_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	JWT struct {
		Issuer string `yaml:"issuer"`
		Secret string `yaml:"secret"`
	} `yaml:"jwt"`

	Rate struct {
		Enabled bool `yaml:"enabled"`

		// HTTP edge (por IP, fixed window en Redis)
		HTTP struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"http"`

		// Presupuesto de sync por actor (sliding window en el ledger)
		Sync struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"sync"`
	} `yaml:"rate"`

	Mgmt struct {
		BaseURL      string   `yaml:"base_url"`
		ProjectRef   string   `yaml:"project_ref"`
		Token        string   `yaml:"token"`
		AllowedHosts []string `yaml:"allowed_hosts"`
		Timeout      string   `yaml:"timeout"`
	} `yaml:"mgmt"`

	SMTP struct {
		Host               string `yaml:"host"`
		Port               int    `yaml:"port"`
		Username           string `yaml:"username"`
		Password           string `yaml:"password"`
		From               string `yaml:"from"`
		TLS                string `yaml:"tls"`                  // auto | starttls | ssl | none
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"` // sólo dev
	} `yaml:"smtp"`

	Templates struct {
		CacheTTL string `yaml:"cache_ttl"`
		// Fallbacks configurados por clave canónica para la degradación
		// allowlist de templates auth-critical.
		Fallbacks map[string]string `yaml:"fallbacks"`
	} `yaml:"templates"`

	Flags struct {
		Migrate bool `yaml:"migrate"`
	} `yaml:"flags"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 16 << 10
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "postgres"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "2m"
	}
	if c.Rate.HTTP.Limit == 0 {
		c.Rate.HTTP.Limit = 60
	}
	if c.Rate.HTTP.Window == "" {
		c.Rate.HTTP.Window = "1m"
	}
	if c.Rate.Sync.Limit == 0 {
		c.Rate.Sync.Limit = 10
	}
	if c.Rate.Sync.Window == "" {
		c.Rate.Sync.Window = "10m"
	}
	if c.Mgmt.Timeout == "" {
		c.Mgmt.Timeout = "10s"
	}
	if c.SMTP.TLS == "" {
		c.SMTP.TLS = "auto"
	}
	if c.Templates.CacheTTL == "" {
		c.Templates.CacheTTL = "30s"
	}

	// validate string durations
	for _, d := range []string{
		c.Storage.Postgres.ConnMaxLifetime,
		c.Cache.Memory.DefaultTTL,
		c.Rate.HTTP.Window,
		c.Rate.Sync.Window,
		c.Mgmt.Timeout,
		c.Templates.CacheTTL,
	} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return nil, err
		}
	}

	// Overrides por env + salvaguarda prod
	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Dur parsea una duración ya validada por Load. Cadena vacía da 0.
func Dur(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, _ := time.ParseDuration(s)
	return d
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		if strings.TrimSpace(s) == "" {
			return []string{}, true
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.App.LogLevel = strings.ToLower(v)
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvCSV("SERVER_CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}
	if v, ok := getEnvInt("SERVER_MAX_BODY_BYTES"); ok {
		c.Server.MaxBodyBytes = int64(v)
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_CONNS"); ok {
		c.Storage.Postgres.MaxConns = v
	}
	if v, ok := getEnvStr("POSTGRES_CONN_MAX_LIFETIME"); ok {
		c.Storage.Postgres.ConnMaxLifetime = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}
	if v, ok := getEnvStr("CACHE_MEMORY_DEFAULT_TTL"); ok {
		c.Cache.Memory.DefaultTTL = v
	}

	// JWT
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvStr("JWT_SECRET"); ok {
		c.JWT.Secret = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvInt("RATE_HTTP_LIMIT"); ok {
		c.Rate.HTTP.Limit = v
	}
	if v, ok := getEnvStr("RATE_HTTP_WINDOW"); ok {
		c.Rate.HTTP.Window = v
	}
	if v, ok := getEnvInt("RATE_SYNC_LIMIT"); ok {
		c.Rate.Sync.Limit = v
	}
	if v, ok := getEnvStr("RATE_SYNC_WINDOW"); ok {
		c.Rate.Sync.Window = v
	}

	// MGMT (el token casi siempre llega por env, nunca al YAML versionado)
	if v, ok := getEnvStr("MGMT_BASE_URL"); ok {
		c.Mgmt.BaseURL = v
	}
	if v, ok := getEnvStr("MGMT_PROJECT_REF"); ok {
		c.Mgmt.ProjectRef = v
	}
	if v, ok := getEnvStr("MGMT_TOKEN"); ok {
		c.Mgmt.Token = v
	}
	if v, ok := getEnvCSV("MGMT_ALLOWED_HOSTS"); ok {
		c.Mgmt.AllowedHosts = v
	}
	if v, ok := getEnvStr("MGMT_TIMEOUT"); ok {
		c.Mgmt.Timeout = v
	}

	// SMTP
	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USERNAME"); ok {
		c.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_PASSWORD"); ok {
		c.SMTP.Password = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.SMTP.From = v
	}
	if v, ok := getEnvStr("SMTP_TLS"); ok {
		c.SMTP.TLS = strings.ToLower(v)
	}
	if v, ok := getEnvBool("SMTP_INSECURE_SKIP_VERIFY"); ok {
		c.SMTP.InsecureSkipVerify = v
	}

	// TEMPLATES
	if v, ok := getEnvStr("TEMPLATES_CACHE_TTL"); ok {
		c.Templates.CacheTTL = v
	}

	// FLAGS
	if v, ok := getEnvBool("FLAGS_MIGRATE"); ok {
		c.Flags.Migrate = v
	}
}

// Validate chequea los valores críticos para arrancar en serio.
// El modo memory relaja storage y mgmt para desarrollo.
func (c *Config) Validate() error {
	if c.Storage.Driver == "postgres" && strings.TrimSpace(c.Storage.DSN) == "" {
		return errors.New("config: storage.dsn is required for the postgres driver")
	}
	if strings.EqualFold(c.App.Env, "prod") {
		if strings.TrimSpace(c.JWT.Secret) == "" {
			return errors.New("config: jwt.secret is required in prod")
		}
		if strings.TrimSpace(c.Mgmt.Token) == "" {
			return errors.New("config: mgmt.token is required in prod")
		}
		if len(c.Mgmt.AllowedHosts) == 0 {
			return errors.New("config: mgmt.allowed_hosts is required in prod")
		}
	}
	return nil
}
