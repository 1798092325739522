package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		Addr         string        `yaml:"addr"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		// MaxBodyBytes limita el tamaño de un bundle recibido por HTTP.
		MaxBodyBytes int64 `yaml:"max_body_bytes"`
	} `yaml:"server"`

	Storage struct {
		Driver   string `yaml:"driver"` // memory | postgres
		DSN      string `yaml:"dsn"`
		MaxConns int    `yaml:"max_conns"`
	} `yaml:"storage"`

	Realms struct {
		// AdminRealm es el realm administrativo (importado primero).
		AdminRealm string `yaml:"admin_realm"`
	} `yaml:"realms"`

	Import struct {
		// IGNORE_EXISTING | OVERWRITE_EXISTING | vacío (conflicto)
		Strategy string `yaml:"strategy"`
		// preserve | upper
		RequiredActionCase string        `yaml:"required_action_case"`
		CacheTTL           time.Duration `yaml:"cache_ttl"`
		// AllowedDir restringe los paths que acepta /admin/import/*.
		AllowedDir string `yaml:"allowed_dir"`
		Lock       struct {
			Kind string        `yaml:"kind"` // memory | redis
			TTL  time.Duration `yaml:"ttl"`
		} `yaml:"lock"`
		// RateLimit limita imports por principal; usa el mismo backend que Lock.
		// Max 0 lo desactiva.
		RateLimit struct {
			Max    int           `yaml:"max"`
			Window time.Duration `yaml:"window"`
		} `yaml:"rate_limit"`
	} `yaml:"import"`

	Credentials struct {
		PasswordAlgorithm string `yaml:"password_algorithm"`
	} `yaml:"credentials"`

	Security struct {
		SecretboxMasterKey    string `yaml:"secretbox_master_key"`
		PasswordBlacklistPath string `yaml:"password_blacklist_path"`
	} `yaml:"security"`

	JWT struct {
		SigningKey string `yaml:"signing_key"`
		IssuerBase string `yaml:"issuer_base"`
	} `yaml:"jwt"`

	Redis struct {
		Addr   string `yaml:"addr"`
		DB     int    `yaml:"db"`
		Prefix string `yaml:"prefix"`
	} `yaml:"redis"`
}

// Load lee el YAML, aplica defaults y overrides por env y valida.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := c.finish(); err != nil {
		return nil, err
	}

	// ruta de blacklist relativa al directorio del YAML
	if p := strings.TrimSpace(c.Security.PasswordBlacklistPath); p != "" && !filepath.IsAbs(p) {
		c.Security.PasswordBlacklistPath = filepath.Clean(filepath.Join(filepath.Dir(path), p))
	}
	return &c, nil
}

// LoadOrDefault usa Load si path existe; si path está vacío o no existe arma
// la config sólo con defaults y env.
func LoadOrDefault(path string) (*Config, error) {
	if strings.TrimSpace(path) != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	var c Config
	if err := c.finish(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) finish() error {
	c.applyDefaults()
	c.applyEnvOverrides()
	return c.Validate()
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 5 * time.Minute
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 64 << 20
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.MaxConns == 0 {
		c.Storage.MaxConns = 10
	}
	if c.Realms.AdminRealm == "" {
		c.Realms.AdminRealm = "master"
	}
	if c.Import.RequiredActionCase == "" {
		c.Import.RequiredActionCase = "preserve"
	}
	if c.Import.CacheTTL == 0 {
		c.Import.CacheTTL = 5 * time.Minute
	}
	if c.Import.Lock.Kind == "" {
		c.Import.Lock.Kind = "memory"
	}
	if c.Import.Lock.TTL == 0 {
		c.Import.Lock.TTL = 5 * time.Minute
	}
	if c.Import.RateLimit.Window == 0 {
		c.Import.RateLimit.Window = time.Minute
	}
	if c.Credentials.PasswordAlgorithm == "" {
		c.Credentials.PasswordAlgorithm = "pbkdf2-sha256"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "realmport:"
	}
}

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

func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}

func (c *Config) applyEnvOverrides() {
	// APP / LOG
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("STORAGE_MAX_CONNS"); ok {
		c.Storage.MaxConns = v
	}

	// REALMS / IMPORT
	if v, ok := getEnvStr("ADMIN_REALM"); ok {
		c.Realms.AdminRealm = v
	}
	if v, ok := getEnvStr("IMPORT_STRATEGY"); ok {
		c.Import.Strategy = v
	}
	if v, ok := getEnvStr("REQUIRED_ACTION_CASE"); ok {
		c.Import.RequiredActionCase = v
	}
	if v, ok := getEnvDur("IMPORT_CACHE_TTL"); ok {
		c.Import.CacheTTL = v
	}
	if v, ok := getEnvStr("IMPORT_ALLOWED_DIR"); ok {
		c.Import.AllowedDir = v
	}
	if v, ok := getEnvStr("IMPORT_LOCK_KIND"); ok {
		c.Import.Lock.Kind = v
	}
	if v, ok := getEnvDur("IMPORT_LOCK_TTL"); ok {
		c.Import.Lock.TTL = v
	}
	if v, ok := getEnvInt("IMPORT_RATE_LIMIT_MAX"); ok {
		c.Import.RateLimit.Max = v
	}
	if v, ok := getEnvDur("IMPORT_RATE_LIMIT_WINDOW"); ok {
		c.Import.RateLimit.Window = v
	}
	if v, ok := getEnvStr("PASSWORD_ALGORITHM"); ok {
		c.Credentials.PasswordAlgorithm = v
	}

	// SECURITY / JWT
	if v, ok := getEnvStr("SECRETBOX_MASTER_KEY"); ok {
		c.Security.SecretboxMasterKey = v
	}
	if v, ok := getEnvStr("PASSWORD_BLACKLIST_PATH"); ok {
		c.Security.PasswordBlacklistPath = v
	}
	if v, ok := getEnvStr("JWT_SIGNING_KEY"); ok {
		c.JWT.SigningKey = v
	}
	if v, ok := getEnvStr("JWT_ISSUER_BASE"); ok {
		c.JWT.IssuerBase = v
	}

	// REDIS
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Redis.Prefix = v
	}
}

// Validate revisa combinaciones que no pueden funcionar.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			errs = append(errs, errors.New("storage.dsn es requerido con driver postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver desconocido: %q", c.Storage.Driver))
	}
	switch strings.ToUpper(c.Import.Strategy) {
	case "", "FAIL", "IGNORE_EXISTING", "OVERWRITE_EXISTING":
	default:
		errs = append(errs, fmt.Errorf("import.strategy desconocida: %q", c.Import.Strategy))
	}
	switch strings.ToLower(c.Import.RequiredActionCase) {
	case "preserve", "upper":
	default:
		errs = append(errs, fmt.Errorf("import.required_action_case desconocido: %q", c.Import.RequiredActionCase))
	}
	switch c.Import.Lock.Kind {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr es requerido con import.lock.kind=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("import.lock.kind desconocido: %q", c.Import.Lock.Kind))
	}
	if c.Import.RateLimit.Max < 0 {
		errs = append(errs, errors.New("import.rate_limit.max no puede ser negativo"))
	}
	if strings.TrimSpace(c.Realms.AdminRealm) == "" {
		errs = append(errs, errors.New("realms.admin_realm no puede ser vacío"))
	}
	return errors.Join(errs...)
}
