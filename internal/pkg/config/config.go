package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is the full environment surface of the service. Values come from an
// env file when present, overridden by real environment variables.
type Config struct {
	ServerPort  string `mapstructure:"SERVER_PORT"`
	ServiceName string `mapstructure:"SERVICE_NAME"`

	DBHost     string `mapstructure:"POSTGRES_HOST"`
	DBPort     string `mapstructure:"POSTGRES_PORT"`
	DBUser     string `mapstructure:"POSTGRES_USER"`
	DBPassword string `mapstructure:"POSTGRES_PASSWORD"`
	DBName     string `mapstructure:"POSTGRES_DB"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"` // comma separated
	KafkaTopic   string `mapstructure:"KAFKA_TOPIC"`

	VNPayTmnCode    string `mapstructure:"VNPAY_TMN_CODE"`
	VNPayHashSecret string `mapstructure:"VNPAY_HASH_SECRET"`
	VNPayPayURL     string `mapstructure:"VNPAY_PAY_URL"`
	VNPayReturnURL  string `mapstructure:"VNPAY_RETURN_URL"`

	MoMoPartnerCode string `mapstructure:"MOMO_PARTNER_CODE"`
	MoMoAccessKey   string `mapstructure:"MOMO_ACCESS_KEY"`
	MoMoSecretKey   string `mapstructure:"MOMO_SECRET_KEY"`
	MoMoEndpoint    string `mapstructure:"MOMO_ENDPOINT"`
	MoMoRedirectURL string `mapstructure:"MOMO_REDIRECT_URL"`
	MoMoIPNURL      string `mapstructure:"MOMO_IPN_URL"`
	MoMoAllowedIPs  string `mapstructure:"MOMO_ALLOWED_IPS"` // comma separated, ip or cidr

	GHNToken        string `mapstructure:"GHN_TOKEN"`
	GHNShopID       int    `mapstructure:"GHN_SHOP_ID"`
	GHNBaseURL      string `mapstructure:"GHN_BASE_URL"`
	GHNFromDistrict int    `mapstructure:"GHN_FROM_DISTRICT"`
}

func (c *Config) Brokers() []string {
	return splitList(c.KafkaBrokers)
}

func (c *Config) MoMoAllowList() []string {
	return splitList(c.MoMoAllowedIPs)
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Loader reads the config and can hot-reload it on file change. The current
// snapshot is read through Current; callers must not hold the pointer across
// reloads if they want fresh secrets.
type Loader struct {
	v  *viper.Viper
	mu sync.RWMutex
	cf *Config
}

// Load reads path (an .env style file) when it exists, then overlays real
// environment variables.
func Load(path string) (*Loader, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine: the environment alone can be complete.
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cf := &Config{}
	if err := v.Unmarshal(cf); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &Loader{v: v, cf: cf}, nil
}

// Watch re-reads the file on change. onReload is called with the new snapshot
// after a successful reload and is never called for a broken file.
func (l *Loader) Watch(onReload func(*Config)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		cf := &Config{}
		if err := l.v.ReadInConfig(); err != nil {
			return
		}
		if err := l.v.Unmarshal(cf); err != nil {
			return
		}
		l.mu.Lock()
		l.cf = cf
		l.mu.Unlock()
		if onReload != nil {
			onReload(cf)
		}
	})
	l.v.WatchConfig()
}

func (l *Loader) Current() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cf
}
