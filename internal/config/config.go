package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Ledger        LedgerConfig        `mapstructure:"ledger"`
	Match         MatchConfig         `mapstructure:"match"`
	Wallet        WalletConfig        `mapstructure:"wallet"`
	WhatsApp      WhatsAppConfig      `mapstructure:"whatsapp"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	Admin         AdminConfig         `mapstructure:"admin"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Snapshot      SnapshotConfig      `mapstructure:"snapshot"`
	Listener      ListenerConfig      `mapstructure:"listener"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int  `mapstructure:"port"`
	ReadTimeout  int  `mapstructure:"read_timeout"`
	WriteTimeout int  `mapstructure:"write_timeout"`
	CORSEnabled  bool `mapstructure:"cors_enabled"`
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Path            string `mapstructure:"path"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// DSN 按驱动生成数据库连接串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			d.User, d.Password, d.Host, d.Port, d.DBName)
	case "postgres":
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
			d.Host, d.User, d.Password, d.DBName, d.Port, d.SSLMode)
	default:
		return d.Path + "?_busy_timeout=5000&_journal_mode=WAL"
	}
}

type LedgerConfig struct {
	RPCURL          string `mapstructure:"rpc_url"`
	ChainID         int64  `mapstructure:"chain_id"`
	ContractAddress string `mapstructure:"contract_address"`
	PrivateKey      string `mapstructure:"private_key"`
	// 秒
	CallTimeout    int `mapstructure:"call_timeout"`
	ConfirmTimeout int `mapstructure:"confirm_timeout"`
	// 毫秒
	ReceiptPollInterval int `mapstructure:"receipt_poll_interval"`
}

// Configured 是否已配置合约地址
func (l *LedgerConfig) Configured() bool {
	return l.ContractAddress != ""
}

type SideConfig struct {
	Name     string   `mapstructure:"name"`
	Keywords []string `mapstructure:"keywords"`
}

type MatchConfig struct {
	SideA SideConfig `mapstructure:"side_a"`
	SideB SideConfig `mapstructure:"side_b"`
}

// Sides 按账本顺序返回双方名称
func (m *MatchConfig) Sides() [2]string {
	return [2]string{m.SideA.Name, m.SideB.Name}
}

type WalletConfig struct {
	Salt string `mapstructure:"salt"`
}

type WhatsAppConfig struct {
	VerifyToken string `mapstructure:"verify_token"`
	AccessToken string `mapstructure:"access_token"`
	APIVersion  string `mapstructure:"api_version"`
	GraphURL    string `mapstructure:"graph_url"`
}

type TranscriptionConfig struct {
	GroqAPIKey   string `mapstructure:"groq_api_key"`
	GroqURL      string `mapstructure:"groq_url"`
	OpenAIAPIKey string `mapstructure:"openai_api_key"`
	OpenAIURL    string `mapstructure:"openai_url"`
	Language     string `mapstructure:"language"`
	Timeout      int    `mapstructure:"timeout"`
}

type AdminConfig struct {
	Password  string `mapstructure:"password"`
	JWTSecret string `mapstructure:"jwt_secret"`
	TokenTTL  int    `mapstructure:"token_ttl"` // minutes
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	DedupTTL int    `mapstructure:"dedup_ttl"` // seconds
}

type SnapshotConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Cron          string `mapstructure:"cron"`
	RetentionDays int    `mapstructure:"retention_days"`
}

type ListenerConfig struct {
	Enabled            bool  `mapstructure:"enabled"`
	StartBlock         int64 `mapstructure:"start_block"`
	ConfirmationBlocks int   `mapstructure:"confirmation_blocks"`
	PullInterval       int   `mapstructure:"pull_interval"`
	BatchSize          int   `mapstructure:"batch_size"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 180)
	v.SetDefault("server.cors_enabled", true)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "omnitip.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "omnitip")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)

	v.SetDefault("ledger.rpc_url", "https://opbnb-testnet-rpc.bnbchain.org")
	v.SetDefault("ledger.chain_id", 5611)
	v.SetDefault("ledger.contract_address", "")
	v.SetDefault("ledger.private_key", "")
	v.SetDefault("ledger.call_timeout", 30)
	v.SetDefault("ledger.confirm_timeout", 120)
	v.SetDefault("ledger.receipt_poll_interval", 1000)

	v.SetDefault("match.side_a.name", "England")
	v.SetDefault("match.side_a.keywords", []string{"england", "inglaterra"})
	v.SetDefault("match.side_b.name", "Argentina")
	v.SetDefault("match.side_b.keywords", []string{"argentina"})

	v.SetDefault("wallet.salt", "omnitip-salt")

	v.SetDefault("whatsapp.verify_token", "omnitip-verify-token")
	v.SetDefault("whatsapp.access_token", "")
	v.SetDefault("whatsapp.api_version", "v21.0")
	v.SetDefault("whatsapp.graph_url", "https://graph.facebook.com")

	v.SetDefault("transcription.groq_api_key", "")
	v.SetDefault("transcription.groq_url", "https://api.groq.com/openai/v1/audio/transcriptions")
	v.SetDefault("transcription.openai_api_key", "")
	v.SetDefault("transcription.openai_url", "https://api.openai.com/v1/audio/transcriptions")
	v.SetDefault("transcription.language", "en")
	v.SetDefault("transcription.timeout", 60)

	v.SetDefault("admin.password", "")
	v.SetDefault("admin.jwt_secret", "")
	v.SetDefault("admin.token_ttl", 720)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.dedup_ttl", 86400)

	v.SetDefault("snapshot.enabled", true)
	v.SetDefault("snapshot.cron", "*/30 * * * * *")
	v.SetDefault("snapshot.retention_days", 7)

	v.SetDefault("listener.enabled", false)
	v.SetDefault("listener.start_block", 0)
	v.SetDefault("listener.confirmation_blocks", 2)
	v.SetDefault("listener.pull_interval", 10)
	v.SetDefault("listener.batch_size", 500)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
}

// legacyEnv 兼容旧部署使用的环境变量名
var legacyEnv = map[string]string{
	"ledger.private_key":           "PRIVATE_KEY",
	"ledger.contract_address":      "NEXT_PUBLIC_CONTRACT_ADDRESS",
	"ledger.chain_id":              "NEXT_PUBLIC_CHAIN_ID",
	"wallet.salt":                  "WALLET_SALT",
	"whatsapp.verify_token":        "WHATSAPP_VERIFY_TOKEN",
	"whatsapp.access_token":        "WHATSAPP_ACCESS_TOKEN",
	"transcription.groq_api_key":   "GROQ_API_KEY",
	"transcription.openai_api_key": "OPENAI_API_KEY",
}

// LoadEnvFiles 将 .env 文件加载到进程环境变量
// 文件不存在时跳过，已存在的变量不会被覆盖
func LoadEnvFiles(paths ...string) {
	for _, p := range paths {
		_ = godotenv.Load(p)
	}
}

func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("OMNITIP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		envKey := "OMNITIP_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	a := strings.TrimSpace(c.Match.SideA.Name)
	b := strings.TrimSpace(c.Match.SideB.Name)
	if a == "" || b == "" {
		return fmt.Errorf("both match sides need a name")
	}
	if strings.EqualFold(a, b) {
		return fmt.Errorf("match sides must differ, got %q twice", a)
	}
	if len(c.Match.SideA.Keywords) == 0 {
		return fmt.Errorf("match.side_a.keywords must not be empty")
	}

	switch c.Database.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Ledger.Configured() && c.Ledger.ChainID <= 0 {
		return fmt.Errorf("ledger.chain_id must be positive when a contract is configured")
	}

	return nil
}
