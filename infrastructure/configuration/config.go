package configuration

import (
	"fmt"
	"os"
	"strconv"

	"social-publisher/infrastructure/logger"

	"github.com/spf13/viper"
)

type Config struct {
	Database    Database    `json:"database"`
	App         App         `json:"app"`
	Pubsub      Pubsub      `json:"pubsub"`
	ServiceBus  ServiceBus  `json:"serviceBus"`
	RedisClient RedisClient `json:"redisClient"`
	Logger      Logger      `json:"logger"`
	OAuth       OAuth       `json:"oauth"`
	Platform    Platform    `json:"platform"`
	Vault       Vault       `json:"vault"`
	Scheduler   Scheduler   `json:"scheduler"`
}

type App struct {
	Port         int      `json:"port"`
	SecretKey    string   `json:"secretKey"`
	TLSEnabled   bool     `json:"tlsEnabled"`
	TLSCertFile  string   `json:"tlsCertFile"`
	TLSKeyFile   string   `json:"tlsKeyFile"`
	AllowOrigins []string `json:"allowOrigins"`
}

type Database struct {
	Psql  Db `json:"psql"`
	MySql Db `json:"mysql"`
	Mongo Db `json:"mongo"`
	Mssql Db `json:"mssql"`
	// Vendor selects the relational store for credentials and tasks: postgres | mssql | memory.
	Vendor string `json:"vendor"`
	// TaskStore overrides where scheduled tasks live: sql (default) | mongo | memory.
	TaskStore string `json:"taskStore"`
}

type Db struct {
	Name     string `json:"string"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type Pubsub struct {
	ProjectID string `json:"projectID"`
	Topic     string `json:"topic"`
}

type ServiceBus struct {
	Namespace string `json:"namespace"`
	Queue     string `json:"queue"`
}

type RedisClient struct {
	Host         string `json:"host"`
	Port         string `json:"port"`
	Password     string `json:"password"`
	DatabaseName string `json:"databaseName"`
	Username     string `json:"username"`
}

type Logger struct {
	Format string `json:"format"`
	Level  string `json:"level"`
}

// OAuth holds third-party platform OAuth client credentials
type OAuth struct {
	LinkedIn  OAuthClient `json:"linkedin"`
	Facebook  OAuthClient `json:"facebook"`
	Instagram OAuthClient `json:"instagram"`
}

type OAuthClient struct {
	ClientID     string   `json:"clientId"`
	ClientSecret string   `json:"clientSecret"`
	RedirectURI  string   `json:"redirectURI"`
	Scopes       []string `json:"scopes"`
}

type Vault struct {
	EncryptionKey string `json:"encryptionKey"`
}

type Scheduler struct {
	Timezone                string `json:"timezone"`
	MissedGraceSeconds      int    `json:"missedGraceSeconds"`
	ExecutionTimeoutSeconds int    `json:"executionTimeoutSeconds"`
	LockTTLSeconds          int    `json:"lockTTLSeconds"`
}

var C Config

func init() {
	LoadConfig()
	initDatabase(&C)
	initApp(&C)
	initVault(&C)
	initPlatform(&C)
	initScheduler(&C)
	logger.SetLevel(C.Logger.Level)
	if C.App.TLSEnabled {
		for _, client := range []*OAuthClient{&C.OAuth.LinkedIn, &C.OAuth.Facebook, &C.OAuth.Instagram} {
			if client.RedirectURI != "" && !hasHTTPS(client.RedirectURI) {
				client.RedirectURI = toHTTPSCallback(client.RedirectURI)
			}
		}
	}
}

func LoadConfig() {
	name := getConfig()
	viper.SetConfigName(name)
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("../../")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.GetLogger().Warn("Config file not found")
		} else {
			logger.GetLogger().WithField("error", err).Error("Error reading config file")
		}
	}

	logger.GetLogger().WithField("config", name).Info("Config set up successfully")
	if err := viper.Unmarshal(&C); err != nil {
		logger.GetLogger().WithField("error", err).Error("Viper unable to decode into struct")
	}
}

func getConfig() string {
	name := "config"
	env := os.Getenv("ENV")
	if env != "" {
		name = fmt.Sprintf("%s-%s", name, env)
	}
	return name
}

func initDatabase(C *Config) {
	fillDb(&C.Database.Psql, "DB", "", "5432", "")
	// MSSQL (Azure SQL in production)
	fillDb(&C.Database.Mssql, "MSSQL", "localhost", "1433", "sa")
	fillDb(&C.Database.MySql, "MYSQL", "", "3306", "")
	fillDb(&C.Database.Mongo, "MONGO", "", "27017", "")
	if C.Database.Mongo.Name == "" {
		C.Database.Mongo.Name = "social_publisher"
	}

	if v := os.Getenv("DB_VENDOR"); v != "" {
		C.Database.Vendor = v
	}
	if C.Database.Vendor == "" {
		env := os.Getenv("ENV")
		if env == "production" || env == "prod" {
			C.Database.Vendor = "mssql"
		} else {
			C.Database.Vendor = "postgres"
		}
	}
	if v := os.Getenv("TASK_STORE"); v != "" {
		C.Database.TaskStore = v
	}
	if C.Database.TaskStore == "" {
		C.Database.TaskStore = "sql"
	}
}

func initApp(C *Config) {
	// SECRET_KEY from environment overrides config file when provided
	if v := os.Getenv("SECRET_KEY"); v != "" {
		C.App.SecretKey = v
	}
	// APP_PORT -> PORT -> config -> default 10001
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	} else if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	}
	if C.App.Port == 0 {
		C.App.Port = 10001
	}
	if v := os.Getenv("TLS_ENABLED"); v != "" {
		switch v {
		case "1", "true", "TRUE", "True":
			C.App.TLSEnabled = true
		case "0", "false", "FALSE", "False":
			C.App.TLSEnabled = false
		}
	}
	if C.App.TLSCertFile == "" {
		C.App.TLSCertFile = os.Getenv("TLS_CERT_FILE")
	}
	if C.App.TLSKeyFile == "" {
		C.App.TLSKeyFile = os.Getenv("TLS_KEY_FILE")
	}
	if C.App.TLSEnabled {
		logger.GetLogger().WithFields(map[string]interface{}{"cert": C.App.TLSCertFile, "key": C.App.TLSKeyFile}).Info("TLS enabled via configuration")
	}
	if len(C.App.AllowOrigins) == 0 {
		C.App.AllowOrigins = []string{"http://localhost:4200", "https://localhost:4200"}
	}
	if C.App.SecretKey == "" {
		logger.GetLogger().Warn("App.SecretKey not set; JWT authentication will fail. Provide SECRET_KEY via environment.")
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		C.Logger.Level = v
	}
}

func initVault(C *Config) {
	if v := os.Getenv("VAULT_ENCRYPTION_KEY"); v != "" {
		C.Vault.EncryptionKey = v
	}
	if C.Vault.EncryptionKey == "" {
		logger.GetLogger().Warn("Vault.EncryptionKey not set; credential storage is disabled until VAULT_ENCRYPTION_KEY is provided")
	}
}

func initScheduler(C *Config) {
	if C.Scheduler.Timezone == "" {
		C.Scheduler.Timezone = "UTC"
	}
	if C.Scheduler.MissedGraceSeconds == 0 {
		C.Scheduler.MissedGraceSeconds = 15 * 60
	}
	if C.Scheduler.ExecutionTimeoutSeconds == 0 {
		C.Scheduler.ExecutionTimeoutSeconds = 10 * 60
	}
	if C.Scheduler.LockTTLSeconds == 0 {
		C.Scheduler.LockTTLSeconds = 15 * 60
	}
}

func hasHTTPS(u string) bool { return len(u) >= 8 && u[:8] == "https://" }
func toHTTPSCallback(u string) string {
	if len(u) >= 7 && u[:7] == "http://" {
		return "https://" + u[7:]
	}
	return u
}

// fillDb completes db from <prefix>_NAME, _HOST, _PORT, _USER, _PASSWORD
// without overriding values already present in the config file.
func fillDb(db *Db, prefix, host, port, user string) {
	for _, f := range []struct {
		dst  *string
		key  string
		dflt string
	}{
		{&db.Name, prefix + "_NAME", ""},
		{&db.Host, prefix + "_HOST", host},
		{&db.Port, prefix + "_PORT", port},
		{&db.User, prefix + "_USER", user},
		{&db.Password, prefix + "_PASSWORD", ""},
	} {
		if *f.dst == "" {
			*f.dst = getEnv(f.key, f.dflt)
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
