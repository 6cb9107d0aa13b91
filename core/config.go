package core

import (
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host            string
		Addr            string
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	// EngagementConfig carries the tunable thresholds of the micro-break
	// decision policy. Defaults are placeholders until the pedagogy team
	// settles on values; treat them as configuration, not law.
	EngagementConfig struct {
		LowThreshold        float64
		ConsecutiveLowLimit int
		CooldownDuration    time.Duration
		EMAAlpha            float64
	}

	Config struct {
		AppName   string
		Debug     bool
		TestMode  bool
		Env       string
		Build     string
		SecretKey []byte

		RollbarToken string

		JWTExpirationDelta time.Duration

		Server     ServerConfig
		Database   DatabaseConfig
		Engagement EngagementConfig
	}
)

func (dbc DatabaseConfig) Address() string {
	return net.JoinHostPort(dbc.Host, dbc.Port)
}

func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("appName", "Engage")
	conf.SetDefault("build", "dev")
	conf.SetDefault("secretKey", "2mw#q(kfz&yn$$-p8dh3&0^$vujxi4bp0-t4fz&e02x&4grn1y")
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("jwtExpirationDelta", 7*24*time.Hour)

	conf.SetDefault("server.host", "localhost")
	conf.SetDefault("server.addr", ":8080")
	conf.SetDefault("server.debugHost", "localhost:4000")
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)

	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", "5432")
	conf.SetDefault("database.name", "engage")
	conf.SetDefault("database.user", "engage")
	conf.SetDefault("database.password", "")
	conf.SetDefault("database.adminUser", "")
	conf.SetDefault("database.adminPassword", "")
	conf.SetDefault("database.disableTLS", true)

	conf.SetDefault("engagement.lowThreshold", 0.4)
	conf.SetDefault("engagement.consecutiveLowLimit", 3)
	conf.SetDefault("engagement.cooldownDuration", 5*time.Minute)
	conf.SetDefault("engagement.emaAlpha", 0.3)

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return &Config{
		AppName:            conf.GetString("appName"),
		Debug:              conf.GetBool("debug"),
		TestMode:           env == "TEST",
		Env:                env,
		Build:              conf.GetString("build"),
		SecretKey:          []byte(conf.GetString("secretKey")),
		RollbarToken:       conf.GetString("rollbarToken"),
		JWTExpirationDelta: conf.GetDuration("jwtExpirationDelta"),
		Server: ServerConfig{
			Host:            conf.GetString("server.host"),
			Addr:            conf.GetString("server.addr"),
			DebugHost:       conf.GetString("server.debugHost"),
			ShutdownTimeout: conf.GetDuration("server.shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("database.engine"),
			Host:          conf.GetString("database.host"),
			Port:          conf.GetString("database.port"),
			Name:          conf.GetString("database.name"),
			User:          conf.GetString("database.user"),
			Password:      conf.GetString("database.password"),
			AdminUser:     conf.GetString("database.adminUser"),
			AdminPassword: conf.GetString("database.adminPassword"),
			DisableTLS:    conf.GetBool("database.disableTLS"),
		},
		Engagement: EngagementConfig{
			LowThreshold:        conf.GetFloat64("engagement.lowThreshold"),
			ConsecutiveLowLimit: conf.GetInt("engagement.consecutiveLowLimit"),
			CooldownDuration:    conf.GetDuration("engagement.cooldownDuration"),
			EMAAlpha:            conf.GetFloat64("engagement.emaAlpha"),
		},
	}
}
