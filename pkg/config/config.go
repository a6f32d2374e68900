package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Port             string        `mapstructure:"PORT"`
	DatabaseDriver   string        `mapstructure:"DATABASE_DRIVER"`
	PostgresUsername string        `mapstructure:"POSTGRES_USERNAME"`
	PostgresPassword string        `mapstructure:"POSTGRES_PASSWORD"`
	PostgresDatabase string        `mapstructure:"POSTGRES_DATABASE"`
	PostgresSSLMode  string        `mapstructure:"POSTGRES_SSLMODE"`
	PostgresHost     string        `mapstructure:"POSTGRES_HOST"`
	PostgresPort     string        `mapstructure:"POSTGRES_PORT"`
	AutoMigrate      bool          `mapstructure:"AUTO_MIGRATE"`
	RedisURL         string        `mapstructure:"REDIS_URL"`
	CacheTTL         time.Duration `mapstructure:"CACHE_TTL"`
	RabbitMQURL      string        `mapstructure:"RABBITMQ_URL"`
	ServiceName      string        `mapstructure:"SERVICE_NAME"`
	AWSEndpoint      string        `mapstructure:"AWS_ENDPOINT"`
	AWSBucket        string        `mapstructure:"AWS_BUCKET"`
	AWSDefaultRegion string        `mapstructure:"AWS_DEFAULT_REGION"`
	AWSAccessKey     string        `mapstructure:"AWS_ACCESS_KEY"`
	AWSSecretKey     string        `mapstructure:"AWS_SECRET_KEY"`
	StoragePublicURL string        `mapstructure:"STORAGE_PUBLIC_URL"`
	GRPCPort         string        `mapstructure:"GRPC_PORT"`
}

func Read() *AppConfig {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()

	bindEnvVariables()
	setDefaults()

	var appConfig AppConfig
	err := viper.Unmarshal(&appConfig)
	if err != nil {
		panic(fmt.Errorf("fatal error unmarshalling config: %w", err))
	}

	return &appConfig
}

// PostgresDSN builds the lib/pq connection string.
func (c *AppConfig) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUsername, c.PostgresPassword, c.PostgresDatabase, c.PostgresSSLMode,
	)
}

func bindEnvVariables() {
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_DRIVER")
	_ = viper.BindEnv("POSTGRES_USERNAME")
	_ = viper.BindEnv("POSTGRES_PASSWORD")
	_ = viper.BindEnv("POSTGRES_DATABASE")
	_ = viper.BindEnv("POSTGRES_SSLMODE")
	_ = viper.BindEnv("POSTGRES_HOST")
	_ = viper.BindEnv("POSTGRES_PORT")
	_ = viper.BindEnv("AUTO_MIGRATE")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("CACHE_TTL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("SERVICE_NAME")
	_ = viper.BindEnv("AWS_ENDPOINT")
	_ = viper.BindEnv("AWS_BUCKET")
	_ = viper.BindEnv("AWS_DEFAULT_REGION")
	_ = viper.BindEnv("AWS_ACCESS_KEY")
	_ = viper.BindEnv("AWS_SECRET_KEY")
	_ = viper.BindEnv("STORAGE_PUBLIC_URL")
	_ = viper.BindEnv("GRPC_PORT")
}

func setDefaults() {
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DATABASE_DRIVER", "postgres")
	viper.SetDefault("POSTGRES_SSLMODE", "disable")
	viper.SetDefault("POSTGRES_HOST", "localhost")
	viper.SetDefault("POSTGRES_PORT", "5432")
	viper.SetDefault("AUTO_MIGRATE", false)
	viper.SetDefault("CACHE_TTL", "5m")
	viper.SetDefault("SERVICE_NAME", "catalog")
	viper.SetDefault("AWS_BUCKET", "catalog")
	viper.SetDefault("GRPC_PORT", "9090")
}
