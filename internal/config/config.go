// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек всех процессов движка
type Config struct {
	Env                     string `yaml:"env" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string"`
	SubscriptionsPath       string `yaml:"subscriptions_path" env-default:"subscriptions.json"`
	PlansPath               string `yaml:"plans_path" env-default:"plans.json"`
	MigrationsPath          string `yaml:"migrations_path" env-default:"./migrations"`
	RedisConnection         `yaml:"redis_connection"`
	RabbitMQ                `yaml:"rabbitmq"`
	HTTPServer              `yaml:"http_server"`
	MercadoPago             `yaml:"mercadopago"`
	Telegram                `yaml:"telegram"`
	Engine                  `yaml:"engine"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"5s"`
}

// RabbitMQ структура для настройки подключения к брокеру уведомлений
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"3s"`
}

// MercadoPago настройки клиента платёжного шлюза
type MercadoPago struct {
	AccessToken    string        `yaml:"access_token" env:"MP_ACCESS_TOKEN"`
	APIURL         string        `yaml:"api_url" env-default:"https://api.mercadopago.com"`
	RequestTimeout time.Duration `yaml:"request_timeout" env-default:"10s"`
}

// Telegram настройки транспорта членства и сообщений
type Telegram struct {
	BotToken    string        `yaml:"bot_token" env:"TG_BOT_TOKEN"`
	TelegramAPI string        `yaml:"api_url" env-default:"https://api.telegram.org"`
	AdminChatID int64         `yaml:"admin_chat_id"`
	SendRate    float64       `yaml:"send_rate" env-default:"25"`
	SendBurst   int           `yaml:"send_burst" env-default:"5"`
	CallTimeout time.Duration `yaml:"call_timeout" env-default:"10s"`
	InviteTTL   time.Duration `yaml:"invite_ttl" env-default:"168h"`
}

// Engine интервалы фоновых задач движка
type Engine struct {
	PollInterval   time.Duration `yaml:"poll_interval" env-default:"5s"`
	PollTimeout    time.Duration `yaml:"poll_timeout" env-default:"10s"`
	SweepInterval  time.Duration `yaml:"sweep_interval" env-default:"15m"`
	NotifyInterval time.Duration `yaml:"notify_interval" env-default:"12h"`
	InitialDelay   time.Duration `yaml:"initial_delay" env-default:"5s"`
}

// MustLoad загружает конфиг по пути из CONFIG_PATH, при ошибке завершает процесс
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}
