package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const localMongoURI = "mongodb://localhost:27017"

type App struct {
	Port string `envconfig:"PORT" default:"5000"`

	// Mongo
	DBUser        string `envconfig:"DB_USER"`
	DBPass        string `envconfig:"DB_PASS"`
	MongoHost     string `envconfig:"MONGO_HOST" default:"cluster0.s8lfr5s.mongodb.net"`
	MongoURI      string `envconfig:"MONGO_URI"`
	MongoDatabase string `envconfig:"MONGO_DATABASE" default:"madrasahDB"`

	// Optional integrations
	RabbitMQ     string `envconfig:"RABBITMQ_CONNSTRING"`
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	LegacyRoutes    bool          `envconfig:"LEGACY_ROUTES" default:"true"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
	LogDevelopment  bool          `envconfig:"LOG_DEVELOPMENT" default:"true"`
}

// Load reads an optional .env file and then the process environment.
// Variables already present in the environment win over the file.
func Load() (App, error) {
	_ = godotenv.Load()

	var c App
	err := envconfig.Process("", &c)
	return c, err
}

// ListenAddr is the address the HTTP server binds to.
func (c App) ListenAddr() string {
	return fmt.Sprintf("0.0.0.0:%s", c.Port)
}

// MongoConnString picks, in order: an explicit MONGO_URI, an Atlas SRV string
// built from DB_USER/DB_PASS, or a local server.
func (c App) MongoConnString() string {
	if c.MongoURI != "" {
		return c.MongoURI
	}
	if c.DBUser != "" {
		return fmt.Sprintf("mongodb+srv://%s:%s@%s/?retryWrites=true&w=majority",
			url.QueryEscape(c.DBUser), url.QueryEscape(c.DBPass), c.MongoHost)
	}
	return localMongoURI
}
