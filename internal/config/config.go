package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config es la configuración de arranque del motor de cobros.
// Los parámetros operativos que cambian en caliente (plazos, flags de
// WhatsApp y router) NO viven aquí: se leen de system_settings en cada
// ciclo a través de repository.SettingsRepository.
type Config struct {
	App struct {
		Port string `mapstructure:"port"`
		Env  string `mapstructure:"env"`
		// AdminToken protege la API de administración en la LAN del operador
		AdminToken string `mapstructure:"adminToken"`
	} `mapstructure:"app"`
	Database struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"database"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
	} `mapstructure:"kafka"`
	Engine struct {
		// Schedule es la expresión cron del ciclo; por defecto cada hora
		Schedule string `mapstructure:"schedule"`
	} `mapstructure:"engine"`
	Ingest struct {
		// ReportDir carpeta donde se depositan los reportes Excel de Yape
		ReportDir string `mapstructure:"reportDir"`
	} `mapstructure:"ingest"`
}

// LoadConfig carga la configuración desde archivo o variables de entorno
func LoadConfig(path string) (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetDefault("app.port", "8080")
	viper.SetDefault("app.env", "development")
	viper.SetDefault("engine.schedule", "@hourly")
	viper.SetDefault("ingest.reportDir", os.TempDir()+"/yape_reports")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
