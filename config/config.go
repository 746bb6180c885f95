package config

import (
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/viper"
)

const configFilePath = "/etc/passbridge/config.yaml"

var (
	passbridgeConf *PassbridgeConfModel
	ServerBaseURL  string
	PathPrefix     string
)

func LoadConfig() (*PassbridgeConfModel, error) {
	if err := loadViperConfig(configFilePath); err != nil {
		return nil, err
	}

	return passbridgeConf, nil
}

func loadViperConfig(filePath string) error {
	viper.SetConfigFile(filePath)
	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading viper config: %w", err)
	}

	setEnvConf()
	setDefault()

	viper.WatchConfig()

	err = viper.Unmarshal(&passbridgeConf)
	if err != nil {
		return fmt.Errorf("error loading viper config to struct: %w", err)
	}

	if err = passbridgeConf.Validate(); err != nil {
		return err
	}

	// https://pass.example.com/api/stage/v1
	ServerBaseURL, err = url.JoinPath(
		passbridgeConf.Server.RedirectPrefix, passbridgeConf.Server.APIPrefix,
		passbridgeConf.Mode, passbridgeConf.Server.APIVersion,
	)
	if err != nil {
		return err
	}

	// /api/stage/v1
	PathPrefix, err = url.JoinPath(passbridgeConf.Server.APIPrefix, passbridgeConf.Mode, passbridgeConf.Server.APIVersion)
	if err != nil {
		return err
	}

	return nil
}

func setEnvConf() {
	viper.BindEnv("db.username", "PASSBRIDGE_DB_USERNAME")
	viper.BindEnv("db.password", "PASSBRIDGE_DB_PASSWORD")
	viper.BindEnv("assets.access_key", "PASSBRIDGE_ASSETS_ACCESS_KEY")
	viper.BindEnv("assets.secret_key", "PASSBRIDGE_ASSETS_SECRET_KEY")
}

func setDefault() {
	viper.SetDefault("mode", "stage")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("dispatch.batch_size", 50)
	viper.SetDefault("dispatch.workers", 10)
	viper.SetDefault("apple.push_timeout", "10s")
	viper.SetDefault("automation.timezone", "Europe/Berlin")
	viper.SetDefault("image.max_size", 512)
	viper.SetDefault("image.supported_types", []string{"png", "jpeg"})
}

// Validate rejects broken signing configuration at load time. A missing
// certificate must never surface later as a silently unsigned bundle.
func (conf *PassbridgeConfModel) Validate() error {
	apple := conf.Apple
	if apple.PassTypeID == "" || apple.TeamID == "" {
		return fmt.Errorf("apple pass_type_id and team_id are mandatory")
	}

	for name, path := range map[string]string{
		"apple.cert_path": apple.CertPath,
		"apple.key_path":  apple.KeyPath,
		"apple.wwdr_path": apple.WWDRPath,
	} {
		if path == "" {
			return fmt.Errorf("%s is mandatory", name)
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("%s is unreadable: %w", name, err)
		}
	}

	google := conf.Google
	if google.IssuerID == "" {
		return fmt.Errorf("google issuer_id is mandatory")
	}
	if _, err := os.Stat(google.ServiceAccountPath); err != nil {
		return fmt.Errorf("google.service_account_path is unreadable: %w", err)
	}

	return nil
}

// GetConfig returns env config
func GetConfig() *PassbridgeConfModel {
	return passbridgeConf
}
