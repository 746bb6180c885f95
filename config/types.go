package config

type PassbridgeConfModel struct {
	LogLevel   string     `mapstructure:"log_level"`
	Mode       string     `mapstructure:"mode"`
	Server     Server     `mapstructure:"server"`
	DB         DB         `mapstructure:"db"`
	Apple      Apple      `mapstructure:"apple"`
	Google     Google     `mapstructure:"google"`
	Assets     Assets     `mapstructure:"assets"`
	Dispatch   Dispatch   `mapstructure:"dispatch"`
	Automation Automation `mapstructure:"automation"`
	Image      Image      `mapstructure:"image"`
}

type Server struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	APIPrefix      string `mapstructure:"api_prefix"`
	APIVersion     string `mapstructure:"api_version"`
	RedirectPrefix string `mapstructure:"redirect_prefix"`
}

type DB struct {
	Host     string `mapstructure:"host"`
	Keyspace string `mapstructure:"keyspace"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Apple holds everything needed to sign pkpass bundles and push through
// APNs. All paths are validated once at startup, never per build.
type Apple struct {
	PassTypeID       string `mapstructure:"pass_type_id"`
	TeamID           string `mapstructure:"team_id"`
	OrganizationName string `mapstructure:"organization_name"`
	WebServiceURL    string `mapstructure:"web_service_url"`
	CertPath         string `mapstructure:"cert_path"`
	KeyPath          string `mapstructure:"key_path"`
	WWDRPath         string `mapstructure:"wwdr_path"`
	APNsProduction   bool   `mapstructure:"apns_production"`
	PushTimeout      string `mapstructure:"push_timeout"`
}

type Google struct {
	IssuerID           string   `mapstructure:"issuer_id"`
	ServiceAccountPath string   `mapstructure:"service_account_path"`
	Origins            []string `mapstructure:"origins"`
}

type Assets struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

type Dispatch struct {
	BatchSize int `mapstructure:"batch_size"`
	Workers   int `mapstructure:"workers"`
}

type Automation struct {
	Timezone string `mapstructure:"timezone"`
}

type Image struct {
	MaxSize        int      `mapstructure:"max_size"`
	SupportedTypes []string `mapstructure:"supported_types"`
}
