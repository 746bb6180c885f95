package builder

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"

	"passbridge/config"
)

// AppleSigningConfig carries the parsed signing material for pkpass
// bundles. Built once at composition time so builders never touch the
// filesystem or discover broken credentials mid-request.
type AppleSigningConfig struct {
	PassTypeID       string
	TeamID           string
	OrganizationName string
	WebServiceURL    string
	Certificate      *x509.Certificate
	PrivateKey       *rsa.PrivateKey
	WWDR             *x509.Certificate
}

// GoogleSigningConfig carries the wallet issuer identity and the service
// account key used to sign save-link JWTs.
type GoogleSigningConfig struct {
	IssuerID           string
	ClientEmail        string
	PrivateKey         *rsa.PrivateKey
	Origins            []string
	ServiceAccountPath string
}

// LoadAppleSigningConfig reads the signing material from disk. The web
// service URL comes from the apple config block when set, falling back to
// the server base URL otherwise.
func LoadAppleSigningConfig(conf config.Apple, fallbackWebServiceURL string) (*AppleSigningConfig, error) {
	webServiceURL := conf.WebServiceURL
	if webServiceURL == "" {
		webServiceURL = fallbackWebServiceURL
	}

	cert, err := readCertificate(conf.CertPath)
	if err != nil {
		return nil, fmt.Errorf("%w: signing certificate: %v", ErrSigningConfig, err)
	}

	key, err := readPrivateKey(conf.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("%w: signing key: %v", ErrSigningConfig, err)
	}

	wwdr, err := readCertificate(conf.WWDRPath)
	if err != nil {
		return nil, fmt.Errorf("%w: WWDR intermediate: %v", ErrSigningConfig, err)
	}

	return &AppleSigningConfig{
		PassTypeID:       conf.PassTypeID,
		TeamID:           conf.TeamID,
		OrganizationName: conf.OrganizationName,
		WebServiceURL:    webServiceURL,
		Certificate:      cert,
		PrivateKey:       key,
		WWDR:             wwdr,
	}, nil
}

func LoadGoogleSigningConfig(conf config.Google) (*GoogleSigningConfig, error) {
	raw, err := os.ReadFile(conf.ServiceAccountPath)
	if err != nil {
		return nil, fmt.Errorf("%w: service account file: %v", ErrSigningConfig, err)
	}

	var sa struct {
		ClientEmail string `json:"client_email"`
		PrivateKey  string `json:"private_key"`
	}
	if err = json.Unmarshal(raw, &sa); err != nil {
		return nil, fmt.Errorf("%w: service account json: %v", ErrSigningConfig, err)
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		return nil, fmt.Errorf("%w: service account json lacks client_email or private_key", ErrSigningConfig)
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(sa.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("%w: service account key: %v", ErrSigningConfig, err)
	}

	return &GoogleSigningConfig{
		IssuerID:           conf.IssuerID,
		ClientEmail:        sa.ClientEmail,
		PrivateKey:         key,
		Origins:            conf.Origins,
		ServiceAccountPath: conf.ServiceAccountPath,
	}, nil
}

func readCertificate(path string) (*x509.Certificate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	for {
		var block *pem.Block
		block, raw = pem.Decode(raw)
		if block == nil {
			return nil, fmt.Errorf("no certificate block found in %s", path)
		}
		if block.Type == "CERTIFICATE" {
			return x509.ParseCertificate(block.Bytes)
		}
	}
}

func readPrivateKey(path string) (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	for {
		var block *pem.Block
		block, raw = pem.Decode(raw)
		if block == nil {
			return nil, fmt.Errorf("no private key block found in %s", path)
		}

		switch block.Type {
		case "RSA PRIVATE KEY":
			return x509.ParsePKCS1PrivateKey(block.Bytes)
		case "PRIVATE KEY":
			key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, err
			}
			rsaKey, ok := key.(*rsa.PrivateKey)
			if !ok {
				return nil, fmt.Errorf("unsupported private key type in %s", path)
			}
			return rsaKey, nil
		}
	}
}
