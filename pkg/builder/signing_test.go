package builder

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"passbridge/config"
)

func writeSigningMaterial(t *testing.T) config.Apple {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "Pass Type ID: pass.com.example.loyalty"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	certPath := filepath.Join(dir, "cert.pem")
	keyPath := filepath.Join(dir, "key.pem")

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	if err = os.WriteFile(certPath, certPEM, 0o600); err != nil {
		t.Fatal(err)
	}
	if err = os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		t.Fatal(err)
	}

	return config.Apple{
		PassTypeID:       "pass.com.example.loyalty",
		TeamID:           "ABCDE12345",
		OrganizationName: "Example Coffee",
		CertPath:         certPath,
		KeyPath:          keyPath,
		WWDRPath:         certPath,
	}
}

func TestLoadAppleSigningConfig(t *testing.T) {
	conf := writeSigningMaterial(t)

	signing, err := LoadAppleSigningConfig(conf, "https://pass.example.com/api/stage")
	if err != nil {
		t.Fatalf("LoadAppleSigningConfig() error = %v", err)
	}

	if signing.Certificate == nil || signing.PrivateKey == nil || signing.WWDR == nil {
		t.Fatal("signing material was not parsed")
	}
	if signing.PassTypeID != conf.PassTypeID {
		t.Errorf("pass type id = %s, want %s", signing.PassTypeID, conf.PassTypeID)
	}
}

// An explicitly configured web service URL wins over the server base URL.
func TestLoadAppleSigningConfigWebServiceURL(t *testing.T) {
	conf := writeSigningMaterial(t)

	signing, err := LoadAppleSigningConfig(conf, "https://fallback.example.com")
	if err != nil {
		t.Fatalf("LoadAppleSigningConfig() error = %v", err)
	}
	if signing.WebServiceURL != "https://fallback.example.com" {
		t.Errorf("web service url = %s, want the fallback", signing.WebServiceURL)
	}

	conf.WebServiceURL = "https://wallet.example.com/api"
	signing, err = LoadAppleSigningConfig(conf, "https://fallback.example.com")
	if err != nil {
		t.Fatalf("LoadAppleSigningConfig() error = %v", err)
	}
	if signing.WebServiceURL != "https://wallet.example.com/api" {
		t.Errorf("web service url = %s, want the configured one", signing.WebServiceURL)
	}
}

func TestLoadAppleSigningConfigMissingFiles(t *testing.T) {
	conf := writeSigningMaterial(t)
	conf.CertPath = filepath.Join(t.TempDir(), "absent.pem")

	if _, err := LoadAppleSigningConfig(conf, "https://pass.example.com"); err == nil {
		t.Fatal("absent certificate must fail the load")
	}
}
