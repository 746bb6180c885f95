package builder

import (
	"archive/zip"
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/json"
	"io"
	"math/big"
	"reflect"
	"testing"
	"time"

	"passbridge/pkg/consts"
	"passbridge/pkg/entities"
	"passbridge/pkg/projector"
)

func testSigningConfig(t *testing.T) *AppleSigningConfig {
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
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}

	return &AppleSigningConfig{
		PassTypeID:       "pass.com.example.loyalty",
		TeamID:           "ABCDE12345",
		OrganizationName: "Example Coffee",
		WebServiceURL:    "https://pass.example.com/api/stage/v1",
		Certificate:      cert,
		PrivateKey:       key,
		WWDR:             cert,
	}
}

func unzipBundle(t *testing.T, data []byte) map[string][]byte {
	t.Helper()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("pkpass is not a readable zip: %v", err)
	}

	bundle := make(map[string][]byte, len(zr.File))
	for _, file := range zr.File {
		rc, err := file.Open()
		if err != nil {
			t.Fatal(err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatal(err)
		}
		bundle[file.Name] = content
	}

	return bundle
}

func testTemplate() *entities.PassTemplate {
	return &entities.PassTemplate{
		ID:          "tpl-1",
		MerchantID:  "merchant-1",
		Name:        "Kaffeekarte",
		Description: "Stempelkarte",
		Style:       consts.StyleStoreCard,
		Colors: entities.Colors{
			Background: "rgb(60,40,20)",
			Foreground: "rgb(255,255,255)",
			Label:      "rgb(200,200,200)",
		},
		Barcode:   entities.Barcode{Format: "qr"},
		MaxStamps: 10,
		Fields: entities.TemplateFields{
			Primary: []entities.TemplateField{
				{
					Key:        projector.KeyStamps,
					Label:      "Stempel",
					RenderMode: consts.RenderModeIcon,
					StampIcon:  "☕",
					EmptyIcon:  "⚪️",
				},
			},
		},
		Locations: []entities.Location{
			{Latitude: 52.52, Longitude: 13.405, RelevantText: "Willkommen!"},
		},
	}
}

func testPass() *entities.IssuedPass {
	return &entities.IssuedPass{
		ID:           "a1b2-c3d4",
		SerialNumber: "serial-1",
		AuthToken:    "secret-token",
		WalletType:   consts.WalletApple,
		State:        entities.LiveState{Stamps: 3, MaxStamps: 10},
	}
}

func TestRenderRoundTripFidelity(t *testing.T) {
	apple := NewApplePassBuilder(testSigningConfig(t))
	tmpl := testTemplate()
	pass := testPass()
	fields := projector.Project(tmpl, pass.State)

	artifact, err := apple.Render(tmpl, fields, pass, nil)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if artifact.ContentType != PkpassContentType {
		t.Errorf("Render() content type = %s, want %s", artifact.ContentType, PkpassContentType)
	}

	bundle := unzipBundle(t, artifact.Data)

	var def PassDefinition
	if err = json.Unmarshal(bundle["pass.json"], &def); err != nil {
		t.Fatalf("pass.json decoding failed: %v", err)
	}

	// decoded field values must be identical to the projection
	styled := def.StyleFieldsOf()
	if styled == nil {
		t.Fatal("pass.json carries no style block")
	}
	if !reflect.DeepEqual(styled.PrimaryFields, fields.Primary) {
		t.Errorf("decoded primary fields = %+v, want %+v", styled.PrimaryFields, fields.Primary)
	}

	if def.SerialNumber != pass.SerialNumber {
		t.Errorf("serial = %s, want %s", def.SerialNumber, pass.SerialNumber)
	}
	if def.AuthenticationToken != pass.AuthToken {
		t.Errorf("auth token = %s, want %s", def.AuthenticationToken, pass.AuthToken)
	}

	if len(def.Barcodes) != 1 {
		t.Fatalf("barcodes = %d, want 1", len(def.Barcodes))
	}
	barcode := def.Barcodes[0]
	if barcode.Message != pass.ID {
		t.Errorf("barcode message = %s, want internal pass id %s", barcode.Message, pass.ID)
	}
	if barcode.MessageEncoding != "iso-8859-1" {
		t.Errorf("barcode encoding = %s, want iso-8859-1", barcode.MessageEncoding)
	}
}

func TestRenderManifestAndSignature(t *testing.T) {
	apple := NewApplePassBuilder(testSigningConfig(t))
	tmpl := testTemplate()
	pass := testPass()

	artifact, err := apple.Render(tmpl, projector.Project(tmpl, pass.State), pass, nil)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	bundle := unzipBundle(t, artifact.Data)

	manifest, ok := bundle["manifest.json"]
	if !ok {
		t.Fatal("bundle lacks manifest.json")
	}
	if _, ok = bundle["signature"]; !ok {
		t.Fatal("bundle lacks signature")
	}

	var digests map[string]string
	if err = json.Unmarshal(manifest, &digests); err != nil {
		t.Fatalf("manifest decoding failed: %v", err)
	}

	for name, content := range bundle {
		if name == "manifest.json" || name == "signature" {
			continue
		}
		sum := sha1.Sum(content)
		if digests[name] != hex.EncodeToString(sum[:]) {
			t.Errorf("manifest digest mismatch for %s", name)
		}
	}
}

func TestRenderSubstitutesMissingIcon(t *testing.T) {
	apple := NewApplePassBuilder(testSigningConfig(t))
	tmpl := testTemplate()
	pass := testPass()

	artifact, err := apple.Render(tmpl, projector.Project(tmpl, pass.State), pass, nil)
	if err != nil {
		t.Fatalf("Render() must not fail on a missing icon: %v", err)
	}

	bundle := unzipBundle(t, artifact.Data)
	for _, name := range []string{"icon.png", "icon@2x.png", "icon@3x.png"} {
		if len(bundle[name]) == 0 {
			t.Errorf("bundle lacks placeholder %s", name)
		}
	}
}

func TestRenderImageSuffixes(t *testing.T) {
	apple := NewApplePassBuilder(testSigningConfig(t))
	tmpl := testTemplate()
	pass := testPass()
	images := map[string][]byte{
		entities.ImageIcon:  []byte("icon-bytes"),
		entities.ImageStrip: []byte("strip-bytes"),
	}

	artifact, err := apple.Render(tmpl, projector.Project(tmpl, pass.State), pass, images)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	bundle := unzipBundle(t, artifact.Data)
	for _, name := range []string{"icon.png", "icon@2x.png", "icon@3x.png", "strip.png", "strip@2x.png"} {
		if _, ok := bundle[name]; !ok {
			t.Errorf("bundle lacks %s", name)
		}
	}
	if !bytes.Equal(bundle["strip.png"], images[entities.ImageStrip]) {
		t.Error("strip asset content was not preserved")
	}
}

func TestRenderFailsWithoutSigningMaterial(t *testing.T) {
	apple := NewApplePassBuilder(&AppleSigningConfig{})
	tmpl := testTemplate()
	pass := testPass()

	_, err := apple.Render(tmpl, projector.Project(tmpl, pass.State), pass, nil)
	if err == nil {
		t.Fatal("Render() without signing material must fail, never degrade to unsigned")
	}
}
