package builder

import (
	"archive/zip"
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"go.mozilla.org/pkcs7"

	"passbridge/pkg/consts"
	"passbridge/pkg/entities"
	"passbridge/utilities"
)

const PkpassContentType = "application/vnd.apple.pkpass"

// PassDefinition is the pass.json document inside a pkpass bundle. Exactly
// one of the style keys is set, matching the template's style.
type PassDefinition struct {
	FormatVersion       int                `json:"formatVersion"`
	PassTypeIdentifier  string             `json:"passTypeIdentifier"`
	SerialNumber        string             `json:"serialNumber"`
	TeamIdentifier      string             `json:"teamIdentifier"`
	OrganizationName    string             `json:"organizationName"`
	Description         string             `json:"description"`
	WebServiceURL       string             `json:"webServiceURL,omitempty"`
	AuthenticationToken string             `json:"authenticationToken,omitempty"`
	BackgroundColor     string             `json:"backgroundColor,omitempty"`
	ForegroundColor     string             `json:"foregroundColor,omitempty"`
	LabelColor          string             `json:"labelColor,omitempty"`
	Barcodes            []BarcodeSpec      `json:"barcodes,omitempty"`
	Locations           []LocationSpec     `json:"locations,omitempty"`
	StoreCard           *StyleFields       `json:"storeCard,omitempty"`
	Coupon              *StyleFields       `json:"coupon,omitempty"`
	EventTicket         *StyleFields       `json:"eventTicket,omitempty"`
	Generic             *StyleFields       `json:"generic,omitempty"`
}

type BarcodeSpec struct {
	Format          string `json:"format"`
	Message         string `json:"message"`
	MessageEncoding string `json:"messageEncoding"`
}

type LocationSpec struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RelevantText string  `json:"relevantText,omitempty"`
}

type StyleFields struct {
	HeaderFields    []entities.Field `json:"headerFields,omitempty"`
	PrimaryFields   []entities.Field `json:"primaryFields,omitempty"`
	SecondaryFields []entities.Field `json:"secondaryFields,omitempty"`
	AuxiliaryFields []entities.Field `json:"auxiliaryFields,omitempty"`
	BackFields      []entities.Field `json:"backFields,omitempty"`
}

// StyleFieldsOf returns whichever style block is populated.
func (def *PassDefinition) StyleFieldsOf() *StyleFields {
	for _, sf := range []*StyleFields{def.StoreCard, def.Coupon, def.EventTicket, def.Generic} {
		if sf != nil {
			return sf
		}
	}

	return nil
}

var barcodeFormats = map[string]string{
	"qr":      "PKBarcodeFormatQR",
	"pdf417":  "PKBarcodeFormatPDF417",
	"aztec":   "PKBarcodeFormatAztec",
	"code128": "PKBarcodeFormatCode128",
}

type ApplePassBuilder struct {
	signing *AppleSigningConfig
}

func NewApplePassBuilder(signing *AppleSigningConfig) *ApplePassBuilder {
	return &ApplePassBuilder{signing: signing}
}

func (b *ApplePassBuilder) WalletType() string {
	return consts.WalletApple
}

// Render serializes template plus projected fields into a signed pkpass
// archive: pass.json, image assets, manifest.json of SHA-1 digests, and a
// PKCS#7 detached signature over the manifest.
func (b *ApplePassBuilder) Render(
	tmpl *entities.PassTemplate, fields entities.ConcreteFields,
	pass *entities.IssuedPass, images map[string][]byte,
) (*Artifact, error) {
	if b.signing == nil || b.signing.Certificate == nil || b.signing.PrivateKey == nil || b.signing.WWDR == nil {
		return nil, fmt.Errorf("%w: apple signing material absent", ErrSigningConfig)
	}

	def := b.passDefinition(tmpl, fields, pass)

	passJSON, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("pass.json encoding failed: %w", err)
	}

	bundle := map[string][]byte{
		"pass.json": passJSON,
	}
	addImageAssets(bundle, images)

	manifest, err := buildManifest(bundle)
	if err != nil {
		return nil, err
	}
	bundle["manifest.json"] = manifest

	signature, err := b.signManifest(manifest)
	if err != nil {
		return nil, err
	}
	bundle["signature"] = signature

	data, err := zipBundle(bundle)
	if err != nil {
		return nil, err
	}

	return &Artifact{ContentType: PkpassContentType, Data: data}, nil
}

func (b *ApplePassBuilder) passDefinition(
	tmpl *entities.PassTemplate, fields entities.ConcreteFields, pass *entities.IssuedPass,
) *PassDefinition {
	def := &PassDefinition{
		FormatVersion:       1,
		PassTypeIdentifier:  b.signing.PassTypeID,
		SerialNumber:        pass.SerialNumber,
		TeamIdentifier:      b.signing.TeamID,
		OrganizationName:    b.signing.OrganizationName,
		Description:         tmpl.Description,
		WebServiceURL:       b.signing.WebServiceURL,
		AuthenticationToken: pass.AuthToken,
		BackgroundColor:     tmpl.Colors.Background,
		ForegroundColor:     tmpl.Colors.Foreground,
		LabelColor:          tmpl.Colors.Label,
	}

	format, ok := barcodeFormats[tmpl.Barcode.Format]
	if !ok {
		format = barcodeFormats["qr"]
	}
	// the barcode carries the internal pass id, not the serial, so a POS
	// scan resolves directly to the pass identity
	def.Barcodes = []BarcodeSpec{
		{Format: format, Message: pass.ID, MessageEncoding: "iso-8859-1"},
	}

	for _, loc := range tmpl.Locations {
		def.Locations = append(def.Locations, LocationSpec{
			Latitude:     loc.Latitude,
			Longitude:    loc.Longitude,
			RelevantText: loc.RelevantText,
		})
	}

	styled := &StyleFields{
		HeaderFields:    fields.Header,
		PrimaryFields:   fields.Primary,
		SecondaryFields: fields.Secondary,
		AuxiliaryFields: fields.Auxiliary,
		BackFields:      fields.Back,
	}

	switch tmpl.Style {
	case consts.StyleCoupon:
		def.Coupon = styled
	case consts.StyleEventTicket:
		def.EventTicket = styled
	case consts.StyleGeneric:
		def.Generic = styled
	default:
		def.StoreCard = styled
	}

	return def
}

func addImageAssets(bundle map[string][]byte, images map[string][]byte) {
	for slot, data := range images {
		if len(data) == 0 {
			continue
		}
		bundle[slot+".png"] = data
		bundle[slot+"@2x.png"] = data
		if slot == entities.ImageIcon || slot == entities.ImageLogo {
			bundle[slot+"@3x.png"] = data
		}
	}

	// Apple rejects bundles without an icon
	if _, ok := bundle[entities.ImageIcon+".png"]; !ok {
		pixel := utilities.TransparentPixelPNG()
		bundle[entities.ImageIcon+".png"] = pixel
		bundle[entities.ImageIcon+"@2x.png"] = pixel
		bundle[entities.ImageIcon+"@3x.png"] = pixel
	}
}

func buildManifest(bundle map[string][]byte) ([]byte, error) {
	digests := make(map[string]string, len(bundle))
	for name, data := range bundle {
		sum := sha1.Sum(data)
		digests[name] = hex.EncodeToString(sum[:])
	}

	manifest, err := json.Marshal(digests)
	if err != nil {
		return nil, fmt.Errorf("manifest encoding failed: %w", err)
	}

	return manifest, nil
}

func (b *ApplePassBuilder) signManifest(manifest []byte) ([]byte, error) {
	signedData, err := pkcs7.NewSignedData(manifest)
	if err != nil {
		return nil, fmt.Errorf("creating signed data failed: %w", err)
	}

	if err = signedData.AddSigner(b.signing.Certificate, b.signing.PrivateKey, pkcs7.SignerInfoConfig{}); err != nil {
		return nil, fmt.Errorf("%w: adding signer failed: %v", ErrSigningConfig, err)
	}
	signedData.AddCertificate(b.signing.WWDR)
	signedData.Detach()

	signature, err := signedData.Finish()
	if err != nil {
		return nil, fmt.Errorf("finishing signature failed: %w", err)
	}

	return signature, nil
}

func zipBundle(bundle map[string][]byte) ([]byte, error) {
	names := make([]string, 0, len(bundle))
	for name := range bundle {
		names = append(names, name)
	}
	sort.Strings(names)

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("zip entry %s failed: %w", name, err)
		}
		if _, err = w.Write(bundle[name]); err != nil {
			return nil, fmt.Errorf("zip write %s failed: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip close failed: %w", err)
	}

	return buf.Bytes(), nil
}
