package builder

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/api/walletobjects/v1"

	"passbridge/pkg/consts"
	"passbridge/pkg/entities"
	"passbridge/pkg/projector"
)

// GooglePassBuilder maps templates and projected fields onto the wallet
// loyalty class/object model and signs save-link JWTs.
//
// Object ids are derived from the internal pass id by replacing every "-"
// with "_" (wallet object ids forbid hyphens). This convention is
// load-bearing: the webhook handler reverses it to resolve notifications
// back to the internal id, so it must stay invertible.
type GooglePassBuilder struct {
	signing *GoogleSigningConfig
}

func NewGooglePassBuilder(signing *GoogleSigningConfig) *GooglePassBuilder {
	return &GooglePassBuilder{signing: signing}
}

func (b *GooglePassBuilder) WalletType() string {
	return consts.WalletGoogle
}

func (b *GooglePassBuilder) ObjectID(passID string) string {
	return b.signing.IssuerID + "." + strings.ReplaceAll(passID, "-", "_")
}

func (b *GooglePassBuilder) ClassID(templateID string) string {
	return b.signing.IssuerID + "." + strings.ReplaceAll(templateID, "-", "_")
}

// PassIDFromObjectID reverses ObjectID.
func (b *GooglePassBuilder) PassIDFromObjectID(objectID string) (string, error) {
	prefix := b.signing.IssuerID + "."
	if !strings.HasPrefix(objectID, prefix) {
		return "", fmt.Errorf("object id %s does not carry issuer prefix", objectID)
	}

	return strings.ReplaceAll(strings.TrimPrefix(objectID, prefix), "_", "-"), nil
}

func (b *GooglePassBuilder) LoyaltyClass(tmpl *entities.PassTemplate) *walletobjects.LoyaltyClass {
	class := &walletobjects.LoyaltyClass{
		Id:                 b.ClassID(tmpl.ID),
		IssuerName:         tmpl.MerchantID,
		ProgramName:        tmpl.Name,
		ReviewStatus:       "UNDER_REVIEW",
		HexBackgroundColor: tmpl.Colors.Background,
	}

	if logo, ok := tmpl.Images[entities.ImageLogo]; ok && strings.HasPrefix(logo, "http") {
		class.ProgramLogo = &walletobjects.Image{
			SourceUri: &walletobjects.ImageUri{Uri: logo},
		}
	}

	return class
}

// LoyaltyObject maps projected fields into the object's text-module list.
// Stamps render as plain "{current}/{max}" text: the loyalty object has no
// image-compositing stamp primitive, so this divergence from the Apple
// rendering is permanent and deliberate.
func (b *GooglePassBuilder) LoyaltyObject(
	tmpl *entities.PassTemplate, fields entities.ConcreteFields, pass *entities.IssuedPass,
) *walletobjects.LoyaltyObject {
	object := &walletobjects.LoyaltyObject{
		Id:        b.ObjectID(pass.ID),
		ClassId:   b.ClassID(tmpl.ID),
		State:     "ACTIVE",
		AccountId: pass.State.CustomerNumber,
		Barcode: &walletobjects.Barcode{
			Type:  "QR_CODE",
			Value: pass.ID,
		},
	}

	for _, field := range flattenFields(fields) {
		value := field.Value
		if field.Key == projector.KeyStamps && pass.State.MaxStamps > 0 {
			stamps := pass.State.Stamps
			if stamps > pass.State.MaxStamps {
				stamps = pass.State.MaxStamps
			}
			value = strconv.Itoa(stamps) + "/" + strconv.Itoa(pass.State.MaxStamps)
		}

		object.TextModulesData = append(object.TextModulesData, &walletobjects.TextModuleData{
			Id:     field.Key,
			Header: field.Label,
			Body:   value,
		})
	}

	return object
}

// SaveLink signs a JWT embedding the class (create-if-absent) and object
// (upsert) and returns the browser save URL for it.
func (b *GooglePassBuilder) SaveLink(
	class *walletobjects.LoyaltyClass, object *walletobjects.LoyaltyObject,
) (*Artifact, error) {
	if b.signing == nil || b.signing.PrivateKey == nil {
		return nil, fmt.Errorf("%w: google signing material absent", ErrSigningConfig)
	}

	claims := jwt.MapClaims{
		"iss":     b.signing.ClientEmail,
		"aud":     "google",
		"typ":     "savetoandroidpay",
		"iat":     time.Now().Unix(),
		"origins": b.signing.Origins,
		"payload": map[string]interface{}{
			"loyaltyClasses": []*walletobjects.LoyaltyClass{class},
			"loyaltyObjects": []*walletobjects.LoyaltyObject{object},
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(b.signing.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: save token signing failed: %v", ErrSigningConfig, err)
	}

	return &Artifact{
		SaveURL: consts.GoogleSaveURL + token,
		Token:   token,
	}, nil
}

func (b *GooglePassBuilder) Render(
	tmpl *entities.PassTemplate, fields entities.ConcreteFields,
	pass *entities.IssuedPass, _ map[string][]byte,
) (*Artifact, error) {
	class := b.LoyaltyClass(tmpl)
	object := b.LoyaltyObject(tmpl, fields, pass)

	return b.SaveLink(class, object)
}

func flattenFields(fields entities.ConcreteFields) []entities.Field {
	var out []entities.Field
	out = append(out, fields.Header...)
	out = append(out, fields.Primary...)
	out = append(out, fields.Secondary...)
	out = append(out, fields.Auxiliary...)
	out = append(out, fields.Back...)

	return out
}
