package entities

import "time"

// LiveState is the mutable per-pass state, persisted as a JSON document on
// the pass row. Extra carries campaign-specific fields that have no fixed
// schema.
type LiveState struct {
	Stamps         int               `json:"stamps"`
	MaxStamps      int               `json:"max_stamps"`
	Redemptions    int               `json:"redemptions"`
	Points         int               `json:"points"`
	Tier           string            `json:"tier,omitempty"`
	LatestNews     string            `json:"latest_news,omitempty"`
	LastMessageAt  int64             `json:"last_message_at,omitempty"`
	CustomerNumber string            `json:"customer_number,omitempty"`
	RewardReady    bool              `json:"reward_ready,omitempty"`
	Extra          map[string]string `json:"extra,omitempty"`
}

// IssuedPass is one customer's pass instance. SerialNumber and AuthToken
// are minted at issuance and never reassigned. LastUpdatedAt is the only
// signal Apple devices use to decide whether to re-fetch.
type IssuedPass struct {
	ID                 string     `json:"id"`
	SerialNumber       string     `json:"serial_number"`
	AuthToken          string     `json:"-"`
	WalletType         string     `json:"wallet_type"`
	TemplateID         string     `json:"template_id"`
	MerchantID         string     `json:"merchant_id"`
	State              LiveState  `json:"state"`
	StateVersion       int64      `json:"-"`
	Verified           bool       `json:"verified"`
	InstalledOnAndroid bool       `json:"is_installed_on_android"`
	Created            time.Time  `json:"created"`
	LastUpdatedAt      time.Time  `json:"last_updated_at"`
	DeletedAt          *time.Time `json:"deleted_at,omitempty"`
}

// Field is a projected, platform-agnostic concrete field value.
type Field struct {
	Key           string `json:"key"`
	Label         string `json:"label"`
	Value         string `json:"value"`
	TextAlignment string `json:"textAlignment,omitempty"`
}

// ConcreteFields is the output of projecting a template against live state.
type ConcreteFields struct {
	Header    []Field `json:"header,omitempty"`
	Primary   []Field `json:"primary,omitempty"`
	Secondary []Field `json:"secondary,omitempty"`
	Auxiliary []Field `json:"auxiliary,omitempty"`
	Back      []Field `json:"back,omitempty"`
}

type IssueRequest struct {
	TemplateID     string `json:"template_id" validate:"required"`
	WalletType     string `json:"wallet_type" validate:"required"`
	CustomerNumber string `json:"customer_number"`
	Tier           string `json:"tier"`
}

type IssuedPassResponse struct {
	PassID       string `json:"pass_id"`
	SerialNumber string `json:"serial_number"`
	WalletType   string `json:"wallet_type"`
	SaveURL      string `json:"save_url,omitempty"`
}

// ExportRequest renders an ad-hoc pkpass from an inline template, bypassing
// the issuance lifecycle. Images are base64 encoded, keyed by slot.
type ExportRequest struct {
	Template PassTemplate      `json:"template"`
	State    *LiveState        `json:"state,omitempty"`
	Images   map[string]string `json:"images,omitempty"`
}

type GoogleWebhookRequest struct {
	Event    string `json:"event"`
	ObjectID string `json:"objectId"`
}
