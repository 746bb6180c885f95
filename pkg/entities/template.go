package entities

import "time"

// Image slots a template may carry. Each value is an asset-store key.
const (
	ImageIcon       = "icon"
	ImageLogo       = "logo"
	ImageStrip      = "strip"
	ImageThumbnail  = "thumbnail"
	ImageBackground = "background"
	ImageFooter     = "footer"
)

type Colors struct {
	Background string `json:"background"`
	Foreground string `json:"foreground"`
	Label      string `json:"label"`
}

type Barcode struct {
	Format string `json:"format"`
}

type Location struct {
	Latitude     float64 `json:"lat"`
	Longitude    float64 `json:"lng"`
	RelevantText string  `json:"relevantText,omitempty"`
}

// TemplateField is one merchant-authored field slot. RenderMode is decided
// once at authoring time; the projector never guesses from the stored value.
type TemplateField struct {
	Key           string `json:"key"`
	Label         string `json:"label"`
	Value         string `json:"value"`
	TextAlignment string `json:"textAlignment,omitempty"`
	RenderMode    string `json:"renderMode,omitempty"`
	StampIcon     string `json:"stampIcon,omitempty"`
	EmptyIcon     string `json:"emptyIcon,omitempty"`
}

type TemplateFields struct {
	Header    []TemplateField `json:"header,omitempty"`
	Primary   []TemplateField `json:"primary,omitempty"`
	Secondary []TemplateField `json:"secondary,omitempty"`
	Auxiliary []TemplateField `json:"auxiliary,omitempty"`
	Back      []TemplateField `json:"back,omitempty"`
}

// TemplateRequest creates a template. Images are base64 encoded, keyed by
// slot; they land in the asset store and the template keeps only the keys.
type TemplateRequest struct {
	Template PassTemplate      `json:"template"`
	Images   map[string]string `json:"images,omitempty"`
}

// PassTemplate is the merchant-authored design a pass is issued from.
// Style is immutable once a pass has been issued from the template; a style
// change would break every already-downloaded pass.
type PassTemplate struct {
	ID          string            `json:"id"`
	MerchantID  string            `json:"merchant_id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Style       string            `json:"style"`
	Colors      Colors            `json:"colors"`
	Fields      TemplateFields    `json:"fields"`
	Images      map[string]string `json:"images,omitempty"`
	Barcode     Barcode           `json:"barcode"`
	Locations   []Location        `json:"locations,omitempty"`
	MaxStamps   int               `json:"max_stamps"`
	Created     time.Time         `json:"created"`
	Updated     time.Time         `json:"updated"`
}
