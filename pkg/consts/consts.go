package consts

const (
	AppName = "passbridge"
)

const (
	PassSerial    = "PASS_SERIAL"
	PassID        = "PASS_ID"
	MerchantID    = "MERCHANT_ID"
	AuthorizedVia = "AUTHORIZED_VIA"
)

// Wallet platforms a pass can be issued for.
const (
	WalletApple  = "apple"
	WalletGoogle = "google"
)

// Pass styles accepted by Apple Wallet.
const (
	StyleStoreCard   = "storeCard"
	StyleCoupon      = "coupon"
	StyleEventTicket = "eventTicket"
	StyleGeneric     = "generic"
)

// Stamp field render modes, decided at template-authoring time.
const (
	RenderModeIcon = "icon"
	RenderModeText = "text"
)

// Scan actions accepted by the scan ingestion endpoint.
const (
	ActionStamp  = "stamp"
	ActionRedeem = "redeem"
	ActionPoints = "points"
)

// ApplePassScheme is the Authorization scheme PassKit clients send.
const ApplePassScheme = "ApplePass"

// GoogleSaveURL is the browser endpoint the signed save JWT is appended to.
const GoogleSaveURL = "https://pay.google.com/gp/v/save/"

// DB tables
const (
	PassTemplateTable     = "pass_templates"
	PassTable             = "passes"
	PassSerialByIDTable   = "pass_serial_by_id"
	RegistrationsBySerial = "registrations_by_serial"
	RegistrationsByDevice = "registrations_by_device"
	ScanEventTable        = "scan_events"
)
