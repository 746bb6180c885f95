package builder

import (
	"errors"

	"passbridge/pkg/entities"
)

// ErrSigningConfig marks fatal credential misconfiguration. A build must
// abort with this error rather than ever producing an unsigned artifact.
var ErrSigningConfig = errors.New("signing configuration invalid")

// Artifact is a rendered platform-specific pass. Apple fills Data with
// pkpass bytes; Google fills SaveURL and Token with the signed save link.
type Artifact struct {
	ContentType string
	Data        []byte
	SaveURL     string
	Token       string
}

// PassRenderer renders a template plus projected fields into a platform
// artifact. One implementation per wallet platform; the divergent stamp
// rendering (image-composited vs text) lives behind this interface instead
// of branching through shared code.
type PassRenderer interface {
	WalletType() string
	Render(
		tmpl *entities.PassTemplate, fields entities.ConcreteFields,
		pass *entities.IssuedPass, images map[string][]byte,
	) (*Artifact, error)
}
