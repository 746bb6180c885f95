package middlewares

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"

	"passbridge/pkg/consts"
	"passbridge/pkg/entities"
	"passbridge/pkg/usecases"
	"passbridge/utilities"
)

type Middlewares struct {
	Cache    *cache.Cache
	useCases usecases.PassUsecaseImply
}

func NewMiddlewares(useCases usecases.PassUsecaseImply) *Middlewares {
	return &Middlewares{
		Cache:    cache.New(5*time.Minute, 10*time.Minute),
		useCases: useCases,
	}
}

// ValidatePassToken authenticates PassKit web service requests. Every
// failure, missing header, unknown serial or wrong token, answers the same
// 401 so callers cannot probe which serials exist.
func (m *Middlewares) ValidatePassToken(ctx *gin.Context) {
	log := utilities.NewLogger("ValidatePassToken")

	serial := ctx.Param("serial")

	header := ctx.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != consts.ApplePassScheme {
		m.reject(ctx)
		return
	}
	token := parts[1]

	pass, err := m.lookupPass(ctx, serial)
	if err != nil {
		log.WithError(err).Debugf("pass lookup failed for serial %s", serial)
		m.reject(ctx)
		return
	}

	if subtle.ConstantTimeCompare([]byte(pass.AuthToken), []byte(token)) != 1 {
		m.reject(ctx)
		return
	}

	ctx.Set(consts.PassSerial, pass.SerialNumber)
	ctx.Set(consts.PassID, pass.ID)
	ctx.Set(consts.MerchantID, pass.MerchantID)
	ctx.Set(consts.AuthorizedVia, consts.ApplePassScheme)

	ctx.Next()
}

func (m *Middlewares) lookupPass(ctx *gin.Context, serial string) (*entities.IssuedPass, error) {
	if cached, ok := m.Cache.Get(serial); ok {
		if pass, ok := cached.(*entities.IssuedPass); ok {
			return pass, nil
		}
	}

	pass, err := m.useCases.GetBySerial(ctx, serial)
	if err != nil {
		return nil, err
	}

	m.Cache.Set(serial, pass, cache.DefaultExpiration)

	return pass, nil
}

func (m *Middlewares) reject(ctx *gin.Context) {
	ctx.AbortWithStatusJSON(
		http.StatusUnauthorized, entities.ErrorResponse{
			StatusCode: http.StatusUnauthorized,
			Message:    "Authentication failed",
		},
	)
}
