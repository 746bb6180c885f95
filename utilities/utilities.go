package utilities

import (
	"crypto/rand"
	"encoding/base32"
	"strings"
	"time"

	"github.com/spf13/cast"
)

func DBMultiValuePlaceholders(n int) string {
	var b strings.Builder
	b.WriteString("(")
	b.WriteString(strings.TrimSuffix(strings.Repeat("?,", n), ","))
	b.WriteString("),")
	return strings.TrimSuffix(b.String(), ",")
}

// GenerateAuthToken mints the shared secret embedded in a pass and compared
// on every web service request. Never reassigned once issued.
func GenerateAuthToken() (string, error) {
	randBytes := make([]byte, 20)
	_, err := rand.Read(randBytes)
	if err != nil {
		return "", err
	}

	return strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(randBytes)), nil
}

func ContainsString(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}

func TimeNow() time.Time {
	return time.Now().UTC()
}

func UnixTimeString() string {
	return cast.ToString(TimeNow().Unix())
}

func UnixTime() int64 {
	return TimeNow().Unix()
}
