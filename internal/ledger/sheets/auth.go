package sheets

import (
	"net/http"
	"strings"

	"github.com/juju/errors"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/googleapi"
)

// Scopes grants read/write access to spreadsheets.
var Scopes = []string{"https://www.googleapis.com/auth/spreadsheets"}

// Credentials identify the service account that owns ledger access.
type Credentials struct {
	Email      string
	PrivateKey string
	Scopes     []string
}

// NormalizePrivateKey expands literal "\n" sequences, which is how PEM keys
// usually arrive through a single-line environment variable.
func NormalizePrivateKey(key string) string {
	return strings.ReplaceAll(key, `\n`, "\n")
}

func newJWTConfig(creds Credentials) (*jwt.Config, error) {
	if strings.TrimSpace(creds.Email) == "" {
		return nil, errors.NotValidf("empty service account email")
	}
	if strings.TrimSpace(creds.PrivateKey) == "" {
		return nil, errors.NotValidf("empty service account private key")
	}
	scopes := creds.Scopes
	if len(scopes) == 0 {
		scopes = Scopes
	}
	return &jwt.Config{
		Email:      creds.Email,
		PrivateKey: []byte(NormalizePrivateKey(creds.PrivateKey)),
		Scopes:     scopes,
		TokenURL:   google.JWTTokenURL,
	}, nil
}

// IsAuthorisationFailure reports whether the API rejected the credentials.
func IsAuthorisationFailure(err error) bool {
	if err == nil {
		return false
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code == http.StatusUnauthorized || gErr.Code == http.StatusForbidden
	}
	return false
}
