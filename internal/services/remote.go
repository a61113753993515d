package services

import (
	"mime"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/shared"
)

// RemoteOpts configures a remote backend for one provider.
type RemoteOpts struct {
	ID         models.ProviderIdentifier
	Endpoint   string
	Username   string
	Password   string
	LegacyAuth bool
	Client     shared.ClientConfig
	HTTPClient *http.Client
	Logger     *log.Logger
}

func (o RemoteOpts) apiClientOpts(auth Authenticator, logger *log.Logger) APIClientOpts {
	return APIClientOpts{
		BaseURL:    o.Endpoint,
		HTTPClient: o.HTTPClient,
		Auth:       auth,
		Timeout:    o.Client.RequestTimeout(),
		RateLimit:  o.Client.RateLimit,
		Burst:      o.Client.Burst,
		Logger:     logger,
	}
}

func (o RemoteOpts) logger() *log.Logger {
	logger := o.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return shared.WithLogger(logger, "provider", o.ID.String())
}

// mimeType guesses a MIME type from a container or file suffix such as "flac".
func mimeType(suffix string) string {
	suffix = strings.TrimPrefix(strings.ToLower(suffix), ".")
	if suffix == "" {
		return ""
	}
	if t := mime.TypeByExtension("." + suffix); t != "" {
		return t
	}
	return "audio/" + suffix
}

func firstOf(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
