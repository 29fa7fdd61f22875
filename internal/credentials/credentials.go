package credentials

import (
	"net/http"
	"strings"
)

type Kind string

const (
	KindAPIKey Kind = "api_key"
	KindBearer Kind = "bearer"
)

const (
	HeaderAPIKey         = "X-Domino-Api-Key"
	HeaderAuthorization  = "Authorization"
	HeaderAPIKeyOverride = "X-API-Key-Override"
	bearerPrefix         = "Bearer "
)

// Credentials are the outbound auth headers for one inbound request.
// They are opaque to the pipeline: components only call Apply.
type Credentials struct {
	Kind  Kind
	Value string
}

func APIKey(key string) Credentials {
	return Credentials{Kind: KindAPIKey, Value: strings.TrimSpace(key)}
}

// Bearer accepts a raw token with or without the "Bearer " prefix.
func Bearer(token string) Credentials {
	token = strings.TrimSpace(token)
	token = strings.TrimSpace(strings.TrimPrefix(token, bearerPrefix))
	return Credentials{Kind: KindBearer, Value: token}
}

func (c Credentials) IsZero() bool { return c.Value == "" }

// Apply sets the auth header on an outbound request.
func (c Credentials) Apply(h http.Header) {
	switch c.Kind {
	case KindAPIKey:
		h.Set(HeaderAPIKey, c.Value)
	case KindBearer:
		h.Set(HeaderAuthorization, bearerPrefix+c.Value)
	}
}

// Headers returns the auth headers as a fresh map.
func (c Credentials) Headers() http.Header {
	h := http.Header{}
	c.Apply(h)
	return h
}
