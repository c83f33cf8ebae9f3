// Package provider lists the git hosting providers the proxy can reach.
package provider

import (
	"strings"

	"github.com/criske/my-git-feed-server/pkg/client"
)

// Provider is a git hosting platform.
type Provider string

const (
	GitHub    Provider = "github"
	GitLab    Provider = "gitlab"
	Bitbucket Provider = "bitbucket"
	Unknown   Provider = "unknown"
)

// All returns the known providers.
func All() []Provider {
	return []Provider{GitHub, GitLab, Bitbucket}
}

// Parse looks a provider up by name, ignoring case and surrounding spaces.
// Unrecognized names yield Unknown.
func Parse(name string) Provider {
	switch p := Provider(strings.ToLower(strings.TrimSpace(name))); p {
	case GitHub, GitLab, Bitbucket:
		return p
	default:
		return Unknown
	}
}

// BaseURL returns the API root of p, or "" for Unknown.
func (p Provider) BaseURL() string {
	switch p {
	case GitHub:
		return "https://api.github.com"
	case GitLab:
		return "https://gitlab.com/api/v4"
	case Bitbucket:
		return "https://api.bitbucket.org/2.0"
	default:
		return ""
	}
}

// Tokens holds the configured credential of each provider.
type Tokens struct {
	GitHub string
	GitLab string

	// Bitbucket is base64("username:app-password").
	Bitbucket string
}

// Token returns the access token of p. Providers without a configured
// credential, and Unknown, get client.Unauthorized.
func (t Tokens) Token(p Provider) client.AccessToken {
	switch {
	case p == GitHub && t.GitHub != "":
		return client.Bearer(t.GitHub)
	case p == GitLab && t.GitLab != "":
		return client.Bearer(t.GitLab)
	case p == Bitbucket && t.Bitbucket != "":
		return client.BasicEncoded(t.Bitbucket)
	default:
		return client.Unauthorized
	}
}
