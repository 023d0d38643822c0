package http

import (
	"net/http"
	"strings"

	"github.com/example/telehealth-gateway/internal/application"
	"github.com/example/telehealth-gateway/internal/identity"
)

// IdentityCookie carries the host's identity token for browser callers.
const IdentityCookie = "telehealth_identity"

// IdentityVerifier validates identity tokens issued by the host application.
type IdentityVerifier interface {
	Verify(raw string) (identity.Subject, error)
}

// CSRFSigner checks forgery tokens bound to an identity subject.
type CSRFSigner interface {
	VerifyCSRF(subject identity.Subject, token string) bool
}

type csrfVerifier struct {
	signer CSRFSigner
}

// NewCSRFVerifier adapts signer to the coordinator's forgery check.
func NewCSRFVerifier(signer CSRFSigner) application.CSRFVerifier {
	return csrfVerifier{signer: signer}
}

func (v csrfVerifier) VerifyCSRF(caller application.CallerIdentity, token string) bool {
	if v.signer == nil {
		return false
	}
	subject, ok := subjectFor(caller)
	if !ok {
		return false
	}
	return v.signer.VerifyCSRF(subject, token)
}

func callerFor(subject identity.Subject) application.CallerIdentity {
	switch subject.Kind {
	case identity.KindStaff:
		return application.ProviderCaller(subject.ID)
	case identity.KindPortal:
		return application.PatientCaller(subject.ID)
	default:
		return application.CallerIdentity{}
	}
}

func subjectFor(caller application.CallerIdentity) (identity.Subject, bool) {
	switch caller.Kind {
	case application.CallerProvider:
		return identity.Subject{Kind: identity.KindStaff, ID: caller.Username}, caller.Username != ""
	case application.CallerPatient:
		return identity.Subject{Kind: identity.KindPortal, ID: caller.PatientID}, caller.PatientID != ""
	default:
		return identity.Subject{}, false
	}
}

func extractTokenFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		const prefix = "Bearer "
		if strings.HasPrefix(header, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(header, prefix))
		}
	}
	if cookie, err := r.Cookie(IdentityCookie); err == nil {
		return cookie.Value
	}
	return ""
}
