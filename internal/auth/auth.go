// Package auth verifies OIDC bearer tokens and builds the requesting
// model.User from the token's claims (§6.3). Ported from the original
// implementation's app/lib/auth.py, which performs the same discovery +
// verify + claim-mapping dance against the same kind of OIDC provider.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"

	"github.com/goodtune/yacgo/internal/config"
	"github.com/goodtune/yacgo/internal/model"
	"github.com/goodtune/yacgo/internal/tmpl"
	"github.com/goodtune/yacgo/internal/yacerr"
)

// Verifier validates bearer tokens against the configured OIDC provider
// and maps their claims onto a model.User using the oidc_jwt_* format
// strings (§6.2, §6.3).
type Verifier struct {
	cfg      *config.Config
	verifier *oidc.IDTokenVerifier
	engine   *tmpl.Engine
}

// NewVerifier discovers the OIDC provider at cfg.OIDC.URL and constructs
// a Verifier accepting any of cfg.OIDC.ClientIDs as audience.
func NewVerifier(ctx context.Context, cfg *config.Config) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, cfg.OIDC.URL)
	if err != nil {
		return nil, fmt.Errorf("discovering OIDC provider %q: %w", cfg.OIDC.URL, err)
	}
	verifier := provider.Verifier(&oidc.Config{SkipClientIDCheck: true})
	return &Verifier{cfg: cfg, verifier: verifier, engine: tmpl.New(tmpl.BuiltinFunctions(), false)}, nil
}

// Verify validates rawToken (an OIDC ID token) and builds the User it
// names. The audience claim must appear in cfg.OIDC.ClientIDs.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (model.User, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return model.User{}, yacerr.NewAuthError("token verification failed: %v", err)
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return model.User{}, yacerr.NewAuthError("could not read token claims: %v", err)
	}

	if !v.audienceAllowed(claims) {
		return model.User{}, yacerr.NewAuthError("token audience is not accepted")
	}

	return model.User{
		Name:     v.claimField(claims, v.cfg.OIDC.JWTName, v.cfg.OIDC.JWTNameFallback),
		Email:    v.claimField(claims, v.cfg.OIDC.JWTEmail, v.cfg.OIDC.JWTEmailFallback),
		FullName: v.claimField(claims, v.cfg.OIDC.JWTFullName, v.cfg.OIDC.JWTFullNameFallback),
		Token:    claims,
	}, nil
}

func (v *Verifier) audienceAllowed(claims map[string]any) bool {
	switch aud := claims["aud"].(type) {
	case string:
		return v.cfg.OIDCClientAllowed(aud)
	case []any:
		for _, a := range aud {
			if s, ok := a.(string); ok && v.cfg.OIDCClientAllowed(s) {
				return true
			}
		}
	}
	return false
}

// claimField evaluates format as a template expression against claims,
// falling back to fallback (itself possibly a format string) on error or
// empty result (§6.2's "oidc_jwt_* with *_fallback").
func (v *Verifier) claimField(claims map[string]any, format, fallback string) string {
	if format == "" {
		return ""
	}
	if out, err := v.engine.RenderPrint(format, map[string]any{"claims": claims}); err == nil && out != "" {
		return out
	}
	if fallback == "" {
		return ""
	}
	out, err := v.engine.RenderPrint(fallback, map[string]any{"claims": claims})
	if err != nil {
		return ""
	}
	return out
}

// BearerToken extracts the raw token from an Authorization header value,
// accepting both "Bearer <token>" and a raw token with no scheme prefix
// (§6.3).
func BearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[len("Bearer "):]), true
	}
	return header, true
}

// ParseUnverifiedClaims is used only by logging/debug paths that need to
// report the subject of a token that failed verification, never to trust
// its content.
func ParseUnverifiedClaims(rawToken string) (jwt.MapClaims, error) {
	p := jwt.NewParser()
	claims := jwt.MapClaims{}
	_, _, err := p.ParseUnverified(rawToken, claims)
	return claims, err
}

type userKey struct{}

// WithUser returns a context carrying user, retrievable via UserFromContext.
func WithUser(ctx context.Context, user model.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext retrieves the authenticated user set by Middleware.
func UserFromContext(ctx context.Context) (model.User, bool) {
	u, ok := ctx.Value(userKey{}).(model.User)
	return u, ok
}

// Middleware enforces bearer-token authentication on every request it
// wraps (§6.1: every route except /meta, /health). debugMode controls
// whether the failure reason is echoed verbatim (§7: "message generic
// unless debug mode").
func Middleware(v *Verifier, debugMode bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeAuthError(w, "missing Authorization header", debugMode)
				return
			}
			user, err := v.Verify(r.Context(), raw)
			if err != nil {
				writeAuthError(w, err.Error(), debugMode)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func writeAuthError(w http.ResponseWriter, detail string, debugMode bool) {
	if !debugMode {
		detail = "Authentication required"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"title":"Login Failed","message":%q}`, detail)
}
