package auth

import (
	"context"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/observability"
)

// Source records which credential produced an identity.
type Source string

const (
	SourceSession Source = "session"
	SourceBearer  Source = "bearer"
	SourceCookie  Source = "cookie"
	// SourceTicket identities come from a single-use WebSocket ticket.
	SourceTicket Source = "ticket"
)

// Identity is an authenticated principal for one request.
type Identity struct {
	UserID uint
	Source Source
}

// Credentials are the raw, unverified values extracted from a request.
type Credentials struct {
	SessionID   string
	BearerToken string
	CookieToken string
}

// Resolver attempts to derive an identity from credentials.
// It never fails loudly: any problem is reported as no match.
type Resolver func(ctx context.Context, creds Credentials) (Identity, bool)

// UserLookup loads the account behind a token subject.
type UserLookup interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

// Resolution is the outcome of Reconciler.Establish.
type Resolution struct {
	Identity Identity
	// NewSessionID is set when a token identity was promoted to a server session.
	NewSessionID string
}

// Reconciler runs resolvers in order and returns the first match.
type Reconciler struct {
	resolvers []Resolver
	sessions  SessionStore
}

// NewReconciler builds a reconciler. When sessions is non-nil, token identities
// are promoted into a new server session.
func NewReconciler(sessions SessionStore, resolvers ...Resolver) *Reconciler {
	return &Reconciler{resolvers: resolvers, sessions: sessions}
}

// NewDefaultReconciler wires the standard chain: session, then bearer, then cookie token.
func NewDefaultReconciler(sessions SessionStore, tokens *TokenManager, users UserLookup) *Reconciler {
	return NewReconciler(sessions,
		SessionResolver(sessions, users),
		TokenResolver(SourceBearer, tokens, users),
		TokenResolver(SourceCookie, tokens, users),
	)
}

// Resolve returns the first identity any resolver accepts.
func (r *Reconciler) Resolve(ctx context.Context, creds Credentials) (Identity, bool) {
	for _, resolve := range r.resolvers {
		if id, ok := resolve(ctx, creds); ok {
			return id, true
		}
	}
	return Identity{}, false
}

// Establish resolves the request identity and, for token identities, creates
// at most one server session so follow-up requests authenticate by cookie.
func (r *Reconciler) Establish(ctx context.Context, creds Credentials) (Resolution, bool) {
	id, ok := r.Resolve(ctx, creds)
	if !ok {
		return Resolution{}, false
	}
	res := Resolution{Identity: id}
	if id.Source == SourceSession || r.sessions == nil {
		return res, true
	}

	sid, err := r.sessions.Create(ctx, id.UserID)
	if err != nil {
		observability.GlobalLogger.WarnContext(ctx, "session promotion failed", "error", err.Error())
		return res, true
	}
	observability.SessionPromotionsTotal.WithLabelValues(string(id.Source)).Inc()
	res.NewSessionID = sid
	return res, true
}

// SessionResolver matches a live server session whose user may still authenticate.
func SessionResolver(sessions SessionStore, users UserLookup) Resolver {
	return func(ctx context.Context, creds Credentials) (Identity, bool) {
		if sessions == nil || creds.SessionID == "" {
			return Identity{}, false
		}
		userID, ok, err := sessions.Lookup(ctx, creds.SessionID)
		if err != nil || !ok {
			return Identity{}, false
		}
		if !canAuthenticate(ctx, users, userID) {
			_ = sessions.Delete(ctx, creds.SessionID)
			return Identity{}, false
		}
		return Identity{UserID: userID, Source: SourceSession}, true
	}
}

// TokenResolver matches a valid access token taken from the bearer header or the token cookie.
func TokenResolver(source Source, tokens *TokenManager, users UserLookup) Resolver {
	return func(ctx context.Context, creds Credentials) (Identity, bool) {
		raw := creds.BearerToken
		if source == SourceCookie {
			raw = creds.CookieToken
		}
		if raw == "" || tokens == nil {
			return Identity{}, false
		}
		claims, err := tokens.Parse(raw, TokenAccess)
		if err != nil {
			return Identity{}, false
		}
		userID, err := claims.UserID()
		if err != nil || !canAuthenticate(ctx, users, userID) {
			return Identity{}, false
		}
		return Identity{UserID: userID, Source: source}, true
	}
}

func canAuthenticate(ctx context.Context, users UserLookup, userID uint) bool {
	if users == nil {
		return true
	}
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		return false
	}
	return user.CanAuthenticate()
}
