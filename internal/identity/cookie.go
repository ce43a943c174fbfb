package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/storefront/pkg/logger"
)

const (
	cookiePath = "/"
	secondsDay = 24 * 60 * 60
)

// CookieParams configures the browser cookie that carries the cart id.
type CookieParams struct {
	Name   string
	Secure bool
	// Secret enables HS256-signed cookie values when set.
	Secret string
	Logger *logger.Logger
	// Now overrides the clock; tests only.
	Now func() time.Time
}

// CookieStore reads and writes the cart id cookie of the request bound to ctx.
type CookieStore struct {
	name   string
	secure bool
	signer *signer
	logg   *logger.Logger
	now    func() time.Time
}

type jarKey struct{}

// jar tracks the in-flight request/response pair so that a write made earlier
// in a request is visible to later reads in the same request.
type jar struct {
	mu      sync.Mutex
	r       *http.Request
	w       http.ResponseWriter
	written bool
	cartID  string
}

func NewCookieStore(params CookieParams) (*CookieStore, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, fmt.Errorf("cookie name required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &CookieStore{
		name:   name,
		secure: params.Secure,
		signer: newSigner(params.Secret),
		logg:   params.Logger,
		now:    now,
	}, nil
}

// Bind attaches the request/response pair to ctx. Middleware calls it once per request.
func (s *CookieStore) Bind(ctx context.Context, w http.ResponseWriter, r *http.Request) context.Context {
	return context.WithValue(ctx, jarKey{}, &jar{r: r, w: w})
}

func jarFrom(ctx context.Context) *jar {
	if ctx == nil {
		return nil
	}
	j, _ := ctx.Value(jarKey{}).(*jar)
	return j
}

var errNoJar = errors.New("cart identity used outside a bound request")

func (s *CookieStore) Identity(ctx context.Context) (string, bool) {
	j := jarFrom(ctx)
	if j == nil {
		s.logg.Warn(s.logg.WithOperation(ctx, "identity_read"), errNoJar.Error())
		return "", false
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.written {
		return j.cartID, j.cartID != ""
	}
	if j.r == nil {
		return "", false
	}
	cookie, err := j.r.Cookie(s.name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	cartID, err := s.decode(cookie.Value)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "reason", err.Error()), "ignoring unreadable cart identity cookie")
		return "", false
	}
	return cartID, true
}

func (s *CookieStore) SetIdentity(ctx context.Context, cartID string, ttlDays int) {
	j := jarFrom(ctx)
	if j == nil {
		s.logg.Warn(s.logg.WithOperation(ctx, "identity_write"), errNoJar.Error())
		return
	}
	if ttlDays <= 0 {
		ttlDays = 1
	}
	now := s.now()
	expires := now.Add(time.Duration(ttlDays) * 24 * time.Hour)

	value, err := s.encode(cartID, now, expires)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "reason", err.Error()), "failed to persist cart identity")
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.w != nil {
		http.SetCookie(j.w, s.cookie(value, expires, ttlDays*secondsDay))
	}
	j.written = true
	j.cartID = cartID
}

func (s *CookieStore) ClearIdentity(ctx context.Context) {
	j := jarFrom(ctx)
	if j == nil {
		s.logg.Warn(s.logg.WithOperation(ctx, "identity_clear"), errNoJar.Error())
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.w != nil {
		http.SetCookie(j.w, s.cookie("", time.Unix(0, 0), -1))
	}
	j.written = true
	j.cartID = ""
}

func (s *CookieStore) cookie(value string, expires time.Time, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     s.name,
		Value:    value,
		Path:     cookiePath,
		Expires:  expires,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (s *CookieStore) encode(cartID string, issuedAt, expires time.Time) (string, error) {
	if s.signer == nil {
		return cartID, nil
	}
	return s.signer.sign(cartID, issuedAt, expires)
}

func (s *CookieStore) decode(value string) (string, error) {
	if s.signer == nil {
		return value, nil
	}
	return s.signer.parse(value, s.now())
}
