package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"sutradharx/aptos"
)

var (
	// ErrUnknownChallenge signals a nonce that was never issued, already used or expired.
	ErrUnknownChallenge = errors.New("wallet: unknown or expired challenge")
	// ErrInvalidSignature signals a signature that does not verify against the public key.
	ErrInvalidSignature = errors.New("wallet: invalid signature")
	// ErrAddressMismatch signals a public key that does not derive the claimed address.
	ErrAddressMismatch = errors.New("wallet: public key does not match address")
	// ErrUnsupportedNetwork signals a network outside the configured allow list.
	ErrUnsupportedNetwork = errors.New("wallet: unsupported network")
	// ErrInvalidToken signals a malformed, expired or revoked session token.
	ErrInvalidToken = errors.New("wallet: invalid session token")
)

const (
	defaultSessionTTL   = 24 * time.Hour
	defaultChallengeTTL = 5 * time.Minute

	challengePrefix = "Connect your wallet to SutradharX.\nnonce: "
)

type sessionClaims struct {
	Address string `json:"address"`
	Network string `json:"network"`
	jwt.RegisteredClaims
}

type Config struct {
	Secret       string
	SessionTTL   time.Duration
	ChallengeTTL time.Duration
	Networks     []string
}

// Service issues connect challenges and session tokens for Aptos wallets.
type Service struct {
	secret       []byte
	sessionTTL   time.Duration
	challengeTTL time.Duration
	networks     map[string]struct{}
	defaultNet   string

	mu         sync.Mutex
	challenges map[string]time.Time
	revoked    map[string]time.Time

	idGenerator func() string
	now         func() time.Time
}

func NewService(cfg Config) (*Service, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, fmt.Errorf("wallet: session secret is required")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.ChallengeTTL <= 0 {
		cfg.ChallengeTTL = defaultChallengeTTL
	}
	if len(cfg.Networks) == 0 {
		cfg.Networks = []string{aptos.DefaultNetwork}
	}

	networks := make(map[string]struct{}, len(cfg.Networks))
	for _, n := range cfg.Networks {
		networks[strings.ToLower(strings.TrimSpace(n))] = struct{}{}
	}

	return &Service{
		secret:       []byte(cfg.Secret),
		sessionTTL:   cfg.SessionTTL,
		challengeTTL: cfg.ChallengeTTL,
		networks:     networks,
		defaultNet:   strings.ToLower(strings.TrimSpace(cfg.Networks[0])),
		challenges:   make(map[string]time.Time),
		revoked:      make(map[string]time.Time),
		idGenerator:  uuid.NewString,
		now:          time.Now,
	}, nil
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	if gen != nil {
		s.idGenerator = gen
	}
	return s
}

func (s *Service) WithClock(clock func() time.Time) *Service {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Challenge issues a single-use nonce. The wallet signs Challenge.Message.
func (s *Service) Challenge() Challenge {
	now := s.now()
	nonce := s.idGenerator()

	s.mu.Lock()
	s.purgeLocked(now)
	s.challenges[nonce] = now.Add(s.challengeTTL)
	s.mu.Unlock()

	return Challenge{
		Nonce:     nonce,
		Message:   ChallengeMessage(nonce),
		ExpiresAt: now.Add(s.challengeTTL),
	}
}

// ChallengeMessage is the exact byte string a wallet must sign for nonce.
func ChallengeMessage(nonce string) string {
	return challengePrefix + nonce
}

// Connect verifies the signed challenge and opens a session for the address.
func (s *Service) Connect(_ context.Context, req ConnectRequest) (ConnectResult, error) {
	now := s.now()

	if !s.consumeChallenge(req.Nonce, now) {
		return ConnectResult{}, ErrUnknownChallenge
	}

	network := strings.ToLower(strings.TrimSpace(req.Network))
	if network == "" {
		network = s.defaultNet
	}
	if _, ok := s.networks[network]; !ok {
		return ConnectResult{}, fmt.Errorf("%w: %q", ErrUnsupportedNetwork, req.Network)
	}

	address, err := aptos.NormalizeAddress(req.Address)
	if err != nil {
		return ConnectResult{}, fmt.Errorf("wallet: connect: %w", err)
	}

	pub, err := decodeHex(req.PublicKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return ConnectResult{}, fmt.Errorf("wallet: connect: malformed public key")
	}
	derived, err := aptos.AddressFromPublicKey(ed25519.PublicKey(pub))
	if err != nil {
		return ConnectResult{}, fmt.Errorf("wallet: connect: %w", err)
	}
	if derived != address {
		return ConnectResult{}, ErrAddressMismatch
	}

	sig, err := decodeHex(req.Signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return ConnectResult{}, ErrInvalidSignature
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), []byte(ChallengeMessage(req.Nonce)), sig) {
		return ConnectResult{}, ErrInvalidSignature
	}

	session := Session{
		ID:        s.idGenerator(),
		Address:   address,
		Network:   network,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	token, err := s.generateToken(session)
	if err != nil {
		return ConnectResult{}, fmt.Errorf("wallet: generate token: %w", err)
	}
	return ConnectResult{Token: token, Session: session}, nil
}

// VerifyToken validates a session token and returns the session it carries.
func (s *Service) VerifyToken(tokenString string) (Session, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.ID == "" || claims.Address == "" {
		return Session{}, ErrInvalidToken
	}

	s.mu.Lock()
	_, revoked := s.revoked[claims.ID]
	s.mu.Unlock()
	if revoked {
		return Session{}, fmt.Errorf("%w: session revoked", ErrInvalidToken)
	}

	session := Session{
		ID:      claims.ID,
		Address: claims.Address,
		Network: claims.Network,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

// Disconnect revokes the session until its token would have expired anyway.
func (s *Service) Disconnect(session Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeLocked(s.now())
	expires := session.ExpiresAt
	if expires.IsZero() {
		expires = s.now().Add(s.sessionTTL)
	}
	s.revoked[session.ID] = expires
}

func (s *Service) generateToken(session Session) (string, error) {
	claims := sessionClaims{
		Address: session.Address,
		Network: session.Network,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Subject:   session.Address,
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) consumeChallenge(nonce string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	expires, ok := s.challenges[nonce]
	if !ok {
		return false
	}
	delete(s.challenges, nonce)
	return now.Before(expires)
}

func (s *Service) purgeLocked(now time.Time) {
	for nonce, exp := range s.challenges {
		if !now.Before(exp) {
			delete(s.challenges, nonce)
		}
	}
	for id, exp := range s.revoked {
		if !now.Before(exp) {
			delete(s.revoked, id)
		}
	}
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	return hex.DecodeString(s)
}
