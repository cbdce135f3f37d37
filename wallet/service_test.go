package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"sutradharx/aptos"
)

type testWallet struct {
	priv    ed25519.PrivateKey
	pub     ed25519.PublicKey
	address string
}

func newTestWallet(t *testing.T, seed byte) testWallet {
	t.Helper()
	s := make([]byte, ed25519.SeedSize)
	s[0] = seed
	priv := ed25519.NewKeyFromSeed(s)
	pub := priv.Public().(ed25519.PublicKey)
	addr, err := aptos.AddressFromPublicKey(pub)
	if err != nil {
		t.Fatalf("derive address: %v", err)
	}
	return testWallet{priv: priv, pub: pub, address: addr}
}

func (w testWallet) sign(c Challenge) ConnectRequest {
	return ConnectRequest{
		Address:   w.address,
		PublicKey: "0x" + hex.EncodeToString(w.pub),
		Signature: hex.EncodeToString(ed25519.Sign(w.priv, []byte(c.Message))),
		Nonce:     c.Nonce,
		Network:   "testnet",
	}
}

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

func newTestService(t *testing.T, clock *fixedClock) *Service {
	t.Helper()
	svc, err := NewService(Config{Secret: "test-secret", SessionTTL: time.Hour, ChallengeTTL: time.Minute})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	n := 0
	return svc.WithClock(clock.Now).WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	})
}

func TestService_ConnectAndVerify(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	svc := newTestService(t, clock)
	w := newTestWallet(t, 7)

	res, err := svc.Connect(context.Background(), w.sign(svc.Challenge()))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if res.Token == "" {
		t.Fatal("connect: expected token")
	}
	if res.Session.Address != w.address || res.Session.Network != "testnet" {
		t.Fatalf("connect: unexpected session %+v", res.Session)
	}

	got, err := svc.VerifyToken(res.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.ID != res.Session.ID || got.Address != w.address {
		t.Fatalf("verify: got %+v want %+v", got, res.Session)
	}
	if !got.ExpiresAt.Equal(clock.now.Add(time.Hour)) {
		t.Fatalf("verify: expires %v", got.ExpiresAt)
	}
}

func TestService_ChallengeIsSingleUse(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	svc := newTestService(t, clock)
	w := newTestWallet(t, 1)

	req := w.sign(svc.Challenge())
	if _, err := svc.Connect(context.Background(), req); err != nil {
		t.Fatalf("first connect: %v", err)
	}
	if _, err := svc.Connect(context.Background(), req); !errors.Is(err, ErrUnknownChallenge) {
		t.Fatalf("replayed connect: expected ErrUnknownChallenge, got %v", err)
	}
}

func TestService_ChallengeExpires(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	svc := newTestService(t, clock)
	w := newTestWallet(t, 1)

	req := w.sign(svc.Challenge())
	clock.now = clock.now.Add(2 * time.Minute)
	if _, err := svc.Connect(context.Background(), req); !errors.Is(err, ErrUnknownChallenge) {
		t.Fatalf("expected ErrUnknownChallenge, got %v", err)
	}
}

func TestService_ConnectRejectsForgeries(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	svc := newTestService(t, clock)
	alice := newTestWallet(t, 1)
	mallory := newTestWallet(t, 2)

	cases := []struct {
		name   string
		mutate func(r *ConnectRequest)
		want   error
	}{
		{
			name:   "address of another key",
			mutate: func(r *ConnectRequest) { r.Address = mallory.address },
			want:   ErrAddressMismatch,
		},
		{
			name: "signature by another key",
			mutate: func(r *ConnectRequest) {
				r.Signature = hex.EncodeToString(ed25519.Sign(mallory.priv, []byte(ChallengeMessage(r.Nonce))))
			},
			want: ErrInvalidSignature,
		},
		{
			name:   "garbage signature",
			mutate: func(r *ConnectRequest) { r.Signature = "zz" },
			want:   ErrInvalidSignature,
		},
		{
			name:   "unknown network",
			mutate: func(r *ConnectRequest) { r.Network = "mainnet" },
			want:   ErrUnsupportedNetwork,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := alice.sign(svc.Challenge())
			tc.mutate(&req)
			if _, err := svc.Connect(context.Background(), req); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestService_DisconnectRevokesToken(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	svc := newTestService(t, clock)
	w := newTestWallet(t, 3)

	res, err := svc.Connect(context.Background(), w.sign(svc.Challenge()))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	svc.Disconnect(res.Session)

	if _, err := svc.VerifyToken(res.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after disconnect, got %v", err)
	}
}

func TestService_VerifyTokenRejectsExpiredAndForeign(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	svc := newTestService(t, clock)
	w := newTestWallet(t, 4)

	res, err := svc.Connect(context.Background(), w.sign(svc.Challenge()))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	other, err := NewService(Config{Secret: "other-secret"})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := other.WithClock(clock.Now).VerifyToken(res.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("foreign secret: expected ErrInvalidToken, got %v", err)
	}

	clock.now = clock.now.Add(2 * time.Hour)
	if _, err := svc.VerifyToken(res.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired: expected ErrInvalidToken, got %v", err)
	}
}

func TestNewService_RequiresSecret(t *testing.T) {
	if _, err := NewService(Config{}); err == nil {
		t.Fatal("expected error without secret")
	}
}

func TestSessionContext(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Fatal("empty context reported a session")
	}
	s := Session{ID: "s1", Address: "0x1234567890abcdef"}
	got, ok := FromContext(WithSession(context.Background(), s))
	if !ok || got.ID != "s1" {
		t.Fatalf("session = %+v ok = %v", got, ok)
	}
	if got.ShortAddress() != "0x1234...cdef" {
		t.Fatalf("short = %s", got.ShortAddress())
	}
}
