package dtls

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"net"
	"sync"
)

const cookieSecretLen = 32

// cookieGenerator issues and verifies the stateless HelloVerifyRequest
// cookie (RFC 6347 §4.2.1): an HMAC over the client's address and its
// ClientHello parameters, so the server need not hold any state until the
// client proves it owns that address by echoing the cookie back.
//
// Rotation cadence is left to the operator; this keeps the current and
// previous secret live simultaneously so a cookie issued just before a
// rotation still verifies.
type cookieGenerator struct {
	mu       sync.RWMutex
	current  [cookieSecretLen]byte
	previous [cookieSecretLen]byte
	hasPrev  bool
}

func newCookieGenerator() (*cookieGenerator, error) {
	g := &cookieGenerator{}
	if _, err := rand.Read(g.current[:]); err != nil {
		return nil, err
	}
	return g, nil
}

// Rotate replaces the current secret with a fresh one, keeping the old
// one as "previous" so cookies issued under it remain valid until the
// next rotation.
func (g *cookieGenerator) Rotate() error {
	var next [cookieSecretLen]byte
	if _, err := rand.Read(next[:]); err != nil {
		return err
	}
	g.mu.Lock()
	g.previous = g.current
	g.hasPrev = true
	g.current = next
	g.mu.Unlock()
	return nil
}

func cookieMAC(secret [cookieSecretLen]byte, addr net.Addr, clientHelloParams []byte) []byte {
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(addr.String()))
	mac.Write(clientHelloParams)
	return mac.Sum(nil)[:16]
}

// Generate produces a fresh cookie for the given peer address and the
// ClientHello fields that seed it (version, random, session id, cipher
// suite list — anything the server wants to bind the cookie to).
func (g *cookieGenerator) Generate(addr net.Addr, clientHelloParams []byte) []byte {
	g.mu.RLock()
	secret := g.current
	g.mu.RUnlock()
	return cookieMAC(secret, addr, clientHelloParams)
}

// Verify reports whether cookie matches what Generate would have produced
// under the current or previous secret.
func (g *cookieGenerator) Verify(cookie []byte, addr net.Addr, clientHelloParams []byte) bool {
	g.mu.RLock()
	current, previous, hasPrev := g.current, g.previous, g.hasPrev
	g.mu.RUnlock()

	if hmac.Equal(cookieMAC(current, addr, clientHelloParams), cookie) {
		return true
	}
	if hasPrev && hmac.Equal(cookieMAC(previous, addr, clientHelloParams), cookie) {
		return true
	}
	return false
}
