package dtls

import (
	"crypto/x509"
	"net"
	"sync"
	"sync/atomic"

	"github.com/coapstack/dtls/internal/replay"
	"github.com/coapstack/dtls/pkg/crypto/ciphersuite"
	"github.com/coapstack/dtls/pkg/protocol"
	"github.com/coapstack/dtls/pkg/protocol/record"
)

// PeerIdentity is how the far end authenticated: a PSK identity, a raw
// public key (RFC 7250), or an X.509 chain. At most one field is set.
type PeerIdentity struct {
	PSKIdentity []byte
	RawKey      []byte
	Chain       []*x509.Certificate
}

// Session is an established (or establishing) DTLS security context for
// one peer: negotiated cipher suite, derived key material, and the
// epoch/sequence/replay-window bookkeeping the record layer needs to
// encrypt outbound records and authenticate inbound ones.
//
// Grounded on pion-dtls's State (state.go) plus its per-epoch handling
// scattered across conn.go, unified here into one type the Connection
// embeds.
type Session struct {
	PeerAddr     net.Addr
	SessionID    []byte
	SuiteID      ciphersuite.ID
	ClientRandom []byte
	ServerRandom []byte
	MasterSecret []byte
	Identity     PeerIdentity
	IsClient     bool

	suite ciphersuite.CipherSuite

	mu          sync.Mutex
	writeEpoch  uint16
	writeSeq    uint64
	readEpoch   uint16
	replayByEpoch map[uint16]*replay.Detector

	established atomic.Bool
}

// NewSession creates a Session bound to a negotiated cipher suite, ready
// for DeriveKeys once the master secret is known.
func NewSession(peerAddr net.Addr, suiteID ciphersuite.ID, isClient bool) *Session {
	return &Session{
		PeerAddr:      peerAddr,
		SuiteID:       suiteID,
		IsClient:      isClient,
		suite:         ciphersuite.New(suiteID),
		replayByEpoch: map[uint16]*replay.Detector{0: replay.New()},
	}
}

// DeriveKeys computes this session's traffic keys from MasterSecret,
// ClientRandom and ServerRandom, which must already be set.
func (s *Session) DeriveKeys() error {
	return s.suite.Init(s.MasterSecret, s.ClientRandom, s.ServerRandom, s.IsClient)
}

// MarkEstablished flips the session into the established state, entered
// once the Finished exchange completes successfully.
func (s *Session) MarkEstablished() { s.established.Store(true) }

// Established reports whether this session has completed its handshake.
func (s *Session) Established() bool { return s.established.Load() }

// AdvanceEpoch bumps epoch and resets the per-direction sequence counter
// and replay window, as ChangeCipherSpec requires.
func (s *Session) AdvanceEpoch(newEpoch uint16, forWrite bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if forWrite {
		s.writeEpoch = newEpoch
		s.writeSeq = 0
		return
	}
	s.readEpoch = newEpoch
	if _, ok := s.replayByEpoch[newEpoch]; !ok {
		s.replayByEpoch[newEpoch] = replay.New()
	}
}

// ReadEpoch returns the epoch the read side currently expects.
func (s *Session) ReadEpoch() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readEpoch
}

// EncryptOutbound seals plaintext as the body of a record with the given
// content type, stamped with the session's current write epoch and the
// next sequence number, returning the record's wire header and payload.
func (s *Session) EncryptOutbound(contentType protocol.ContentType, plaintext []byte) (record.Header, []byte, error) {
	s.mu.Lock()
	if s.writeSeq > record.MaxSequenceNumber {
		s.mu.Unlock()
		return record.Header{}, nil, ErrSeqExhausted
	}
	epoch := s.writeEpoch
	seq := s.writeSeq
	s.writeSeq++
	s.mu.Unlock()

	header := record.Header{
		ContentType:    contentType,
		Version:        protocol.Version1_2,
		Epoch:          epoch,
		SequenceNumber: seq,
	}

	if epoch == 0 {
		header.ContentLen = uint16(len(plaintext))
		return header, plaintext, nil
	}

	payload, err := s.suite.Encrypt(ciphersuite.RecordParams{
		Epoch:          epoch,
		SequenceNumber: seq,
		ContentType:    byte(contentType),
		Version:        [2]byte{header.Version.Major, header.Version.Minor},
	}, plaintext)
	if err != nil {
		return record.Header{}, nil, err
	}
	header.ContentLen = uint16(len(payload))
	return header, payload, nil
}

// DecryptInbound authenticates and opens an inbound record's payload. It
// rejects records against an epoch the session isn't expecting to read
// and records already seen in that epoch's replay window.
func (s *Session) DecryptInbound(header record.Header, payload []byte) ([]byte, error) {
	s.mu.Lock()
	detector, ok := s.replayByEpoch[header.Epoch]
	s.mu.Unlock()
	if !ok {
		return nil, ErrEpochMismatch
	}

	accept, ok := detector.Check(header.SequenceNumber)
	if !ok {
		return nil, ErrReplay
	}

	if header.Epoch == 0 {
		accept()
		return payload, nil
	}

	plaintext, err := s.suite.Decrypt(ciphersuite.RecordParams{
		Epoch:          header.Epoch,
		SequenceNumber: header.SequenceNumber,
		ContentType:    byte(header.ContentType),
		Version:        [2]byte{header.Version.Major, header.Version.Minor},
	}, payload)
	if err != nil {
		return nil, err
	}
	accept()
	return plaintext, nil
}
