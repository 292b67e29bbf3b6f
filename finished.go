package dtls

import (
	"crypto/sha256"
	"crypto/subtle"

	"github.com/coapstack/dtls/pkg/crypto/prf"
	"github.com/coapstack/dtls/pkg/protocol"
	"github.com/coapstack/dtls/pkg/protocol/handshake"
)

const (
	labelClientFinished = "client finished"
	labelServerFinished = "server finished"
)

// computeVerifyData implements RFC 5246 §7.4.9: PRF(master_secret, label,
// Hash(handshake_messages))[0:12], where handshake_messages is every
// handshake message exchanged so far, excluding HelloVerifyRequest and
// this Finished itself.
func (h *Handshaker) computeVerifyData(masterSecret []byte, label string) []byte {
	sum := sha256.Sum256(h.handshakeTranscript)
	return prf.VerifyData(masterSecret, sum[:], label, handshake.VerifyDataLength, sha256.New)
}

// buildFinished derives this side's verify_data for label and wraps it in
// a Finished message.
func (h *Handshaker) buildFinished(masterSecret []byte, label string) *handshake.Finished {
	return &handshake.Finished{VerifyData: h.computeVerifyData(masterSecret, label)}
}

// verifyFinished checks a peer Finished's verify_data against what we'd
// compute for label ourselves, in constant time.
func (h *Handshaker) verifyFinished(f *handshake.Finished, masterSecret []byte, label string) bool {
	want := h.computeVerifyData(masterSecret, label)
	return len(want) == len(f.VerifyData) && subtle.ConstantTimeCompare(want, f.VerifyData) == 1
}

// sendChangeCipherSpecAndFinished builds Flight 5b/6 (RFC 6347 §4.2.4):
// ChangeCipherSpec under the current write epoch, followed by Finished
// under the next one. Deriving session's new epoch keys must already have
// happened (via DeriveKeys) before this is called. It advances session's
// write epoch as a side effect.
func (h *Handshaker) sendChangeCipherSpecAndFinished(session *Session, label string) ([][]byte, error) {
	ccsWire, err := sealRecord(session, protocol.ContentTypeChangeCipherSpec, []byte{1})
	if err != nil {
		return nil, err
	}
	session.AdvanceEpoch(1, true)

	finished := h.buildFinished(session.MasterSecret, label)
	body, err := finished.Marshal()
	if err != nil {
		return nil, err
	}
	seq := h.nextMessageSeq()
	h.recordTranscript(handshake.TypeFinished, seq, body)

	finishedDatagrams, err := packFlightDatagrams(session, fragmentHandshakeBody(handshake.TypeFinished, seq, body))
	if err != nil {
		return nil, err
	}
	return append([][]byte{ccsWire}, finishedDatagrams...), nil
}
