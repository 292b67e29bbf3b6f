package dtls

import (
	"github.com/coapstack/dtls/pkg/protocol"
	"github.com/coapstack/dtls/pkg/protocol/handshake"
	"github.com/coapstack/dtls/pkg/protocol/record"
)

// defaultMTU is the conservative PMTU assumed absent a Path MTU probe.
const defaultMTU = 1280

// maxDatagramSize bounds a single outbound UDP datagram; IPv4 links
// without fragmentation concerns can carry slightly more than defaultMTU.
const maxDatagramSize = 1472

// maxFragmentPayload is how much handshake body a single fragment may
// carry, leaving room for the handshake header, record header, and any
// AEAD/CBC expansion within maxDatagramSize.
const maxFragmentPayload = defaultMTU - record.HeaderSize - handshake.HeaderSize - 32

// fragmentHandshakeBody splits a handshake message body into one or more
// Fragments no larger than maxFragmentPayload, preserving msgSeq across
// all of them (RFC 6347 §4.2.3).
func fragmentHandshakeBody(msgType handshake.Type, msgSeq uint16, body []byte) []handshake.Fragment {
	total := uint32(len(body))
	var frags []handshake.Fragment
	offset := uint32(0)
	for {
		end := offset + uint32(maxFragmentPayload)
		if end > total {
			end = total
		}
		frags = append(frags, handshake.Fragment{
			Header: handshake.Header{
				Type:            msgType,
				Length:          total,
				MessageSequence: msgSeq,
				FragmentOffset:  offset,
				FragmentLength:  end - offset,
			},
			Data: body[offset:end],
		})
		offset = end
		if offset >= total {
			break
		}
	}
	return frags
}

// packFlightDatagrams encrypts each fragment as one HANDSHAKE record
// under session, then packs consecutive records into as few datagrams as
// fit within maxDatagramSize, per RFC 6347 §4.2.3 ("several records
// belonging to the same flight may be packed into a single datagram").
func packFlightDatagrams(session *Session, fragments []handshake.Fragment) ([][]byte, error) {
	var datagrams [][]byte
	var current []byte

	for _, f := range fragments {
		header, payload, err := session.EncryptOutbound(protocol.ContentTypeHandshake, f.Marshal())
		if err != nil {
			return nil, err
		}
		wire, err := header.Marshal()
		if err != nil {
			return nil, err
		}
		wire = append(wire, payload...)

		if len(current)+len(wire) > maxDatagramSize && len(current) > 0 {
			datagrams = append(datagrams, current)
			current = nil
		}
		current = append(current, wire...)
	}
	if len(current) > 0 {
		datagrams = append(datagrams, current)
	}
	return datagrams, nil
}

// sealRecord encrypts a single non-fragmented record (ChangeCipherSpec,
// Alert, ApplicationData) and returns its wire bytes.
func sealRecord(session *Session, contentType protocol.ContentType, plaintext []byte) ([]byte, error) {
	header, payload, err := session.EncryptOutbound(contentType, plaintext)
	if err != nil {
		return nil, err
	}
	wire, err := header.Marshal()
	if err != nil {
		return nil, err
	}
	return append(wire, payload...), nil
}
