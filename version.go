package dtls

import "github.com/coapstack/dtls/pkg/protocol"

// protocolVersion is the only wire version this module negotiates.
// DTLS 1.3 is a Non-goal.
var protocolVersion = protocol.Version1_2
