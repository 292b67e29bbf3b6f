package record

import "errors"

var errSequenceNumberOverflow = errors.New("dtls: record sequence number overflow")
