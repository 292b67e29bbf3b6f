package alert

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAlertRoundTrip(t *testing.T) {
	a := Alert{Level: Fatal, Description: BadRecordMac}
	raw, err := a.Marshal()
	require.NoError(t, err)
	require.Len(t, raw, 2)

	var got Alert
	require.NoError(t, got.Unmarshal(raw))
	require.Equal(t, a, got)
}

func TestAlertUnmarshalRejectsWrongLength(t *testing.T) {
	var a Alert
	require.Error(t, a.Unmarshal([]byte{1}))
	require.Error(t, a.Unmarshal([]byte{1, 2, 3}))
}

func TestNoRenegotiationIsWarningLevel(t *testing.T) {
	a := Alert{Level: Warning, Description: NoRenegotiation}
	require.Equal(t, "alert: Warning no_renegotiation", a.Error())
}
