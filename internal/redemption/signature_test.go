package redemption

import (
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/fundlabs-io/vault-engine/internal/types"
	"github.com/fundlabs-io/vault-engine/testutil"
)

var testDomain = Domain{Name: "vault-engine", Version: "1", FundID: "fund-a"}

func newSignedMessage(t *testing.T) (RequestMessage, string) {
	t.Helper()
	privKey, owner := testutil.NewAccountKey(t)
	msg := RequestMessage{
		Owner:        owner,
		ShareAmount:  math.NewInt(100),
		MinAssetsOut: math.NewInt(90),
		Deadline:     time.Now().Add(time.Hour).UTC(),
		Nonce:        1,
	}
	signature, err := Sign(privKey, testDomain, msg)
	require.NoError(t, err)
	return msg, signature
}

func TestSignVerifyRoundTrip(t *testing.T) {
	msg, signature := newSignedMessage(t)
	require.Nil(t, Verify(testDomain, msg, signature))
}

func TestVerifyRejectsTamperedFields(t *testing.T) {
	msg, signature := newSignedMessage(t)

	tampered := msg
	tampered.ShareAmount = math.NewInt(101)
	require.True(t, types.HasErrorCode(Verify(testDomain, tampered, signature), types.BadSignature))

	tampered = msg
	tampered.MinAssetsOut = math.NewInt(1)
	require.True(t, types.HasErrorCode(Verify(testDomain, tampered, signature), types.BadSignature))

	tampered = msg
	tampered.Nonce = 2
	require.True(t, types.HasErrorCode(Verify(testDomain, tampered, signature), types.BadSignature))

	tampered = msg
	tampered.Deadline = msg.Deadline.Add(time.Minute)
	require.True(t, types.HasErrorCode(Verify(testDomain, tampered, signature), types.BadSignature))
}

func TestVerifyRejectsWrongSigner(t *testing.T) {
	msg, _ := newSignedMessage(t)

	otherKey, _ := testutil.NewAccountKey(t)
	forged, err := Sign(otherKey, testDomain, msg)
	require.NoError(t, err)

	require.True(t, types.HasErrorCode(Verify(testDomain, msg, forged), types.BadSignature))
}

func TestVerifyRejectsCrossDomainReplay(t *testing.T) {
	msg, signature := newSignedMessage(t)

	otherFund := Domain{Name: "vault-engine", Version: "1", FundID: "fund-b"}
	require.True(t, types.HasErrorCode(Verify(otherFund, msg, signature), types.BadSignature))

	otherVersion := Domain{Name: "vault-engine", Version: "2", FundID: "fund-a"}
	require.True(t, types.HasErrorCode(Verify(otherVersion, msg, signature), types.BadSignature))
}

func TestVerifyRejectsMalformedInput(t *testing.T) {
	msg, signature := newSignedMessage(t)

	badOwner := msg
	badOwner.Owner = "not-hex"
	require.True(t, types.HasErrorCode(Verify(testDomain, badOwner, signature), types.BadSignature))

	require.True(t, types.HasErrorCode(Verify(testDomain, msg, "zzzz"), types.BadSignature))
	require.True(t, types.HasErrorCode(Verify(testDomain, msg, "deadbeef"), types.BadSignature))
}
