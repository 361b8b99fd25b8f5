package testutil

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/stretchr/testify/require"
)

// NewAccountKey generates a fresh keypair and the ledger account id derived
// from it, the lowercase hex x-only public key.
func NewAccountKey(t *testing.T) (*btcec.PrivateKey, string) {
	t.Helper()
	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	accountID := hex.EncodeToString(schnorr.SerializePubKey(privKey.PubKey()))
	return privKey, accountID
}
