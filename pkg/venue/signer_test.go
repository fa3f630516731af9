package venue

import (
	"fmt"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

func testSigner(t *testing.T) (*Signer, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	hexKey := hexutil.Encode(crypto.FromECDSA(key))
	wallet, err := NewWallet(hexKey)
	if err != nil {
		t.Fatalf("NewWallet() error: %v", err)
	}
	return NewSigner(wallet, ExchangeDomain()), hexKey
}

func TestNewWallet(t *testing.T) {
	signer, hexKey := testSigner(t)

	bare, err := NewWallet(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		t.Fatalf("NewWallet() without prefix error: %v", err)
	}
	if bare.Address() != signer.Address() {
		t.Errorf("address = %s, want %s", bare.Address().Hex(), signer.Address().Hex())
	}

	if _, err := NewWallet("0x1234"); err == nil {
		t.Error("NewWallet() expected error for short key")
	}
}

func TestWallet_NeverPrintsKey(t *testing.T) {
	signer, hexKey := testSigner(t)
	wallet := signer.wallet

	for _, s := range []string{fmt.Sprint(wallet), fmt.Sprintf("%v", wallet), fmt.Sprintf("%#v", wallet)} {
		if strings.Contains(s, strings.TrimPrefix(hexKey, "0x")) {
			t.Errorf("formatted wallet leaks key: %s", s)
		}
	}

	_, err := NewWallet("zz" + strings.TrimPrefix(hexKey, "0x")[2:])
	if err == nil {
		t.Fatal("expected error")
	}
	if strings.Contains(err.Error(), hexKey[4:]) {
		t.Errorf("error leaks key: %v", err)
	}
}

func TestSignConnectionID_Recovers(t *testing.T) {
	signer, _ := testSigner(t)
	connID := crypto.Keccak256Hash([]byte("batch"))

	sig, err := signer.SignConnectionID(connID)
	if err != nil {
		t.Fatalf("SignConnectionID() error: %v", err)
	}
	if sig.V != 27 && sig.V != 28 {
		t.Errorf("v = %d, want 27 or 28", sig.V)
	}
	if len(sig.R) != 66 || len(sig.S) != 66 {
		t.Errorf("r/s should be 0x-prefixed 32-byte hex, got %s %s", sig.R, sig.S)
	}

	addr, err := signer.RecoverAgentSigner(connID, sig)
	if err != nil {
		t.Fatalf("RecoverAgentSigner() error: %v", err)
	}
	if addr != signer.Address() {
		t.Errorf("recovered %s, want %s", addr.Hex(), signer.Address().Hex())
	}
}

func TestSignConnectionID_Deterministic(t *testing.T) {
	signer, _ := testSigner(t)
	connID := crypto.Keccak256Hash([]byte("same"))

	first, err := signer.SignConnectionID(connID)
	if err != nil {
		t.Fatal(err)
	}
	second, err := signer.SignConnectionID(connID)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("signatures differ: %+v vs %+v", first, second)
	}

	other, err := signer.SignConnectionID(crypto.Keccak256Hash([]byte("different")))
	if err != nil {
		t.Fatal(err)
	}
	if other == first {
		t.Error("different connection ids produced the same signature")
	}
}

func TestAgentDigest_DomainMatters(t *testing.T) {
	signer, _ := testSigner(t)
	connID := common.HexToHash("0x01")

	base, err := signer.AgentDigest(connID)
	if err != nil {
		t.Fatal(err)
	}

	domain := ExchangeDomain()
	domain.ChainID.SetInt64(42161)
	other := NewSigner(signer.wallet, domain)
	changed, err := other.AgentDigest(connID)
	if err != nil {
		t.Fatal(err)
	}
	if string(base) == string(changed) {
		t.Error("digest should depend on chain id")
	}
}

func TestRecoverAgentSigner_WrongMessage(t *testing.T) {
	signer, _ := testSigner(t)
	sig, err := signer.SignConnectionID(common.HexToHash("0x01"))
	if err != nil {
		t.Fatal(err)
	}
	addr, err := signer.RecoverAgentSigner(common.HexToHash("0x02"), sig)
	if err == nil && addr == signer.Address() {
		t.Error("signature should not verify for a different connection id")
	}
}

func TestSignature_BytesOversized(t *testing.T) {
	signer, _ := testSigner(t)
	connID := common.HexToHash("0x01")
	sig, err := signer.SignConnectionID(connID)
	if err != nil {
		t.Fatal(err)
	}
	long := "0x01" + strings.TrimPrefix(sig.R, "0x")

	tests := []struct {
		name string
		sig  Signature
	}{
		{"long r", Signature{R: long, S: sig.S, V: sig.V}},
		{"long s", Signature{R: sig.R, S: long, V: sig.V}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.sig.Bytes(); err == nil {
				t.Error("Bytes() expected error for a 33-byte component")
			}
			if _, err := signer.RecoverAgentSigner(connID, tt.sig); err == nil {
				t.Error("RecoverAgentSigner() expected error for a 33-byte component")
			}
		})
	}
}
