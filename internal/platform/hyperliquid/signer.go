package hyperliquid

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Hyperliquid L1 actions are signed EIP-712 style through a "phantom agent":
// the msgpack hash of the action becomes the agent's connectionId, and the
// agent struct is what actually gets signed.

var (
	// EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)
	eip712DomainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"),
	)

	// Agent(string source,bytes32 connectionId)
	agentTypeHash = ethcrypto.Keccak256(
		[]byte("Agent(string source,bytes32 connectionId)"),
	)
)

const (
	signingDomainName    = "Exchange"
	signingDomainVersion = "1"
	signingChainID       = 1337

	// agentSourceMainnet marks a mainnet action in the phantom agent.
	agentSourceMainnet = "a"
)

// Signer signs Hyperliquid exchange actions with a secp256k1 wallet key.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	domainSep  []byte // cached EIP-712 domain separator hash
}

// NewSigner parses a hex-encoded private key (0x prefix optional) and
// precomputes the exchange domain separator.
func NewSigner(privateKeyHex string) (*Signer, error) {
	keyHex := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	privateKey, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("hyperliquid: parse private key: %w", err)
	}

	s := &Signer{
		privateKey: privateKey,
		address:    ethcrypto.PubkeyToAddress(privateKey.PublicKey),
	}
	s.domainSep = s.domainSeparator()
	return s, nil
}

// Address returns the wallet address derived from the signing key.
func (s *Signer) Address() common.Address { return s.address }

func (s *Signer) domainSeparator() []byte {
	chainID := new(big.Int).SetInt64(signingChainID)
	var verifyingContract common.Address // the zero address, per protocol

	return ethcrypto.Keccak256(
		eip712DomainTypeHash,
		ethcrypto.Keccak256([]byte(signingDomainName)),
		ethcrypto.Keccak256([]byte(signingDomainVersion)),
		common.LeftPadBytes(chainID.Bytes(), 32),
		common.LeftPadBytes(verifyingContract.Bytes(), 32),
	)
}

// SignAction signs the phantom agent for the given action hash and returns
// the r/s/v signature the exchange endpoint expects.
func (s *Signer) SignAction(connectionID [32]byte) (rsvSignature, error) {
	structHash := ethcrypto.Keccak256(
		agentTypeHash,
		ethcrypto.Keccak256([]byte(agentSourceMainnet)),
		connectionID[:],
	)

	digest := ethcrypto.Keccak256(
		[]byte{0x19, 0x01},
		s.domainSep,
		structHash,
	)

	sig, err := ethcrypto.Sign(digest, s.privateKey)
	if err != nil {
		return rsvSignature{}, fmt.Errorf("hyperliquid: sign action: %w", err)
	}

	return rsvSignature{
		R: "0x" + common.Bytes2Hex(sig[:32]),
		S: "0x" + common.Bytes2Hex(sig[32:64]),
		V: sig[64] + 27,
	}, nil
}
