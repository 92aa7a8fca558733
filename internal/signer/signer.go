package signer

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/decred/dcrd/hdkeychain/v3"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/usbwallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

const DefaultHDPath = "m/44'/60'/0'/0/0"

// Signer produces the signed messages the gateway authenticates requests with.
type Signer interface {
	Address() common.Address
	// SignText signs msg as an EIP-191 personal message.
	SignText(msg string) ([]byte, error)
}

// Options selects the signing identity. Exactly one of PrivateKey, Mnemonic
// and Ledger must be set.
type Options struct {
	PrivateKey string
	Mnemonic   string
	HDPath     string
	Ledger     bool
	Index      int
}

type ecdsaSigner struct {
	*ecdsa.PrivateKey
}

type walletSigner struct {
	wallet  accounts.Wallet
	account accounts.Account
}

type fakeNetworkParams struct{}

func New(opts Options) (Signer, error) {
	set := 0
	for _, ok := range []bool{opts.PrivateKey != "", opts.Mnemonic != "", opts.Ledger} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("one (and only one) of private key, mnemonic, ledger must be set")
	}

	hdPath := opts.HDPath
	if hdPath == "" {
		hdPath = DefaultHDPath
	}
	path, err := accounts.ParseDerivationPath(hdPath)
	if err != nil {
		return nil, err
	}

	if opts.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(opts.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("error parsing private key: %w", err)
		}
		return &ecdsaSigner{key}, nil
	}

	if opts.Mnemonic != "" {
		key, err := derivePrivateKey(opts.Mnemonic, path)
		if err != nil {
			return nil, fmt.Errorf("error deriving key from mnemonic: %w", err)
		}
		return &ecdsaSigner{key}, nil
	}

	ledgerHub, err := usbwallet.NewLedgerHub()
	if err != nil {
		return nil, fmt.Errorf("error starting ledger: %w", err)
	}

	wallets := ledgerHub.Wallets()
	if len(wallets) == 0 {
		return nil, fmt.Errorf("no ledgers found, please connect your ledger")
	}
	if opts.Index < 0 || opts.Index >= len(wallets) {
		return nil, fmt.Errorf("ledger index out of range")
	}

	wallet := wallets[opts.Index]
	if err := wallet.Open(""); err != nil {
		return nil, fmt.Errorf("error opening ledger: %w", err)
	}

	account, err := wallet.Derive(path, true)
	if err != nil {
		return nil, fmt.Errorf("error deriving ledger account (please unlock and open the Ethereum app): %w", err)
	}

	return &walletSigner{
		wallet:  wallet,
		account: account,
	}, nil
}

func (s *ecdsaSigner) Address() common.Address {
	return crypto.PubkeyToAddress(s.PublicKey)
}

func (s *ecdsaSigner) SignText(msg string) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(msg)), s.PrivateKey)
	if err != nil {
		return nil, err
	}
	// V from 0/1 to 27/28
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

func (s *walletSigner) Address() common.Address {
	return s.account.Address
}

func (s *walletSigner) SignText(msg string) ([]byte, error) {
	sig, err := s.wallet.SignText(s.account, []byte(msg))
	if err != nil {
		return nil, fmt.Errorf("error signing with ledger: %w", err)
	}
	if sig[crypto.RecoveryIDOffset] < 27 {
		sig[crypto.RecoveryIDOffset] += 27
	}
	return sig, nil
}

// SignedMessage returns msg together with its 0x prefixed hex signature, the
// pair every authenticated gateway request carries.
func SignedMessage(s Signer, msg string) (string, string, error) {
	sig, err := s.SignText(msg)
	if err != nil {
		return "", "", err
	}
	return msg, hexutil.Encode(sig), nil
}

func derivePrivateKey(mnemonic string, path accounts.DerivationPath) (*ecdsa.PrivateKey, error) {
	// Parse the seed string into the master BIP32 key.
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, err
	}

	privKey, err := hdkeychain.NewMaster(seed, fakeNetworkParams{})
	if err != nil {
		return nil, err
	}

	for _, child := range path {
		privKey, err = privKey.Child(child)
		if err != nil {
			return nil, err
		}
	}

	rawPrivKey, err := privKey.SerializedPrivKey()
	if err != nil {
		return nil, err
	}

	return crypto.ToECDSA(rawPrivKey)
}

func (f fakeNetworkParams) HDPrivKeyVersion() [4]byte {
	return [4]byte{}
}

func (f fakeNetworkParams) HDPubKeyVersion() [4]byte {
	return [4]byte{}
}
