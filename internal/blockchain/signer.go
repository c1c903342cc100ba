package blockchain

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"omnitip-relay/pkg/errors"
	"omnitip-relay/pkg/logger"
)

// NonceSource 提供账户的待处理 nonce
type NonceSource interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// Signer 运营者签名身份，所有并发提交共享同一账户
// 本地维护 nonce 并串行化分配，避免并发交易 nonce 冲突
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int

	mu     sync.Mutex
	nonce  uint64
	synced bool
}

// NewSigner 从十六进制私钥创建签名者，允许 0x 前缀
func NewSigner(hexKey string, chainID int64) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, errors.New(errors.ErrInvalidKey, "解析运营者私钥失败", err)
	}
	return NewSignerFromKey(key, chainID), nil
}

func NewSignerFromKey(key *ecdsa.PrivateKey, chainID int64) *Signer {
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: big.NewInt(chainID),
	}
}

func (s *Signer) Address() common.Address {
	return s.address
}

// Send 在持锁期间分配 nonce 并调用 submit 广播交易
// 只覆盖签名与广播阶段，等待回执不占用锁
// 广播失败后下一次调用会从节点重新同步 nonce
func (s *Signer) Send(ctx context.Context, nonces NonceSource,
	submit func(opts *bind.TransactOpts) (*types.Transaction, error)) (*types.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.synced {
		pending, err := nonces.PendingNonceAt(ctx, s.address)
		if err != nil {
			return nil, errors.New(errors.ErrLedgerCallFailed, "获取账户nonce失败", err)
		}
		s.nonce = pending
		s.synced = true
	}

	opts, err := bind.NewKeyedTransactorWithChainID(s.key, s.chainID)
	if err != nil {
		return nil, errors.New(errors.ErrLedgerCallFailed, "创建交易签名器失败", err)
	}
	opts.Context = ctx
	opts.Nonce = new(big.Int).SetUint64(s.nonce)

	tx, err := submit(opts)
	if err != nil {
		s.synced = false
		logger.WithFields(logrus.Fields{
			"operator": s.address.Hex(),
			"nonce":    s.nonce,
		}).WithError(err).Warn("交易广播失败，下次重新同步nonce")
		return nil, err
	}

	s.nonce++
	return tx, nil
}
