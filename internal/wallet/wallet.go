package wallet

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// maskDigits 展示用掩码保留的尾部字符数
const maskDigits = 4

// Identity 由发送者标识派生出的确定性身份
// 当前仅用于展示与关联，链上交易由运营者私钥签名
type Identity struct {
	Address common.Address
	key     *ecdsa.PrivateKey
}

// Hex 返回带校验和的地址字符串
func (i Identity) Hex() string {
	return i.Address.Hex()
}

// PrivateKey 返回派生私钥
func (i Identity) PrivateKey() *ecdsa.PrivateKey {
	return i.key
}

// Derive 根据 keccak256(identifier ‖ salt) 派生 secp256k1 私钥及地址
// 相同输入总是得到相同身份；哈希恰好不是合法标量时继续对其哈希
func Derive(identifier, salt string) Identity {
	seed := crypto.Keccak256([]byte(identifier + salt))
	for {
		key, err := crypto.ToECDSA(seed)
		if err == nil {
			return Identity{
				Address: crypto.PubkeyToAddress(key.PublicKey),
				key:     key,
			}
		}
		seed = crypto.Keccak256(seed)
	}
}

// Mask 返回标识的尾部字符，原始号码不落库
func Mask(identifier string) string {
	r := []rune(identifier)
	if len(r) <= maskDigits {
		return identifier
	}
	return string(r[len(r)-maskDigits:])
}

// Short 返回 0x1234...abcd 形式的缩写地址
func Short(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}
