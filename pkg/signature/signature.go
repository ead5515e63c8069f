// Package signature 实现离线交易的签名校验。
//
// 方案：ECDSA P-256 + SHA-256，公钥为 PEM 编码的 SPKI，
// 签名为 ASN.1 DER 编码后再 base64。
// 被签名的规范化消息为 "senderId|receiverId|amount|nonce"，
// 与客户端侧的签名实现保持逐字节一致。
package signature

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidPublicKey = errors.New("公钥格式非法")
	ErrInvalidSignature = errors.New("签名格式非法")
)

// CanonicalMessage 构造被签名的规范化消息
func CanonicalMessage(senderID, receiverID, amount, nonce string) string {
	return strings.Join([]string{senderID, receiverID, amount, nonce}, "|")
}

// Verify 用 PEM 公钥校验 base64 DER 签名
func Verify(message, signatureB64, pubKeyPEM string) (bool, error) {
	pub, err := ParsePublicKey(pubKeyPEM)
	if err != nil {
		return false, err
	}

	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	digest := sha256.Sum256([]byte(message))
	return ecdsa.VerifyASN1(pub, digest[:], sig), nil
}

// Sign 用私钥对消息签名，返回 base64 DER
// 服务端只做校验，Sign 供测试和运维工具使用
func Sign(message string, priv *ecdsa.PrivateKey) (string, error) {
	digest := sha256.Sum256([]byte(message))
	sig, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// ParsePublicKey 解析 PEM 编码的 ECDSA 公钥
func ParsePublicKey(pubKeyPEM string) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pubKeyPEM))
	if block == nil {
		return nil, ErrInvalidPublicKey
	}

	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	pub, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return nil, ErrInvalidPublicKey
	}
	return pub, nil
}

// GenerateKeyPair 生成 P-256 密钥对，返回 (公钥PEM, 私钥)
func GenerateKeyPair() (string, *ecdsa.PrivateKey, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", nil, err
	}

	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return "", nil, err
	}

	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return string(pubPEM), priv, nil
}
