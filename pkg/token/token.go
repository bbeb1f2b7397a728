package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"
)

var (
	// ErrMalformed 表示令牌格式不正确
	ErrMalformed = errors.New("token: malformed")
	// ErrBadSignature 表示签名校验失败
	ErrBadSignature = errors.New("token: bad signature")
	// ErrExpired 表示令牌已过期
	ErrExpired = errors.New("token: expired")
)

var (
	mu        sync.RWMutex
	secretKey []byte
)

// Payload 定义了需要被签名的会话数据。
type Payload struct {
	UserID    string `json:"u"`
	ExpiresAt int64  `json:"e"`
}

// SetSecretKey 设置签名密钥，通常来自配置文件。
func SetSecretKey(key []byte) {
	mu.Lock()
	defer mu.Unlock()
	secretKey = append([]byte(nil), key...)
}

// GenerateSecretKey 生成一个密码学安全的32字节随机密钥。
// 仅用于没有配置密钥的开发环境，进程重启后旧令牌全部失效。
func GenerateSecretKey() {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic("无法生成安全的密钥: " + err.Error())
	}
	SetSecretKey(key)
}

func sign(payloadBytes []byte) []byte {
	mu.RLock()
	defer mu.RUnlock()
	mac := hmac.New(sha256.New, secretKey)
	mac.Write(payloadBytes)
	return mac.Sum(nil)
}

// Issue 为用户签发一个会话令牌，格式为 base64(payload).base64(signature)
func Issue(userID string, ttl time.Duration, now time.Time) (string, error) {
	if userID == "" {
		return "", errors.New("token: empty user id")
	}
	payloadBytes, err := json.Marshal(Payload{UserID: userID, ExpiresAt: now.Add(ttl).Unix()})
	if err != nil {
		return "", err
	}
	enc := base64.RawURLEncoding
	return enc.EncodeToString(payloadBytes) + "." + enc.EncodeToString(sign(payloadBytes)), nil
}

// Validate 校验令牌并返回其中的用户ID。
func Validate(tok string, now time.Time) (string, error) {
	payloadPart, sigPart, ok := strings.Cut(tok, ".")
	if !ok {
		return "", ErrMalformed
	}
	enc := base64.RawURLEncoding
	payloadBytes, err := enc.DecodeString(payloadPart)
	if err != nil {
		return "", ErrMalformed
	}
	actual, err := enc.DecodeString(sigPart)
	if err != nil {
		return "", ErrMalformed
	}

	// 使用 hmac.Equal 进行时间恒定的比较，防止时序攻击
	if !hmac.Equal(sign(payloadBytes), actual) {
		return "", ErrBadSignature
	}

	var p Payload
	if err := json.Unmarshal(payloadBytes, &p); err != nil || p.UserID == "" {
		return "", ErrMalformed
	}
	if now.Unix() >= p.ExpiresAt {
		return "", ErrExpired
	}
	return p.UserID, nil
}
