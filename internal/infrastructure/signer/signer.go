// Package signer holds request-signing credentials shared by the venue
// REST and stream clients.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer 生成私有接口请求签名
type Signer interface {
	APIKey() string
	Sign(payload string) string
}

// Credentials 包含 API 凭证和签名方法
type Credentials struct {
	apiKey    string
	apiSecret string
}

// NewCredentials 创建凭证对象
func NewCredentials(apiKey, apiSecret string) *Credentials {
	return &Credentials{
		apiKey:    apiKey,
		apiSecret: apiSecret,
	}
}

// Sign 生成 HMAC-SHA256 签名
func (c *Credentials) Sign(payload string) string {
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

// APIKey 返回 API Key
func (c *Credentials) APIKey() string {
	return c.apiKey
}

// Static returns a fixed signature regardless of payload. Used in
// tests and for venues that authenticate with the key header alone.
type Static struct {
	Key       string
	Signature string
}

func (s Static) APIKey() string     { return s.Key }
func (s Static) Sign(string) string { return s.Signature }
