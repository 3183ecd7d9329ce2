package payment

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// Sign computes the gateway signature: md5 over "shop_id:amount:order_id:token".
func Sign(shopID, amount, orderID, token string) string {
	sum := md5.Sum([]byte(strings.Join([]string{shopID, amount, orderID, token}, ":")))
	return hex.EncodeToString(sum[:])
}

// VerifySignature compares in constant time. The amount must be the string as received.
func VerifySignature(shopID, amount, orderID, token, sign string) bool {
	if sign == "" || token == "" {
		return false
	}
	want := Sign(shopID, amount, orderID, token)
	return subtle.ConstantTimeCompare([]byte(want), []byte(strings.ToLower(sign))) == 1
}
