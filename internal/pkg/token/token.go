// Package token は保留コード・注文コード・チケットコードを生成する
package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// HoldCodeBytes は保留コードの乱数バイト数（16進で64文字）
const HoldCodeBytes = 32

// 紛らわしい文字（0,O,1,I）を除いた32文字
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// HoldCode は推測不能な座席保留コードを生成する
func HoldCode() (string, error) {
	b := make([]byte, HoldCodeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("乱数生成に失敗: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Code は prefix に n 文字の英数字を付けた人間向けコードを生成する
func Code(prefix string, n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("乱数生成に失敗: %w", err)
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return prefix + string(b), nil
}
