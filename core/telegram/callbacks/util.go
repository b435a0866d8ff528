// Package callbacks decodes inline button payloads.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ParseCallbackData splits telebot's "\f<unique>|<payload>" encoding.
func ParseCallbackData(cb *tele.Callback) (unique, payload string) {
	if cb == nil {
		return "", ""
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	raw = strings.TrimPrefix(raw, `\f`)
	unique, payload, _ = strings.Cut(raw, "|")
	return strings.TrimSpace(unique), payload
}

// Key returns the unique part of the callback, preferring cb.Unique when telebot filled it.
func Key(cb *tele.Callback) string {
	if cb == nil {
		return ""
	}
	if cb.Unique != "" {
		return cb.Unique
	}
	k, _ := ParseCallbackData(cb)
	return k
}

// Payload returns the data after the unique part. When telebot already split the
// callback, Data holds the bare payload.
func Payload(cb *tele.Callback) string {
	if cb == nil {
		return ""
	}
	if cb.Unique != "" {
		return cb.Data
	}
	_, p := ParseCallbackData(cb)
	return p
}

// CallbackKey returns the unique key of the callback carried by c.
func CallbackKey(c tele.Context) string {
	return Key(c.Callback())
}

// CallbackPayload returns the payload of the callback carried by c.
func CallbackPayload(c tele.Context) string {
	return Payload(c.Callback())
}
