// Package alert provides the shared dedup, budgeting, and push-delivery
// services used by the monitor tasks.
package alert

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// hourBucket floors a time to an hour counter so identical alerts within
// one hour hash the same.
func hourBucket(t time.Time) int64 {
	return t.UnixMilli() / 3_600_000
}

func hash(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// PriceHash identifies a price alert for one symbol in one hour.
func PriceHash(symbol string, now time.Time) string {
	return hash(fmt.Sprintf("price:%s:%d", strings.ToUpper(symbol), hourBucket(now)))
}

// NewsHash identifies a news alert by article url.
func NewsHash(url string) string {
	return hash("news:" + url)
}

// SocialHash identifies a social-buzz alert for one symbol in one hour.
func SocialHash(symbol string, now time.Time) string {
	return hash(fmt.Sprintf("social:%s:%d", strings.ToUpper(symbol), hourBucket(now)))
}

// GenericHash identifies any other alert by its content and hour.
func GenericHash(symbol, title, url string, now time.Time) string {
	return hash(fmt.Sprintf("%s:%s:%s:%d", strings.ToUpper(symbol), title, url, hourBucket(now)))
}
