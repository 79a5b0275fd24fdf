// Package reference encodes the (entry, feed, form) triple carried through the
// hosted checkout callback URL. The encoded value is a capability token: it
// carries an HMAC over the ids and is rejected unless the tag verifies.
package reference

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidReference = errors.New("invalid reference")

const (
	idSeparator  = "|"
	tagSeparator = "."
)

var encoding = base64.RawURLEncoding.Strict()

type IDs struct {
	EntryID int64
	FeedID  int64
	FormID  int64
}

type Codec struct {
	secret []byte
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

func (c *Codec) Encode(ids IDs) string {
	payload := join(ids)
	return encoding.EncodeToString([]byte(payload + tagSeparator + c.tag(payload)))
}

func (c *Codec) Decode(ref string) (IDs, error) {
	raw, err := encoding.DecodeString(ref)
	if err != nil {
		return IDs{}, fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	// Only the canonical encoding of the decoded bytes is accepted.
	if encoding.EncodeToString(raw) != ref {
		return IDs{}, ErrInvalidReference
	}

	payload, tag, ok := strings.Cut(string(raw), tagSeparator)
	if !ok {
		return IDs{}, ErrInvalidReference
	}
	if !hmac.Equal([]byte(tag), []byte(c.tag(payload))) {
		return IDs{}, ErrInvalidReference
	}

	parts := strings.Split(payload, idSeparator)
	if len(parts) != 3 {
		return IDs{}, ErrInvalidReference
	}
	var nums [3]int64
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n <= 0 {
			return IDs{}, ErrInvalidReference
		}
		nums[i] = n
	}

	return IDs{EntryID: nums[0], FeedID: nums[1], FormID: nums[2]}, nil
}

func (c *Codec) tag(payload string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func join(ids IDs) string {
	return strconv.FormatInt(ids.EntryID, 10) + idSeparator +
		strconv.FormatInt(ids.FeedID, 10) + idSeparator +
		strconv.FormatInt(ids.FormID, 10)
}
