// Package turn mints coturn-compatible TURN REST credentials
// (draft-uberti-behave-turn-rest):
//
//	username   = <unix_expiry>:<prefix>:<session_id>
//	credential = base64(hmac_sha1(shared_secret, username))
//
// The expiry is computed from the server clock in UTC plus the TTL.
package turn

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Generator struct {
	secret []byte
	ttl    time.Duration
	prefix string
	now    func() time.Time
}

type Config struct {
	SharedSecret string
	TTL          time.Duration
	Prefix       string
	Now          func() time.Time
}

func NewGenerator(conf Config) (*Generator, error) {
	if conf.SharedSecret == "" {
		return nil, errors.New("shared secret is required")
	}
	if conf.TTL <= 0 {
		return nil, errors.New("TTL must be positive")
	}
	if conf.Prefix == "" || strings.ContainsRune(conf.Prefix, ':') {
		return nil, errors.New("prefix must be non-empty and colon-free")
	}
	if conf.Now == nil {
		conf.Now = time.Now
	}
	return &Generator{
		secret: []byte(conf.SharedSecret),
		ttl:    conf.TTL,
		prefix: conf.Prefix,
		now:    conf.Now,
	}, nil
}

type Credentials struct {
	Username   string
	Credential string
	ExpiryUnix int64
}

func (g *Generator) Generate(sessionID string) (Credentials, error) {
	if sessionID == "" || strings.ContainsRune(sessionID, ':') {
		return Credentials{}, errors.New("session id must be non-empty and colon-free")
	}
	expiry := g.now().UTC().Add(g.ttl).Unix()
	username := fmt.Sprintf("%d:%s:%s", expiry, g.prefix, sessionID)
	mac := hmac.New(sha1.New, g.secret)
	_, _ = mac.Write([]byte(username))
	return Credentials{
		Username:   username,
		Credential: base64.StdEncoding.EncodeToString(mac.Sum(nil)),
		ExpiryUnix: expiry,
	}, nil
}
