package clusterbus

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/solostec/smf-gateway/pkg/log"
)

// OperatorAccount is a local (non-LDAP) operator credential, bcrypt
// hashed at rest, mirroring internal/auth's local authenticator but
// without its net/http request coupling — a cluster-bus login arrives
// as an envelope, not an HTTP form post.
type OperatorAccount struct {
	Username string
	Password []byte // bcrypt hash
	Roles    []string
}

// LdapConfig dials an LDAP server to bind-verify an operator's
// password, grounded on internal/auth/ldap.go's getLdapConnection/Bind
// sequence.
type LdapConfig struct {
	URL      string
	UserBind string // e.g. "uid=%s,ou=people,dc=example,dc=org"
}

// OperatorAuth authenticates human pty operators logging into the
// cluster bus (`cluster.req.login`), distinct from the IP-T device
// login `ipt.Session.Login` verifies (operator session authentication
// vs. meter login). Either local accounts or an LDAP server may be
// configured; local accounts are tried first.
type OperatorAuth struct {
	accounts  map[string]OperatorAccount
	ldap      *LdapConfig
	jwtSecret []byte
	tokenTTL  time.Duration
}

// NewOperatorAuth builds an operator authenticator. jwtSecret signs
// the tag issued on successful login; accounts/ldap may be nil/empty
// to disable that credential source.
func NewOperatorAuth(accounts map[string]OperatorAccount, ldapCfg *LdapConfig, jwtSecret []byte, tokenTTL time.Duration) *OperatorAuth {
	if tokenTTL == 0 {
		tokenTTL = time.Hour
	}
	return &OperatorAuth{accounts: accounts, ldap: ldapCfg, jwtSecret: jwtSecret, tokenTTL: tokenTTL}
}

// Login verifies username/password against the local account table
// first, then LDAP if configured, and on success returns a signed JWT
// to use as the session's cluster-bus tag.
func (o *OperatorAuth) Login(username, password string) (string, []string, error) {
	if acc, ok := o.accounts[username]; ok {
		if bcrypt.CompareHashAndPassword(acc.Password, []byte(password)) != nil {
			return "", nil, fmt.Errorf("clusterbus: local login failed for %q", username)
		}
		tag, err := o.issue(username, acc.Roles)
		return tag, acc.Roles, err
	}

	if o.ldap != nil {
		if err := o.ldapBind(username, password); err != nil {
			return "", nil, err
		}
		roles := []string{"operator"}
		tag, err := o.issue(username, roles)
		return tag, roles, err
	}

	return "", nil, errors.New("clusterbus: no matching account")
}

func (o *OperatorAuth) ldapBind(username, password string) error {
	conn, err := ldap.DialURL(o.ldap.URL)
	if err != nil {
		return fmt.Errorf("clusterbus: ldap dial: %w", err)
	}
	defer conn.Close()

	dn := fmt.Sprintf(o.ldap.UserBind, username)
	if err := conn.Bind(dn, password); err != nil {
		log.Warnf("clusterbus: ldap bind failed for %q: %v", username, err)
		return fmt.Errorf("clusterbus: ldap bind failed: %w", err)
	}
	return nil
}

// issue signs a compact JWT carrying username/roles, the same claim
// shape as internal/auth's JWTAuthenticator.ProvideJWT, simplified to
// HMAC since the cluster bus has no need for multi-authenticator
// ed25519 key rotation.
func (o *OperatorAuth) issue(username string, roles []string) (string, error) {
	if len(o.jwtSecret) == 0 {
		return username, nil // tag-only mode: no signing key configured
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   username,
		"roles": roles,
		"iat":   now.Unix(),
		"exp":   now.Add(o.tokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(o.jwtSecret)
}

// VerifyTag validates a tag previously issued by issue, returning the
// subject and roles if still valid.
func (o *OperatorAuth) VerifyTag(tag string) (string, []string, error) {
	if len(o.jwtSecret) == 0 {
		return tag, nil, nil
	}
	token, err := jwt.Parse(tag, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("clusterbus: unexpected signing method %v", t.Header["alg"])
		}
		return o.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", nil, fmt.Errorf("clusterbus: invalid tag: %w", err)
	}
	claims := token.Claims.(jwt.MapClaims)
	sub, _ := claims["sub"].(string)
	var roles []string
	if rs, ok := claims["roles"].([]interface{}); ok {
		for _, r := range rs {
			if s, ok := r.(string); ok {
				roles = append(roles, s)
			}
		}
	}
	return sub, roles, nil
}
