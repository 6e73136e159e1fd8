// Package bankfeed pulls booked transactions from the Enable Banking API and
// writes them to the bucket as per-day CSV exports for the sync to import.
package bankfeed

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

const (
	tokenIssuer   = "enablebanking.com"
	tokenAudience = "api.enablebanking.com"
	tokenLifetime = time.Hour
)

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Code)
}

// Amount is a transaction amount as the API reports it: an unsigned decimal
// string, with the sign carried by the credit/debit indicator.
type Amount struct {
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

type Transaction struct {
	BookingDate           string   `json:"booking_date"`
	TransactionAmount     Amount   `json:"transaction_amount"`
	CreditDebitIndicator  string   `json:"credit_debit_indicator"`
	RemittanceInformation []string `json:"remittance_information"`
}

type AccountIdentification struct {
	IBAN string `json:"iban"`
}

type SessionAccount struct {
	UID       string                `json:"uid"`
	AccountID AccountIdentification `json:"account_id"`
}

// Session is an authorized Enable Banking session as stored in the bucket.
type Session struct {
	SessionID string           `json:"session_id"`
	Accounts  []SessionAccount `json:"accounts"`
}

type transactionsPage struct {
	Transactions    []Transaction `json:"transactions"`
	ContinuationKey string        `json:"continuation_key"`
}

// Client talks to the Enable Banking API with application-signed tokens.
type Client struct {
	http   *http.Client
	origin string
	appID  string
	key    *rsa.PrivateKey
	now    func() time.Time
}

func NewClient(origin, appID string, key *rsa.PrivateKey) *Client {
	return &Client{
		http:   http.DefaultClient,
		origin: origin,
		appID:  appID,
		key:    key,
		now:    time.Now,
	}
}

// ParsePrivateKey decodes a base64 encoded PEM RSA key, PKCS#8 or PKCS#1.
func ParsePrivateKey(encoded string) (*rsa.PrivateKey, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("private key is not PEM encoded")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not an RSA key")
	}
	return key, nil
}

// token signs a short-lived RS256 JWT identifying the application.
func (c *Client) token() (string, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: jose.JSONWebKey{Key: c.key, KeyID: c.appID}},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create signer: %w", err)
	}

	now := c.now()
	claims := jwt.Claims{
		Issuer:   tokenIssuer,
		Audience: jwt.Audience{tokenAudience},
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(tokenLifetime)),
	}
	token, err := jwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.origin + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	token, err := c.token()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Method: http.MethodGet, Path: path, Code: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: failed to decode response: %w", path, err)
	}
	return nil
}

// SessionValid reports whether the API still accepts sessionID. Any non-2xx
// answer counts as invalid; transport errors are returned.
func (c *Client) SessionValid(ctx context.Context, sessionID string) (bool, error) {
	err := c.get(ctx, "/sessions/"+url.PathEscape(sessionID), nil, nil)
	var se *StatusError
	if errors.As(err, &se) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Transactions returns every transaction of accountUID booked between from
// and to, following continuation keys.
func (c *Client) Transactions(ctx context.Context, accountUID, from, to string) ([]Transaction, error) {
	query := url.Values{
		"date_from": {from},
		"date_to":   {to},
		"strategy":  {"default"},
	}
	path := "/accounts/" + url.PathEscape(accountUID) + "/transactions"

	var all []Transaction
	for {
		var page transactionsPage
		if err := c.get(ctx, path, query, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Transactions...)
		if page.ContinuationKey == "" {
			return all, nil
		}
		query.Set("continuation_key", page.ContinuationKey)
	}
}
