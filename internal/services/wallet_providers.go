package services

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"shellgame-backend/internal/models"
)

// KeystoreProvider signs with a local ed25519 key file. The key is created
// on first connect if the file does not exist.
type KeystoreProvider struct {
	id   string
	path string
	node LedgerNode

	priv    ed25519.PrivateKey
	address string
}

type keystoreFile struct {
	Algo string `json:"algo"`
	Priv string `json:"priv_hex"`
	Pub  string `json:"pub_hex"`
}

func NewKeystoreProvider(id, path string, node LedgerNode) *KeystoreProvider {
	return &KeystoreProvider{id: id, path: path, node: node}
}

func (p *KeystoreProvider) ID() string { return p.id }

func (p *KeystoreProvider) Available(ctx context.Context) bool {
	// a key file can always be created, so the keystore adapter is usable
	// whenever its directory is
	dir := filepath.Dir(p.path)
	if dir == "." {
		return true
	}
	return os.MkdirAll(dir, 0o755) == nil
}

func (p *KeystoreProvider) Connect(ctx context.Context) (string, error) {
	priv, pub, err := p.loadOrCreateKey()
	if err != nil {
		return "", models.WrapGameError(models.KindProviderUnavailable, "keystore unreadable", err)
	}
	p.priv = priv
	p.address = hex.EncodeToString(pub)
	return p.address, nil
}

func (p *KeystoreProvider) loadOrCreateKey() (ed25519.PrivateKey, ed25519.PublicKey, error) {
	if b, err := os.ReadFile(p.path); err == nil {
		var kf keystoreFile
		if json.Unmarshal(b, &kf) == nil && kf.Algo == "ed25519" {
			priv, err1 := hex.DecodeString(kf.Priv)
			pub, err2 := hex.DecodeString(kf.Pub)
			if err1 == nil && err2 == nil &&
				len(priv) == ed25519.PrivateKeySize && len(pub) == ed25519.PublicKeySize {
				return ed25519.PrivateKey(priv), ed25519.PublicKey(pub), nil
			}
		}
		// corrupt key file, regenerate
		_ = os.Remove(p.path)
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	kf := keystoreFile{
		Algo: "ed25519",
		Priv: hex.EncodeToString(priv),
		Pub:  hex.EncodeToString(pub),
	}
	if dir := filepath.Dir(p.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, err
		}
	}
	b, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return nil, nil, err
	}
	if err := os.WriteFile(p.path, b, 0o600); err != nil {
		return nil, nil, err
	}
	return priv, pub, nil
}

func (p *KeystoreProvider) Disconnect(ctx context.Context) error {
	p.priv = nil
	p.address = ""
	return nil
}

func (p *KeystoreProvider) Sign(ctx context.Context, payloads [][]byte) ([][]byte, error) {
	if p.priv == nil {
		return nil, models.NewGameError(models.KindSigningRejected, "keystore not connected")
	}
	sigs := make([][]byte, len(payloads))
	for i, payload := range payloads {
		sigs[i] = ed25519.Sign(p.priv, payload)
	}
	return sigs, nil
}

func (p *KeystoreProvider) Balance(ctx context.Context, address string) (uint64, error) {
	return p.node.AccountBalance(ctx, address)
}

// RemoteSignerProvider talks to an external wallet daemon over HTTP. The
// daemon owns the keys and may prompt its user, so connect and sign can both
// be declined.
type RemoteSignerProvider struct {
	id      string
	baseURL string
	client  *http.Client
}

func NewRemoteSignerProvider(id, baseURL string) *RemoteSignerProvider {
	return &RemoteSignerProvider{
		id:      id,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *RemoteSignerProvider) ID() string { return p.id }

func (p *RemoteSignerProvider) Available(ctx context.Context) bool {
	if p.baseURL == "" {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/status", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (p *RemoteSignerProvider) Connect(ctx context.Context) (string, error) {
	resp, err := p.post(ctx, "/connect", nil)
	if err != nil {
		return "", models.WrapGameError(models.KindProviderUnavailable, "signer daemon unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return "", models.NewGameError(models.KindUserRejected, "connection declined in wallet")
	}
	if resp.StatusCode != http.StatusOK {
		return "", models.NewGameErrorf(models.KindProviderUnavailable, "signer daemon returned %d", resp.StatusCode)
	}

	var body struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", models.WrapGameError(models.KindProviderUnavailable, "malformed connect response", err)
	}
	return body.Address, nil
}

func (p *RemoteSignerProvider) Disconnect(ctx context.Context) error {
	resp, err := p.post(ctx, "/disconnect", nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (p *RemoteSignerProvider) Sign(ctx context.Context, payloads [][]byte) ([][]byte, error) {
	encoded := make([]string, len(payloads))
	for i, b := range payloads {
		encoded[i] = base64.StdEncoding.EncodeToString(b)
	}
	reqBody, err := json.Marshal(map[string][]string{"payloads": encoded})
	if err != nil {
		return nil, err
	}

	resp, err := p.post(ctx, "/sign", reqBody)
	if err != nil {
		return nil, models.WrapGameError(models.KindSigningRejected, "signer daemon unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return nil, models.NewGameError(models.KindSigningRejected, "signature declined in wallet")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, models.NewGameErrorf(models.KindSigningRejected, "signer daemon returned %d", resp.StatusCode)
	}

	var body struct {
		Signatures []string `json:"signatures"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, models.WrapGameError(models.KindSigningRejected, "malformed sign response", err)
	}
	sigs := make([][]byte, len(body.Signatures))
	for i, s := range body.Signatures {
		sigs[i], err = base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, models.WrapGameError(models.KindSigningRejected, "malformed signature encoding", err)
		}
	}
	return sigs, nil
}

func (p *RemoteSignerProvider) Balance(ctx context.Context, address string) (uint64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/balance/"+address, nil)
	if err != nil {
		return 0, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("signer daemon returned %d for balance", resp.StatusCode)
	}
	var body struct {
		Amount uint64 `json:"amount"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, err
	}
	return body.Amount, nil
}

func (p *RemoteSignerProvider) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return p.client.Do(req)
}
