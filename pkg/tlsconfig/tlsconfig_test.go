package tlsconfig

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeSelfSigned writes a self-signed CA certificate and key to dir
func writeSelfSigned(t *testing.T, dir string) (certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "budwatch-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		DNSNames:              []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}

	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")
	if err := os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600); err != nil {
		t.Fatal(err)
	}
	return certFile, keyFile
}

func TestLoadServerAndClientTLS(t *testing.T) {
	cert, key := writeSelfSigned(t, t.TempDir())

	server, err := LoadServerTLS(cert, key, cert)
	if err != nil {
		t.Fatalf("LoadServerTLS failed: %v", err)
	}
	if server.ClientAuth != tls.RequireAndVerifyClientCert {
		t.Errorf("expected client certs to be required, got %v", server.ClientAuth)
	}
	if len(server.Certificates) != 1 || server.ClientCAs == nil {
		t.Error("expected certificate and client CA pool")
	}

	client, err := LoadClientTLS(cert, key, cert)
	if err != nil {
		t.Fatalf("LoadClientTLS failed: %v", err)
	}
	if client.RootCAs == nil || len(client.Certificates) != 1 {
		t.Error("expected client certificate and root pool")
	}
}

func TestLoadRootCAs(t *testing.T) {
	cert, _ := writeSelfSigned(t, t.TempDir())

	cfg, err := LoadRootCAs(cert)
	if err != nil {
		t.Fatalf("LoadRootCAs failed: %v", err)
	}
	if cfg.RootCAs == nil {
		t.Fatal("expected root pool")
	}
	if len(cfg.Certificates) != 0 {
		t.Error("CA-only config must not present a client certificate")
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.pem")
	if err := os.WriteFile(garbage, []byte("not a certificate"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		load func() error
	}{
		{"missing CA file", func() error { _, err := LoadCAPool(filepath.Join(dir, "nope.pem")); return err }},
		{"unparsable CA", func() error { _, err := LoadCAPool(garbage); return err }},
		{"unparsable root CA", func() error { _, err := LoadRootCAs(garbage); return err }},
		{"missing key pair", func() error { _, err := LoadServerTLS(garbage, garbage, garbage); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.load(); err == nil {
				t.Error("expected error")
			}
		})
	}
}
