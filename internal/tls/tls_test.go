package tls

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"
)

func TestSetupDisabled(t *testing.T) {
	c, err := Setup(Config{})
	if err != nil || c != nil {
		t.Fatalf("expected nil config when disabled: %v %v", c, err)
	}
}

func TestSetupNoCertSource(t *testing.T) {
	if _, err := Setup(Config{Enabled: true}); err == nil {
		t.Fatalf("expected error without cert files or dir")
	}
	if _, err := Setup(Config{Enabled: true, Dir: t.TempDir()}); err == nil {
		t.Fatalf("expected error for empty dir without auto_generate")
	}
	if _, err := Setup(Config{Enabled: true, CertFile: "/nope.crt", KeyFile: "/nope.key"}); err == nil {
		t.Fatalf("expected error for missing files")
	}
}

func TestSetupAutoGenerate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "certs")
	c, err := Setup(Config{Enabled: true, Dir: dir, AutoGenerate: true, MinVersion: "1.2"})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if c.MinVersion != tls.VersionTLS12 || c.MaxVersion != tls.VersionTLS13 {
		t.Fatalf("unexpected versions: %x %x", c.MinVersion, c.MaxVersion)
	}
	for _, f := range []string{CertFile, KeyFile, CACertFile} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Fatalf("missing %s: %v", f, err)
		}
	}
	cert, err := c.GetCertificate(&tls.ClientHelloInfo{})
	if err != nil {
		t.Fatalf("get certificate: %v", err)
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if leaf.Subject.CommonName != "localhost" || len(leaf.IPAddresses) != 1 {
		t.Fatalf("unexpected certificate: cn=%s ips=%v", leaf.Subject.CommonName, leaf.IPAddresses)
	}
	info, err := os.Stat(filepath.Join(dir, KeyFile))
	if err != nil {
		t.Fatalf("stat key: %v", err)
	}
	if info.Mode().Perm()&0o077 != 0 {
		t.Fatalf("key file too permissive: %v", info.Mode())
	}

	// second call reuses the existing pair
	before, _ := os.ReadFile(filepath.Join(dir, CertFile))
	if _, err := Setup(Config{Enabled: true, Dir: dir, AutoGenerate: true}); err != nil {
		t.Fatalf("second setup: %v", err)
	}
	after, _ := os.ReadFile(filepath.Join(dir, CertFile))
	if string(before) != string(after) {
		t.Fatalf("certificate regenerated unexpectedly")
	}
}

func TestSetupVersionOrder(t *testing.T) {
	dir := t.TempDir()
	if _, err := Setup(Config{Enabled: true, Dir: dir, AutoGenerate: true, MinVersion: "1.3", MaxVersion: "1.2"}); err == nil {
		t.Fatalf("expected error for min above max")
	}
}

func TestParseTLSVersion(t *testing.T) {
	if v, ok := parseTLSVersion("tls1.2"); !ok || v != tls.VersionTLS12 {
		t.Fatalf("tls1.2: %x %v", v, ok)
	}
	if _, ok := parseTLSVersion("1.1"); ok {
		t.Fatalf("1.1 should not be accepted")
	}
}
