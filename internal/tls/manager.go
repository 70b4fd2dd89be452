package tls

import (
	"crypto/tls"
	"fmt"
	"os"

	"golang.org/x/crypto/acme/autocert"

	"geosnap-service/internal/config"
	"geosnap-service/internal/util"
)

// Manager resolves the serving certificate: ACME-issued for real domains,
// file-based when paths are configured, self-signed as the last resort.
type Manager struct {
	serverConfig config.ServerConfig
	autoCert     *autocert.Manager
}

func NewManager(serverConfig config.ServerConfig) *Manager {
	m := &Manager{serverConfig: serverConfig}

	if serverConfig.EnableTLS && serverConfig.AutoCert {
		m.setupAutoCert()
	}

	return m
}

func (m *Manager) setupAutoCert() {
	if err := os.MkdirAll(m.serverConfig.AutoCertDir, 0700); err != nil {
		util.Warn("Could not create autocert directory", util.ErrorField(err))
		return
	}

	m.autoCert = &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(m.serverConfig.Domain),
		Cache:      autocert.DirCache(m.serverConfig.AutoCertDir),
		Email:      m.serverConfig.Email,
	}

	util.Info("AutoCert configured",
		util.String("domain", m.serverConfig.Domain),
		util.String("cache_dir", m.serverConfig.AutoCertDir))
}

// GetCertificate tries ACME, then configured files, then a generated
// self-signed certificate.
func (m *Manager) GetCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	if m.autoCert != nil {
		if cert, err := m.autoCert.GetCertificate(hello); err == nil {
			return cert, nil
		}
	}

	if m.serverConfig.CertFile != "" && m.serverConfig.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(m.serverConfig.CertFile, m.serverConfig.KeyFile)
		if err == nil {
			return &cert, nil
		}
	}

	return m.selfSignedCert()
}

func (m *Manager) selfSignedCert() (*tls.Certificate, error) {
	generator := NewDevCertGenerator(m.serverConfig.AutoCertDir)
	hosts := []string{
		m.serverConfig.Domain,
		"localhost",
		"127.0.0.1",
		"::1",
	}

	cert, err := generator.GenerateCert(hosts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate self-signed certificate: %v", err)
	}

	util.Info("Generated self-signed certificate", util.Any("hosts", hosts))
	return &cert, nil
}

// GetTLSConfig returns the server TLS configuration
func (m *Manager) GetTLSConfig() *tls.Config {
	return &tls.Config{
		GetCertificate: m.GetCertificate,
		NextProtos:     []string{"h2", "http/1.1"},
		MinVersion:     tls.VersionTLS12,
		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		},
	}
}

// GetAutocertManager exposes the ACME manager for the HTTP-01 challenge handler
func (m *Manager) GetAutocertManager() *autocert.Manager {
	return m.autoCert
}
