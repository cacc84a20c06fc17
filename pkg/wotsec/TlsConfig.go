// Package wotsec with TLS and DTLS configuration builders from a certificate
// folder, feeding the mqtts and coaps protocol clients and the directory
// server.
package wotsec

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"os"
	"path"

	piondtls "github.com/pion/dtls/v3"
)

// loadKeyPair loads the client or server certificate with its key and the CA
// pool from the certificate folder
func loadKeyPair(certFolder, certFile, keyFile string) (tls.Certificate, *x509.CertPool, error) {
	certPEM, err := os.ReadFile(path.Join(certFolder, certFile))
	if err != nil {
		return tls.Certificate{}, nil, err
	}
	keyPEM, err := os.ReadFile(path.Join(certFolder, keyFile))
	if err != nil {
		return tls.Certificate{}, nil, err
	}
	keyPair, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, nil, err
	}
	caCertPEM, err := os.ReadFile(path.Join(certFolder, CaCertFile))
	if err != nil {
		return tls.Certificate{}, nil, err
	}
	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caCertPEM) {
		return tls.Certificate{}, nil, errors.New("loadKeyPair: invalid CA certificate")
	}
	return keyPair, caPool, nil
}

// ClientTLSConfig builds the TLS configuration for mqtts broker connections
// from the certificate folder.
func ClientTLSConfig(certFolder string) (*tls.Config, error) {
	keyPair, caPool, err := loadKeyPair(certFolder, ClientCertFile, ClientKeyFile)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{keyPair},
		RootCAs:      caPool,
	}, nil
}

// ClientDTLSConfig builds the DTLS configuration for coaps endpoint
// connections from the certificate folder.
func ClientDTLSConfig(certFolder string) (*piondtls.Config, error) {
	keyPair, caPool, err := loadKeyPair(certFolder, ClientCertFile, ClientKeyFile)
	if err != nil {
		return nil, err
	}
	return &piondtls.Config{
		Certificates:         []tls.Certificate{keyPair},
		RootCAs:              caPool,
		ExtendedMasterSecret: piondtls.RequireExtendedMasterSecret,
	}, nil
}

// ServerTLSConfig builds the TLS configuration of a server requiring client
// certificates signed by the deployment CA.
func ServerTLSConfig(certFolder string) (*tls.Config, error) {
	keyPair, caPool, err := loadKeyPair(certFolder, ServerCertFile, ServerKeyFile)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{keyPair},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    caPool,
	}, nil
}
