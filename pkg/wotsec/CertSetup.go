// Package wotsec with creation of a self signed certificate chain using ECDSA
// signing, for securing the coaps and mqtts schemes and the directory server.
package wotsec

import (
	"bytes"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"net"
	"os"
	"path"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const caValidityDuration = time.Hour * 24 * 365 * 10
const certValidityDuration = time.Hour * 24 * 365

// Standard certificate and key filenames, all stored in PEM format
const (
	CaCertFile     = "caCert.pem" // CA that signed the server and client certificates
	CaKeyFile      = "caKey.pem"
	ServerCertFile = "serverCert.pem"
	ServerKeyFile  = "serverKey.pem"
	ClientCertFile = "clientCert.pem"
	ClientKeyFile  = "clientKey.pem"
)

// CreateWoTCA creates a root CA certificate and private key for signing the
// server and client certificates of a WoT deployment.
func CreateWoTCA() (certPEM []byte, keyPEM []byte, err error) {
	rootTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().Unix()),
		Subject: pkix.Name{
			Organization: []string{"WoT"},
			CommonName:   "WoT CA",
		},
		NotBefore:   time.Now().Add(-10 * time.Second),
		NotAfter:    time.Now().Add(caValidityDuration),
		KeyUsage:    x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},

		// this is the only CA, don't allow intermediates
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLenZero:        true,
	}
	privKey := CreateECDSAKeys()
	keyPEM, err = PrivateKeyToPEM(privKey)
	if err != nil {
		return nil, nil, err
	}
	caCertDer, err := x509.CreateCertificate(
		rand.Reader, rootTemplate, rootTemplate, &privKey.PublicKey, privKey)
	if err != nil {
		return nil, nil, err
	}
	return CertDerToPEM(caCertDer), keyPEM, nil
}

// CreateServerCert creates a server certificate signed by the CA.
//  hosts contains one or more comma separated DNS names or IP addresses.
//  The loopback addresses are always included.
//  serverPubKeyPEM with the server's public key
//  caCertPEM and caKeyPEM of the signing CA
// Returns the signed certificate in PEM format
func CreateServerCert(hosts string, serverPubKeyPEM, caCertPEM, caKeyPEM []byte) ([]byte, error) {
	caPrivKey, err := PrivateKeyFromPEM(caKeyPEM)
	if err != nil {
		return nil, err
	}
	caCert, err := CertFromPEM(caCertPEM)
	if err != nil {
		return nil, err
	}
	serverPubKey, err := PublicKeyFromPEM(serverPubKeyPEM)
	if err != nil {
		return nil, err
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().Unix()),
		Subject: pkix.Name{
			Organization: []string{"WoT"},
			CommonName:   "WoT Server",
		},
		NotBefore:   time.Now(),
		NotAfter:    time.Now().Add(certValidityDuration),
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses: []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		DNSNames:    []string{"localhost"},
	}
	for _, host := range strings.Split(hosts, ",") {
		if ip := net.ParseIP(host); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else if host != "" {
			template.DNSNames = append(template.DNSNames, host)
		}
	}
	certDer, err := x509.CreateCertificate(rand.Reader, template, caCert, serverPubKey, caPrivKey)
	if err != nil {
		return nil, err
	}
	return CertDerToPEM(certDer), nil
}

// CreateClientCert creates a client certificate for mutual authentication,
// signed by the CA.
//  clientID used as the certificate CommonName, eg the thing or consumer ID
//  clientPubKeyPEM with the client's public key
//  caCertPEM and caKeyPEM of the signing CA
// Returns the signed certificate in PEM format
func CreateClientCert(clientID string, clientPubKeyPEM, caCertPEM, caKeyPEM []byte) ([]byte, error) {
	caPrivKey, err := PrivateKeyFromPEM(caKeyPEM)
	if err != nil {
		return nil, err
	}
	caCert, err := CertFromPEM(caCertPEM)
	if err != nil {
		return nil, err
	}
	clientPubKey, err := PublicKeyFromPEM(clientPubKeyPEM)
	if err != nil {
		return nil, err
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().Unix()),
		Subject: pkix.Name{
			Organization: []string{"WoT"},
			CommonName:   clientID,
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(certValidityDuration),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}
	certDer, err := x509.CreateCertificate(rand.Reader, template, caCert, clientPubKey, caPrivKey)
	if err != nil {
		return nil, err
	}
	return CertDerToPEM(certDer), nil
}

// CreateCertificateBundle creates the CA, server and client certificates in
// the given folder. Existing certificates are kept.
//  hostname with the DNS names or IP addresses of the server certificate
//  certFolder to write the PEM files into
func CreateCertificateBundle(hostname string, certFolder string) error {
	caCertPath := path.Join(certFolder, CaCertFile)
	caKeyPath := path.Join(certFolder, CaKeyFile)

	caCertPEM, _ := os.ReadFile(caCertPath)
	caKeyPEM, _ := os.ReadFile(caKeyPath)
	if caCertPEM == nil || caKeyPEM == nil {
		var err error
		caCertPEM, caKeyPEM, err = CreateWoTCA()
		if err != nil {
			return err
		}
		if err = os.WriteFile(caKeyPath, caKeyPEM, 0600); err != nil {
			return err
		}
		if err = os.WriteFile(caCertPath, caCertPEM, 0644); err != nil {
			return err
		}
		logrus.Infof("CreateCertificateBundle: created CA in %s", certFolder)
	}

	serverCertPath := path.Join(certFolder, ServerCertFile)
	serverKeyPath := path.Join(certFolder, ServerKeyFile)
	serverCertPEM, _ := os.ReadFile(serverCertPath)
	serverKeyPEM, _ := os.ReadFile(serverKeyPath)
	if serverCertPEM == nil || serverKeyPEM == nil {
		serverKey := CreateECDSAKeys()
		serverKeyPEM, err := PrivateKeyToPEM(serverKey)
		if err != nil {
			return err
		}
		serverPubPEM, err := PublicKeyToPEM(&serverKey.PublicKey)
		if err != nil {
			return err
		}
		serverCertPEM, err = CreateServerCert(hostname, serverPubPEM, caCertPEM, caKeyPEM)
		if err != nil {
			return err
		}
		if err = os.WriteFile(serverKeyPath, serverKeyPEM, 0600); err != nil {
			return err
		}
		if err = os.WriteFile(serverCertPath, serverCertPEM, 0644); err != nil {
			return err
		}
	}

	clientCertPath := path.Join(certFolder, ClientCertFile)
	clientKeyPath := path.Join(certFolder, ClientKeyFile)
	clientCertPEM, _ := os.ReadFile(clientCertPath)
	clientKeyPEM, _ := os.ReadFile(clientKeyPath)
	if clientCertPEM == nil || clientKeyPEM == nil {
		clientKey := CreateECDSAKeys()
		clientKeyPEM, err := PrivateKeyToPEM(clientKey)
		if err != nil {
			return err
		}
		clientPubPEM, err := PublicKeyToPEM(&clientKey.PublicKey)
		if err != nil {
			return err
		}
		clientCertPEM, err = CreateClientCert("wot-client", clientPubPEM, caCertPEM, caKeyPEM)
		if err != nil {
			return err
		}
		if err = os.WriteFile(clientKeyPath, clientKeyPEM, 0600); err != nil {
			return err
		}
		if err = os.WriteFile(clientCertPath, clientCertPEM, 0644); err != nil {
			return err
		}
	}
	return nil
}

// CertDerToPEM converts a DER encoded certificate to PEM format
func CertDerToPEM(derBytes []byte) []byte {
	buffer := new(bytes.Buffer)
	pem.Encode(buffer, &pem.Block{Type: "CERTIFICATE", Bytes: derBytes})
	return buffer.Bytes()
}

// CertFromPEM converts a PEM encoded certificate to an x509 instance
func CertFromPEM(certPEM []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, errors.New("CertFromPEM: pem decode failed")
	}
	return x509.ParseCertificate(block.Bytes)
}
