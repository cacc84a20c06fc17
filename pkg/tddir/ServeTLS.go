// Package tddir with TLS serving of the directory API
package tddir

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/thingzone/wotlib-go/pkg/wotsec"
)

// StartTLS serves the directory API over TLS, requiring client certificates
// signed by the deployment CA.
//  listenAddress listening address, eg ":8443"
//  certFolder folder with the CA and server certificate PEM files
// Returns the server. Shut it down with Close or Shutdown when done.
func (server *DirectoryServer) StartTLS(listenAddress string, certFolder string) (*http.Server, error) {
	tlsConfig, err := wotsec.ServerTLSConfig(certFolder)
	if err != nil {
		logrus.Errorf("DirectoryServer.StartTLS: loading certificates from %s: %s", certFolder, err)
		return nil, err
	}
	httpServer := &http.Server{
		Addr:      listenAddress,
		Handler:   server.Router(),
		TLSConfig: tlsConfig,
	}
	go func() {
		serveErr := httpServer.ListenAndServeTLS("", "")
		if serveErr != nil && serveErr != http.ErrServerClosed {
			logrus.Errorf("DirectoryServer.StartTLS: %s", serveErr)
		}
	}()
	return httpServer, nil
}
