// Command dtls-server runs a PSK-authenticated DTLS echo listener,
// mirroring pion-dtls's examples/listen-psk demo against this module's
// Connector API.
package main

import (
	"context"
	"crypto/x509"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"time"

	coapdtls "github.com/coapstack/dtls"
	"github.com/coapstack/dtls/pkg/crypto/ciphersuite"
	"github.com/coapstack/dtls/pkg/protocol/alert"
)

// staticPSKStore answers every PSK lookup with the same secret, which is
// enough for a demo; a real deployment would look identities up in a
// secrets store or database.
type staticPSKStore struct {
	identity []byte
	secret   []byte
}

func (s *staticPSKStore) LookupPSK(identity []byte) ([]byte, error) {
	return s.secret, nil
}

func (s *staticPSKStore) VerifyCertChain(chain []*x509.Certificate, hostname string) error {
	return nil
}

func (s *staticPSKStore) TrustedRPKs() [][]byte { return nil }

func (s *staticPSKStore) OwnCertificate() ([]*x509.Certificate, any, error) {
	return nil, nil, coapdtls.ErrPSKNotFound
}

func main() {
	laddr := flag.String("listen", "127.0.0.1:4444", "UDP address to listen on")
	identityHint := flag.String("identity-hint", "coapstack-dtls", "PSK identity hint advertised to clients")
	flag.Parse()

	udpAddr, err := net.ResolveUDPAddr("udp", *laddr)
	if err != nil {
		log.Fatal(err)
	}
	socket, err := coapdtls.ListenUDP(udpAddr)
	if err != nil {
		log.Fatal(err)
	}

	store := &staticPSKStore{identity: []byte(*identityHint), secret: []byte{0xAB, 0xC1, 0x23}}
	connector, err := coapdtls.NewConnector(socket,
		coapdtls.WithCredentialStore(store),
		coapdtls.WithCipherSuites(ciphersuite.TLS_PSK_WITH_AES_128_CCM_8),
		coapdtls.WithPSKIdentityHint(store.identity),
	)
	if err != nil {
		log.Fatal(err)
	}

	connector.SetRawDataReceiver(func(peer net.Addr, data []byte) {
		fmt.Printf("%s: %s\n", peer, data)
		_ = connector.Send(data, peer, nil) // echo back
	})
	connector.SetAlertHandler(func(peer net.Addr, a alert.Alert) {
		log.Printf("alert from %s: %s", peer, a.Error())
	})
	connector.SetOnConnect(func(peer net.Addr) {
		log.Printf("starting handshake with %s", peer)
	})

	if err := connector.Start(); err != nil {
		log.Fatal(err)
	}
	log.Printf("listening on %s", socket.LocalAddr())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := connector.Destroy(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
