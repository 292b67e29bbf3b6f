// Command dtls-client dials a PSK-authenticated DTLS listener and chats
// over stdin/stdout, mirroring pion-dtls's examples/dial-psk demo against
// this module's Connector API.
package main

import (
	"bufio"
	"context"
	"crypto/x509"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"time"

	coapdtls "github.com/coapstack/dtls"
	"github.com/coapstack/dtls/pkg/crypto/ciphersuite"
)

type staticPSKStore struct{ secret []byte }

func (s *staticPSKStore) LookupPSK(identity []byte) ([]byte, error) { return s.secret, nil }
func (s *staticPSKStore) VerifyCertChain(chain []*x509.Certificate, hostname string) error {
	return nil
}
func (s *staticPSKStore) TrustedRPKs() [][]byte { return nil }
func (s *staticPSKStore) OwnCertificate() ([]*x509.Certificate, any, error) {
	return nil, nil, coapdtls.ErrPSKNotFound
}

func main() {
	raddr := flag.String("connect", "127.0.0.1:4444", "UDP address to connect to")
	flag.Parse()

	peer, err := net.ResolveUDPAddr("udp", *raddr)
	if err != nil {
		log.Fatal(err)
	}
	socket, err := coapdtls.ListenUDP(nil)
	if err != nil {
		log.Fatal(err)
	}

	store := &staticPSKStore{secret: []byte{0xAB, 0xC1, 0x23}}
	connector, err := coapdtls.NewConnector(socket,
		coapdtls.WithCredentialStore(store),
		coapdtls.WithCipherSuites(ciphersuite.TLS_PSK_WITH_AES_128_CCM_8),
	)
	if err != nil {
		log.Fatal(err)
	}

	connector.SetRawDataReceiver(func(from net.Addr, data []byte) {
		fmt.Printf("Got message: %s\n", data)
	})
	if err := connector.Start(); err != nil {
		log.Fatal(err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		_ = connector.Destroy(ctx)
	}()

	fmt.Println("Connected; type 'exit' to shutdown gracefully")
	reader := bufio.NewReader(os.Stdin)
	for {
		text, err := reader.ReadString('\n')
		if err != nil {
			log.Fatal(err)
		}
		if strings.TrimSpace(text) == "exit" {
			return
		}
		done := make(chan error, 1)
		if err := connector.Send([]byte(text), peer, func(sendErr error) { done <- sendErr }); err != nil {
			log.Printf("send: %v", err)
			continue
		}
		if err := <-done; err != nil {
			log.Printf("send: %v", err)
		}
	}
}
