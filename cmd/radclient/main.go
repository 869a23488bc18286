// Command radclient sends one RADIUS request built from stdin and prints the reply.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/vitalvas/radiusd/pkg/client"
	"github.com/vitalvas/radiusd/pkg/dictionaries"
	"github.com/vitalvas/radiusd/pkg/dictionary"
	"github.com/vitalvas/radiusd/pkg/log"
	"github.com/vitalvas/radiusd/pkg/packet"
)

func main() {
	server := flag.String("server", "", "RADIUS server address (host[:port], default port 1812 for auth and 1813 for acct)")
	action := flag.String("action", "auth", "Action: auth or acct")
	secret := flag.String("secret", "testing123", "Shared secret")
	timeout := flag.Duration("timeout", client.DefaultTimeout, "Wait per attempt")
	retries := flag.Int("retries", 2, "Resends after the first attempt")
	dictPath := flag.String("dictionary", "", "Dictionary file (default: built-in)")
	noMsgAuth := flag.Bool("no-message-authenticator", false, "Do not add Message-Authenticator to Access-Request")
	debug := flag.Bool("debug", false, "Log retries and ignored replies")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -server <host[:port]> [-action <auth|acct>] [-secret <secret>]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nAttributes are read from stdin, one per line in format:\n")
		fmt.Fprintf(os.Stderr, "  Attribute-Name = value\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  echo 'User-Name = ec:30:b3:6d:24:6a' | %s -server 127.0.0.1\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  printf 'Acct-Status-Type = 1\\nAcct-Session-Id = s1\\n' | %s -server 127.0.0.1 -action acct\n", os.Args[0])
	}

	flag.Parse()

	if *server == "" {
		fmt.Fprintf(os.Stderr, "Error: -server is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	var code packet.Code
	switch *action {
	case "auth":
		code = packet.CodeAccessRequest
	case "acct":
		code = packet.CodeAccountingRequest
	default:
		fmt.Fprintf(os.Stderr, "Error: Invalid action %q (must be 'auth' or 'acct')\n\n", *action)
		flag.Usage()
		os.Exit(1)
	}

	level := "warn"
	if *debug {
		level = "debug"
	}
	logger := log.New(log.Options{Level: level, Output: os.Stderr})

	dict, err := loadDictionary(*dictPath, logger)
	if err != nil {
		logger.Errorf("Failed to load dictionary: %v", err)
		os.Exit(1)
	}

	attrs, err := parseAttributes(bufio.NewScanner(os.Stdin), dict)
	if err != nil {
		logger.Errorf("Failed to parse attributes: %v", err)
		os.Exit(1)
	}

	useMsgAuth := !*noMsgAuth
	cl, err := client.New(client.Config{
		Addr:                    withDefaultPort(*server, code),
		Secret:                  []byte(*secret),
		Timeout:                 *timeout,
		Retries:                 *retries,
		UseMessageAuthenticator: &useMsgAuth,
		Logger:                  logger,
	})
	if err != nil {
		logger.Errorf("Failed to create client: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*retries+1)*(*timeout)+time.Second)
	defer cancel()

	id, err := client.NewIdentifier()
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}

	req := packet.New(code, id)
	for _, attr := range attrs {
		req.AddAttribute(attr)
	}

	resp, err := cl.Exchange(ctx, req)
	if err != nil {
		logger.Errorf("Request failed: %v", err)
		os.Exit(1)
	}

	fmt.Printf("Received %s id=%d\n", resp.Code, resp.Identifier)
	for _, view := range resp.Describe(dict) {
		fmt.Printf("\t%s = %s\n", view.Name, view.Value)
	}

	if resp.Code == packet.CodeAccessReject {
		os.Exit(1)
	}
}

func loadDictionary(path string, logger log.Logger) (*dictionary.Dictionary, error) {
	if path == "" {
		return dictionaries.NewDefault(dictionary.WithLogger(logger))
	}
	return dictionary.LoadFile(path, dictionary.WithLogger(logger))
}

func withDefaultPort(addr string, code packet.Code) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	if code == packet.CodeAccountingRequest {
		return net.JoinHostPort(addr, "1813")
	}
	return net.JoinHostPort(addr, "1812")
}
