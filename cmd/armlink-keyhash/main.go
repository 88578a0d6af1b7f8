// armlink-keyhash prints the Argon2id hash of an API client key for use in
// security.clients[].key_hash.
//
//	echo -n "$KEY" | armlink-keyhash
//	armlink-keyhash -generate
package main

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nerrad567/armlink/internal/auth"
)

// generatedKeyBytes is the entropy of keys created with -generate.
const generatedKeyBytes = 24

func main() {
	generate := flag.Bool("generate", false, "generate a random key and print it with its hash")
	flag.Parse()

	if err := run(os.Stdin, os.Stdout, *generate); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(in io.Reader, out io.Writer, generate bool) error {
	var key string
	if generate {
		b := make([]byte, generatedKeyBytes)
		if _, err := rand.Read(b); err != nil {
			return fmt.Errorf("generating key: %w", err)
		}
		key = hex.EncodeToString(b)
	} else {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("reading key: %w", err)
		}
		key = strings.TrimRight(line, "\r\n")
	}
	if key == "" {
		return fmt.Errorf("empty key")
	}

	hash, err := auth.HashKey(key)
	if err != nil {
		return fmt.Errorf("hashing key: %w", err)
	}

	if generate {
		fmt.Fprintf(out, "key:      %s\n", key)
		fmt.Fprintf(out, "key_hash: %s\n", hash)
		return nil
	}
	fmt.Fprintln(out, hash)
	return nil
}
