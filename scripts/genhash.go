// genhash prints bcrypt hashes for seeding users directly in the database.
//
//	go run ./scripts/genhash.go 'first-password' 'second-password'
package main

import (
	"fmt"
	"os"

	"launchpad-backend/pkg/security"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: genhash <password> [password...]")
		os.Exit(2)
	}

	for _, pass := range os.Args[1:] {
		hash, err := security.HashPassword(pass)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			continue
		}
		fmt.Printf("Hash: %s\n\n", hash)
	}
}
