// Command token mints a bearer token for the host platform's calls to the
// checkout and admin routes.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Mekazstan/paystack-forms-gateway/internal/auth"
	"github.com/joho/godotenv"
)

func main() {
	subject := flag.String("subject", "forms-host", "client name recorded in the token")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		_ = godotenv.Load("../../.env")
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET environment variable is not set")
		os.Exit(1)
	}
	if *ttl <= 0 {
		fmt.Fprintln(os.Stderr, "-ttl must be positive")
		os.Exit(2)
	}

	token, err := auth.MakeJWT(*subject, secret, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to mint token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
