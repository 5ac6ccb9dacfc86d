package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/hosted-tools/mcp-gateway/pkg/tokenauth"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: tokenctl <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  mint     mint a tenant token (reads MCPGW_AUTH_SECRET)")
	fmt.Fprintln(os.Stderr, "  inspect  print a token's claims without verifying it")
	os.Exit(1)
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
	}
	switch os.Args[1] {
	case "mint":
		mint(os.Args[2:])
	case "inspect":
		inspect(os.Args[2:])
	default:
		usage()
	}
}

func mint(args []string) {
	fs := flag.NewFlagSet("mint", flag.ExitOnError)
	integration := fs.String("integration", "", "integration name the token is valid for")
	tenant := fs.String("tenant", "", "tenant id")
	credential := fs.String("credential", "", "upstream credential to embed")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	_ = fs.Parse(args)

	secret := os.Getenv("MCPGW_AUTH_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "tokenctl: MCPGW_AUTH_SECRET is not set")
		os.Exit(1)
	}
	auth, err := tokenauth.New(secret)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tokenctl: %v\n", err)
		os.Exit(1)
	}
	token, err := auth.Mint(tokenauth.TenantContext{
		Integration:        *integration,
		TenantID:           *tenant,
		UpstreamCredential: *credential,
	}, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tokenctl: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func inspect(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: tokenctl inspect <token>")
		os.Exit(1)
	}

	claims, err := tokenauth.Inspect(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "tokenctl: %v\n", err)
		os.Exit(1)
	}
	out, err := json.MarshalIndent(claims, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "tokenctl: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
