package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"catalog-admin/internal/authgate"
	"catalog-admin/pkg/sdk"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		return
	}
	_ = godotenv.Load()

	base := os.Getenv("CATALOG_URL")
	if base == "" {
		base = "http://127.0.0.1:8081"
	}
	zl := zap.NewNop()
	if os.Getenv("CATALOGCTL_DEBUG") != "" {
		zl, _ = zap.NewDevelopment()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	slot, closeSlot, err := openSlot(ctx)
	if err != nil {
		log.Fatalf("token slot: %v", err)
	}
	defer closeSlot()

	client := sdk.New(base, nil)
	sess := authgate.NewClientSession(client, slot, zl)
	if err := sess.Start(ctx); err != nil {
		log.Printf("stored token unreadable, signing out: %v", err)
		_ = slot.Clear(ctx)
		sess.ClearError()
	}
	authed := client.WithToken(sess.Token())

	command := strings.ToLower(os.Args[1])
	args := os.Args[2:]

	switch command {
	case "signin":
		if len(args) < 2 {
			log.Fatal("Usage: catalogctl signin <email> <password>")
		}
		if err := sess.SignIn(ctx, authgate.Credentials{Email: args[0], Password: args[1]}); err != nil {
			log.Fatal(err)
		}
		printJSON(sess.State().User)

	case "signup":
		if len(args) < 3 {
			log.Fatal("Usage: catalogctl signup <name> <email> <password>")
		}
		in := authgate.SignUpInput{Name: args[0], Email: args[1], Password: args[2], ConfirmPassword: args[2]}
		if err := sess.SignUp(ctx, in); err != nil {
			log.Fatal(err)
		}
		printJSON(sess.State().User)

	case "signout":
		if err := sess.SignOut(ctx); err != nil {
			log.Fatal(err)
		}
		fmt.Println("OK")

	case "whoami":
		requireAuth(sess)
		u, err := authed.Me(ctx)
		if err != nil {
			log.Fatal(err)
		}
		printJSON(u)

	case "forgot":
		if len(args) < 1 {
			log.Fatal("Usage: catalogctl forgot <email>")
		}
		if err := sess.ForgotPassword(ctx, args[0]); err != nil {
			log.Fatal(err)
		}
		fmt.Println("If the account exists, a reset link has been sent.")

	case "reset":
		if len(args) < 2 {
			log.Fatal("Usage: catalogctl reset <token> <new-password>")
		}
		in := authgate.ResetPasswordInput{Token: args[0], Password: args[1], ConfirmPassword: args[1]}
		if err := sess.ResetPassword(ctx, in); err != nil {
			log.Fatal(err)
		}
		fmt.Println("OK")

	case "categories", "apps":
		requireAuth(sess)
		o := sdk.ListOptions{}
		if len(args) > 0 {
			o.Query = args[0]
		}
		var (
			out any
			err error
		)
		if command == "categories" {
			out, err = authed.ListCategories(ctx, o)
		} else {
			out, err = authed.ListApps(ctx, o)
		}
		if err != nil {
			log.Fatal(err)
		}
		printJSON(out)

	case "import":
		requireAuth(sess)
		if len(args) < 1 {
			log.Fatal("Usage: catalogctl import <file.json> [--commit]")
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			log.Fatal(err)
		}
		commit := len(args) > 1 && args[1] == "--commit"
		res, err := authed.Import(ctx, data, !commit)
		if err != nil {
			log.Fatal(err)
		}
		printJSON(res)

	case "stats":
		requireAuth(sess)
		raw, err := authed.Dashboard(ctx)
		if err != nil {
			log.Fatal(err)
		}
		printJSON(raw)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
	}
}

func requireAuth(s *authgate.ClientSession) {
	if s.State().Phase != authgate.PhaseAuthenticated {
		log.Fatal("not signed in; run: catalogctl signin <email> <password>")
	}
}

// openSlot keeps the token in Redis when CATALOGCTL_REDIS is set and in a file otherwise.
// CATALOGCTL_REDIS takes a host:port or a redis:// URL.
func openSlot(ctx context.Context) (authgate.TokenSlot, func(), error) {
	addr := os.Getenv("CATALOGCTL_REDIS")
	if addr == "" {
		slot, err := authgate.NewFileSlot(tokenPath())
		return slot, func() {}, err
	}
	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, nil, err
		}
		opts = parsed
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis %s: %w", opts.Addr, err)
	}
	return authgate.NewRedisSlot(rdb, os.Getenv("CATALOGCTL_REDIS_KEY")), func() { _ = rdb.Close() }, nil
}

func tokenPath() string {
	if p := os.Getenv("CATALOGCTL_TOKEN"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "catalogctl", "token")
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(b))
}

func printUsage() {
	fmt.Println("catalogctl - command line client for the catalog admin API")
	fmt.Println("\nUsage:")
	fmt.Println("  catalogctl signin <email> <password>")
	fmt.Println("  catalogctl signup <name> <email> <password>")
	fmt.Println("  catalogctl signout")
	fmt.Println("  catalogctl whoami")
	fmt.Println("  catalogctl forgot <email>")
	fmt.Println("  catalogctl reset <token> <new-password>")
	fmt.Println("  catalogctl categories [query]")
	fmt.Println("  catalogctl apps [query]")
	fmt.Println("  catalogctl import <file.json> [--commit]")
	fmt.Println("  catalogctl stats")
	fmt.Println("\nEnvironment Variables:")
	fmt.Println("  CATALOG_URL        Base URL of the admin server (default: http://127.0.0.1:8081)")
	fmt.Println("  CATALOGCTL_TOKEN   Token file (default: <user config dir>/catalogctl/token)")
	fmt.Println("  CATALOGCTL_REDIS   Keep the token in Redis instead (host:port or redis:// URL)")
	fmt.Println("  CATALOGCTL_REDIS_KEY  Redis key for the token (default: catalogctl:token)")
	fmt.Println("  CATALOGCTL_DEBUG   Set to log session transitions")
}
