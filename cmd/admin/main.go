// Package main provides admin management utilities for ESPA.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/config"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/database"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/repository"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/service"
)

const usageText = `Usage:
  go run ./cmd/admin promote <user_id>       - Promote user to admin
  go run ./cmd/admin demote <user_id>        - Demote user from admin
  go run ./cmd/admin list-admins             - List all admins
  go run ./cmd/admin soft-delete <user_id>   - Disable an account
  go run ./cmd/admin restore <user_id>       - Re-enable a soft-deleted account
  go run ./cmd/admin cleanup-otps [--days N] [--used] [--expired] [--dry-run]
`

var errUsage = errors.New("invalid usage")

// commands bundles what the subcommands operate on.
type commands struct {
	users         *service.UserService
	otps          *service.OTPService
	retentionDays int
	out           io.Writer
}

// AdminSetup provides a utility to manage admins, accounts and OTP retention
func main() {
	if len(os.Args) < 2 {
		fmt.Print(usageText)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	cmds := &commands{
		users:         service.NewUserService(repository.NewUserRepository(db)),
		otps:          service.NewOTPService(repository.NewOTPRepository(db), cfg.OTPExpiry),
		retentionDays: cfg.OTPRetentionDays,
		out:           os.Stdout,
	}

	if err := cmds.run(context.Background(), os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Print(usageText)
		} else {
			fmt.Printf("❌ %v\n", err)
		}
		os.Exit(1)
	}
}

func (c *commands) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	switch args[0] {
	case "promote":
		return c.withUserID(args, func(id uint) error { return c.setAdmin(ctx, id, true) })
	case "demote":
		return c.withUserID(args, func(id uint) error { return c.setAdmin(ctx, id, false) })
	case "soft-delete":
		return c.withUserID(args, func(id uint) error { return c.setDeleted(ctx, id, true) })
	case "restore":
		return c.withUserID(args, func(id uint) error { return c.setDeleted(ctx, id, false) })
	case "list-admins":
		return c.listAdmins(ctx)
	case "cleanup-otps":
		return c.cleanupOTPs(ctx, args[1:])
	default:
		fmt.Fprintf(c.out, "Unknown command: %s\n", args[0])
		return errUsage
	}
}

func (c *commands) withUserID(args []string, fn func(uint) error) error {
	if len(args) < 2 {
		return errUsage
	}
	id, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid user ID %q", args[1])
	}
	return fn(uint(id))
}

func (c *commands) setAdmin(ctx context.Context, id uint, isAdmin bool) error {
	user, err := c.users.GetUserByID(ctx, id)
	if err != nil {
		return describe(err, id)
	}
	if user.IsAdmin == isAdmin {
		state := "already an admin"
		if !isAdmin {
			state = "not an admin"
		}
		fmt.Fprintf(c.out, "User %s (ID: %d) is %s\n", user.Username, user.ID, state)
		return nil
	}

	user, err = c.users.SetAdmin(ctx, id, isAdmin)
	if err != nil {
		return describe(err, id)
	}
	verb := "promoted %s (ID: %d) to admin"
	if !isAdmin {
		verb = "demoted %s (ID: %d) from admin"
	}
	fmt.Fprintf(c.out, "✅ Successfully "+verb+"\n", user.Username, user.ID)
	return nil
}

func (c *commands) setDeleted(ctx context.Context, id uint, deleted bool) error {
	user, err := c.users.SetDeleted(ctx, id, deleted)
	if err != nil {
		return describe(err, id)
	}
	verb := "restored"
	if deleted {
		verb = "soft-deleted"
	}
	fmt.Fprintf(c.out, "✅ Successfully %s %s (ID: %d)\n", verb, user.Username, user.ID)
	return nil
}

func (c *commands) listAdmins(ctx context.Context) error {
	admins, err := c.users.ListAdmins(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch admins: %w", err)
	}

	if len(admins) == 0 {
		fmt.Fprintln(c.out, "No admins found in the system")
		return nil
	}

	fmt.Fprintln(c.out, "\n📋 Current Admins:")
	fmt.Fprintln(c.out, "─────────────────────────────────────")
	for _, admin := range admins {
		fmt.Fprintf(c.out, "ID: %d | Username: %s | Email: %s\n", admin.ID, admin.Username, admin.Email)
	}
	fmt.Fprintln(c.out, "─────────────────────────────────────")
	return nil
}

func (c *commands) cleanupOTPs(ctx context.Context, args []string) error {
	defaultDays := c.retentionDays
	if defaultDays <= 0 {
		defaultDays = 7
	}

	fs := flag.NewFlagSet("cleanup-otps", flag.ContinueOnError)
	fs.SetOutput(c.out)
	days := fs.Int("days", defaultDays, "Delete codes created more than N days ago")
	usedOnly := fs.Bool("used", false, "Only delete codes that were used")
	expiredOnly := fs.Bool("expired", false, "Only delete codes that have expired")
	dryRun := fs.Bool("dry-run", false, "Count matching codes without deleting them")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	n, err := c.otps.Purge(ctx, service.PurgeOptions{
		OlderThan:   time.Duration(*days) * 24 * time.Hour,
		UsedOnly:    *usedOnly,
		ExpiredOnly: *expiredOnly,
		DryRun:      *dryRun,
	})
	if err != nil {
		return err
	}

	if *dryRun {
		fmt.Fprintf(c.out, "Would delete %d OTP codes older than %d days\n", n, *days)
	} else {
		fmt.Fprintf(c.out, "✅ Deleted %d OTP codes older than %d days\n", n, *days)
	}
	return nil
}

func describe(err error, id uint) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) && (appErr.Code == models.CodeNotFound || appErr.Code == models.CodeUserNotFound) {
		return fmt.Errorf("user with ID %d not found", id)
	}
	return err
}
