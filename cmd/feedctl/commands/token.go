package commands

import (
	"fmt"
	"strconv"
	"time"

	"huddle/internal/auth"
	"huddle/internal/database"
	"huddle/internal/printer"
	"huddle/internal/repository"

	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var (
		ttl        time.Duration
		skipLookup bool
	)

	cmd := &cobra.Command{
		Use:   "token USER_ID",
		Short: "Sign a session token for a user",
		Long: `Token signs a session JWT for USER_ID with the configured secret, issuer
and audience, and prints it alone on stdout. It stands in for the OAuth
login during development.`,
		Example: `  curl -H "Authorization: Bearer $(feedctl token 1)" localhost:8375/api/user/me`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil || id == 0 {
				return printer.Error("Invalid user id", fmt.Errorf("%q is not a positive integer", args[0]))
			}
			userID := uint(id)

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = time.Duration(cfg.TokenTTLHours) * time.Hour
			}

			if !skipLookup {
				db, err := openDB(cfg)
				if err != nil {
					return err
				}
				defer database.Close(db)
				if _, err := repository.NewUserRepository(db).GetByID(cmd.Context(), userID); err != nil {
					return printer.Error("User lookup failed", err, "run feedctl seed, or pass --skip-lookup")
				}
			}

			issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, ttl)
			if err != nil {
				return printer.Error("Cannot sign tokens", err)
			}
			token, err := issuer.Sign(userID)
			if err != nil {
				return printer.Error("Signing failed", err)
			}
			printer.Info("%s", token)
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to TOKEN_TTL_HOURS)")
	cmd.Flags().BoolVar(&skipLookup, "skip-lookup", false, "Do not check that the user exists")
	return cmd
}
