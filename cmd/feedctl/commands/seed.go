package commands

import (
	"errors"

	"huddle/internal/database"
	"huddle/internal/printer"
	"huddle/internal/seed"

	"github.com/spf13/cobra"
)

func newSeedCmd() *cobra.Command {
	opts := seed.DefaultOptions()
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the database with demo data",
		Long: `Seed creates users, communities, memberships, posts and likes.

Without --file the data is random. With --file a YAML manifest describes
exactly what to create:

  users:
    - username: alice
    - username: bob
  communities:
    - name: Go Lang
      owner: alice
      members: [bob]
      posts:
        - author: bob
          content: hello
          liked_by: [alice]

Seeding is refused in production.`,
		Example: `  feedctl seed --users 50 --communities 8 --clean
  feedctl seed --file fixtures/demo.yml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.IsProduction() {
				return printer.Error("Refusing to seed", errors.New("APP_ENV is production"))
			}

			var manifest *seed.Manifest
			if file != "" {
				manifest, err = seed.LoadManifestFile(file)
				if err != nil {
					return printer.Error("Manifest is invalid", err)
				}
			}

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer database.Close(db)

			ctx := cmd.Context()
			if opts.Clean {
				printer.Step("removing existing data")
				if err := seed.Clean(ctx, db); err != nil {
					return printer.Error("Clean failed", err)
				}
			}

			var report seed.Report
			if manifest != nil {
				printer.Step("applying %s", file)
				report, err = seed.Apply(ctx, db, manifest, opts.Concurrency)
			} else {
				printer.Step("generating random data")
				opts.Clean = false
				report, err = seed.Seed(ctx, db, opts)
			}
			if err != nil {
				return printer.Error("Seeding failed", err)
			}

			printer.Success("seeded %s database", db.Dialector.Name())
			printer.Fields(map[string]any{
				"users":       report.Users,
				"communities": report.Communities,
				"memberships": report.Memberships,
				"posts":       report.Posts,
				"likes":       report.Likes,
			})
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "YAML manifest to apply instead of random data")
	f.IntVar(&opts.Users, "users", opts.Users, "Random users to create")
	f.IntVar(&opts.Communities, "communities", opts.Communities, "Random communities to create")
	f.IntVar(&opts.PostsPerCommunity, "posts", opts.PostsPerCommunity, "Posts per community")
	f.IntVar(&opts.MaxLikesPerPost, "likes", opts.MaxLikesPerPost, "Maximum likes per post")
	f.IntVar(&opts.Concurrency, "concurrency", opts.Concurrency, "Communities populated in parallel")
	f.BoolVar(&opts.Clean, "clean", false, "Delete existing data first")
	return cmd
}
