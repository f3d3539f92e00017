package commands

import (
	"huddle/internal/database"
	"huddle/internal/feed"
	"huddle/internal/likes"
	"huddle/internal/notifications"
	"huddle/internal/printer"
	"huddle/internal/repository"

	"github.com/spf13/cobra"
)

// reconcileCron only satisfies the reconciler constructor; RunOnce ignores it.
const reconcileCron = "0 * * * *"

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile-likes",
		Short: "Repair post like counters that drifted from like rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer database.Close(db)

			r, err := likes.NewReconciler(repository.NewLikeStore(db), reconcileCron)
			if err != nil {
				return printer.Error("Reconciler setup failed", err)
			}
			printer.Step("recounting likes")
			fixed, err := r.RunOnce(cmd.Context())
			if err != nil {
				return printer.Error("Reconcile failed", err)
			}
			if fixed == 0 {
				printer.Success("all counters match")
				return nil
			}
			printer.Warning("repaired %d post counters", fixed)
			return nil
		},
	}
}

func newToggleCmd() *cobra.Command {
	var userID, postID uint

	cmd := &cobra.Command{
		Use:   "toggle",
		Short: "Toggle a user's like on a post",
		Long: `Toggle flips the like of --user on --post through the same engine the API
uses. When Redis is reachable the resulting update_like event is relayed to
the post's community room on every running server.`,
		Example: `  feedctl toggle --user 3 --post 42`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer database.Close(db)

			ctx := cmd.Context()
			var opts []likes.Option
			if rdb := openRedis(ctx, cfg); rdb != nil {
				defer rdb.Close()
				notifier := notifications.NewNotifier(rdb)
				defer notifier.Close()
				router := notifications.NewRouter(notifications.NewRegistry(nil), notifier)
				opts = append(opts, likes.WithListener(feed.NewDispatcher(router)))
			}

			engine := likes.NewEngine(repository.NewLikeStore(db), opts...)
			res, err := engine.ToggleLike(ctx, postID, userID)
			if err != nil {
				return printer.Error("Toggle failed", err)
			}

			verb := "unliked"
			if res.Liked {
				verb = "liked"
			}
			printer.Success("user %d %s post %d", userID, verb, postID)
			printer.Fields(map[string]any{
				"community": res.CommunityID,
				"likes":     res.NewCount,
			})
			return nil
		},
	}

	cmd.Flags().UintVar(&userID, "user", 0, "User id")
	cmd.Flags().UintVar(&postID, "post", 0, "Post id")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("post")
	return cmd
}
