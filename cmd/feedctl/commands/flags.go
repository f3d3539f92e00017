package commands

import (
	"huddle/internal/featureflags"
	"huddle/internal/printer"

	"github.com/spf13/cobra"
)

func newFlagsCmd() *cobra.Command {
	var userID uint

	cmd := &cobra.Command{
		Use:   "flags",
		Short: "Show configured feature flags",
		Long: `Flags prints the FEATURE_FLAGS rollout values. With --user it also prints
whether each flag is on for that user.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			m := featureflags.NewManager(cfg.FeatureFlags)

			raw := m.Raw()
			if len(raw) == 0 {
				printer.Warning("no feature flags configured")
				return nil
			}
			fields := make(map[string]any, len(raw))
			for k, v := range raw {
				fields[k] = v
			}
			printer.Info("configured:")
			printer.Fields(fields)

			if userID != 0 {
				fields = make(map[string]any, len(raw))
				for k, on := range m.Snapshot(userID) {
					fields[k] = on
				}
				printer.Info("user %d:", userID)
				printer.Fields(fields)
			}
			return nil
		},
	}
	cmd.Flags().UintVar(&userID, "user", 0, "Evaluate flags for this user id")
	return cmd
}
