// File: cmd/profile.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/bidrunner/internal/calibration"
	"github.com/xkilldash9x/bidrunner/internal/observability"
)

// newProfileCmd groups the calibration profile commands.
func newProfileCmd() *cobra.Command {
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Inspect, export and validate calibration profiles",
	}
	profileCmd.PersistentFlags().String("profile", "", "Calibration profile path. (Overrides config/env)")

	profileCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective calibration profile as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := effectiveProfile(cmd)
			if err != nil {
				return err
			}
			return calibration.Encode(cmd.OutOrStdout(), p)
		},
	})

	profileCmd.AddCommand(&cobra.Command{
		Use:   "export <file>",
		Short: "Write the effective calibration profile to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := effectiveProfile(cmd)
			if err != nil {
				return err
			}
			if err := calibration.Save(args[0], p); err != nil {
				return err
			}
			observability.GetLogger().Info("Profile exported.", zap.String("path", args[0]), zap.String("name", p.Name))
			fmt.Fprintf(cmd.OutOrStdout(), "profile %q written to %s\n", p.Name, args[0])
			return nil
		},
	})

	profileCmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Check a calibration profile file without loading it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := calibration.Read(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "profile %q is valid\n", p.Name)
			return nil
		},
	})

	return profileCmd
}

// effectiveProfile is the profile a run would use: the --profile flag, then the
// configured path, then the built-in defaults.
func effectiveProfile(cmd *cobra.Command) (calibration.Profile, error) {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return calibration.Profile{}, err
	}
	path := cfg.Calibration.ProfilePath
	if flag := cmd.Flags().Lookup("profile"); flag != nil && flag.Changed {
		path = flag.Value.String()
	}
	if path == "" {
		return calibration.Default(), nil
	}
	p, err := calibration.Read(path)
	if err != nil {
		return calibration.Profile{}, fmt.Errorf("failed to read profile: %w", err)
	}
	return p, nil
}
