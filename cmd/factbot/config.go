package main

import (
	"fmt"
	"strings"

	"github.com/sandevgo/factbot/internal/config"
	"github.com/sandevgo/factbot/pkg/env"
	"github.com/spf13/cobra"
)

var showSecrets bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration in .env form",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
			return err
		}

		var out strings.Builder
		for _, c := range []any{
			config.NewAppConfig(ctx),
			config.NewLLMConfig(ctx),
			config.NewSearchConfig(ctx),
		} {
			s, err := env.MarshalEnv(c)
			if err != nil {
				return err
			}
			out.WriteString(s)
		}

		text := out.String()
		if !showSecrets {
			text = maskSecrets(text)
		}
		fmt.Print(text)
		return nil
	},
}

// maskSecrets hides the values of keys, tokens and passwords.
func maskSecrets(dotenv string) string {
	lines := strings.Split(dotenv, "\n")
	for i, line := range lines {
		key, val, ok := strings.Cut(line, "=")
		if !ok || val == "" {
			continue
		}
		if strings.HasSuffix(key, "_KEY") || strings.HasSuffix(key, "_TOKEN") || strings.HasSuffix(key, "PASSWORD") {
			lines[i] = key + "=" + strings.Repeat("*", 8)
		}
	}
	return strings.Join(lines, "\n")
}

func init() {
	configCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "print secret values unmasked")
	rootCmd.AddCommand(configCmd)
}
