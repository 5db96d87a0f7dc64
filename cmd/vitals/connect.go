// ABOUTME: CLI command linking a WHOOP account via OAuth.
// ABOUTME: Prints the consent URL and exchanges the pasted code.
package main

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/harperreed/vitals/internal/models"
)

var connectCmd = &cobra.Command{
	Use:   "connect <user>",
	Short: "Link a WHOOP account",
	Long: `Link a WHOOP account for API syncing. Prints the authorization URL;
open it, approve access, and paste the code from the redirect back here.

Requires whoop.client_id and whoop.client_secret in the config (or
VITALS_WHOOP_CLIENT_ID / VITALS_WHOOP_CLIENT_SECRET).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID := args[0]
		if cfg.Whoop.ClientID == "" || cfg.Whoop.ClientSecret == "" {
			return fmt.Errorf("whoop client credentials not configured")
		}

		state := uuid.NewString()
		cmd.Println("Open this URL and approve access:")
		cmd.Println()
		cmd.Println("  " + api.AuthorizationURL(state))
		cmd.Println()
		cmd.Print("Paste the authorization code: ")

		reader := bufio.NewReader(cmd.InOrStdin())
		code, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read authorization code: %w", err)
		}
		code = strings.TrimSpace(code)
		if code == "" {
			return fmt.Errorf("no authorization code provided")
		}

		resp, err := api.ExchangeCode(cmd.Context(), code)
		if err != nil {
			return fmt.Errorf("exchange authorization code: %w", err)
		}

		tok := &models.Token{
			UserID:       userID,
			AccessToken:  resp.AccessToken,
			RefreshToken: resp.RefreshToken,
			ExpiresAt:    time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second),
			TokenType:    resp.TokenType,
		}
		if err := store.SaveToken(cmd.Context(), tok); err != nil {
			return fmt.Errorf("save credentials: %w", err)
		}

		color.Green("✓ Linked WHOOP account for %s", userID)
		cmd.Println("  Run 'vitals sync " + userID + "' to pull data.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(connectCmd)
}
