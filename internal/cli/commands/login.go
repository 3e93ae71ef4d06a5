package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tinrooster/tedecom-v1/internal/api/client"
)

func NewLoginCommand() *cobra.Command {
	var (
		username string
		password string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			token, err := c.Login(username, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			viper.Set("token", token)
			if err := viper.WriteConfig(); err != nil {
				if err := viper.SafeWriteConfig(); err != nil {
					return fmt.Errorf("failed to save token: %w", err)
				}
			}
			fmt.Println("Login successful")
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("password")
	return cmd
}
