// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/squadz/squadz/internal/config"
)

const (
	flagConfig  = "config"
	flagEnvFile = "env-file"

	defaultEnvFile = ".env"
)

// NewRootCmd creates the root command for the squadz CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "squadz",
		Short: "Squadz account service",
		Long: `Squadz manages player accounts: registration and email verification,
password and Apple/Google sign-in, refresh-token sessions, password
recovery and onboarding setup stages.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String(flagConfig, "", "config file path (YAML)")
	cmd.PersistentFlags().String(flagEnvFile, defaultEnvFile, "dotenv file loaded when present")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSessionsCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}

// loadConfig reads the configuration selected by cmd's flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	path, err := flags.GetString(flagConfig)
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	envFile, err := flags.GetString(flagEnvFile)
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return config.Load(config.LoadOptions{File: path, Flags: flags, DotEnv: envFile})
}

// loadValidConfig is loadConfig followed by Validate.
func loadValidConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
