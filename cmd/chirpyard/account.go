// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chirpyard Contributors

package main

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chirpyard/chirpyard/internal/account"
)

// NewAccountCmd creates the account command tree.
func NewAccountCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Administer user accounts",
	}

	cmd.AddCommand(
		newCreateCmd(deps),
		newDeleteCmd(deps),
		newAuthCmd(deps),
		newPasswdCmd(deps),
		newExistsCmd(deps),
		newBannedCmd(deps),
		newBanCmd(deps, "ban", true),
		newBanCmd(deps, "unban", false),
		newSetCmd(deps),
		newViewCmd(deps),
		newTokenCmd(deps),
	)
	return cmd
}

// runWithManager opens a session, runs fn and always releases the backend.
func runWithManager(cmd *cobra.Command, deps *Deps, fn func(*session) error) error {
	s, err := deps.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()
	return fn(s)
}

// report returns a sink that prints the outcome and passes err through.
// Precondition outcomes are not errors; the exit status stays zero for them.
func report(cmd *cobra.Command) func(account.Outcome, error) error {
	return func(outcome account.Outcome, err error) error {
		cmd.Println(outcome.String())
		return err
	}
}

// addPasswordFlags registers --password and --password-stdin.
func addPasswordFlags(cmd *cobra.Command) {
	cmd.Flags().String("password", "", "password (prefer --password-stdin)")
	cmd.Flags().Bool("password-stdin", false, "read the password from the first line of stdin")
}

func readPassword(cmd *cobra.Command) (string, error) {
	fromStdin, _ := cmd.Flags().GetBool("password-stdin")
	if !fromStdin {
		pw, _ := cmd.Flags().GetString("password")
		if pw == "" {
			return "", oops.Code("PASSWORD_REQUIRED").Errorf("--password or --password-stdin is required")
		}
		return pw, nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newCreateCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create USERNAME",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd)
			if err != nil {
				return err
			}
			cost, _ := cmd.Flags().GetInt("cost")
			return runWithManager(cmd, deps, func(s *session) error {
				return report(cmd)(s.manager.Create(cmd.Context(), args[0], password, cost))
			})
		},
	}
	addPasswordFlags(cmd)
	cmd.Flags().Int("cost", 0, "bcrypt cost for this hash (0 uses the configured default)")
	return cmd
}

func newDeleteCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "delete USERNAME",
		Short: "Delete an account and its chats, posts and netlog footprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithManager(cmd, deps, func(s *session) error {
				rep, outcome, err := s.manager.Delete(cmd.Context(), args[0])
				if rep != nil {
					cmd.Printf("chats deleted: %d, detached: %d; posts deleted: %d; netlog updated: %d, deleted: %d\n",
						rep.ChatsDeleted, rep.ChatsDetached, rep.PostsDeleted, rep.NetlogUpdated, rep.NetlogDeleted)
					for _, cerr := range rep.Errors {
						cmd.PrintErrf("cleanup failed: %v\n", cerr)
					}
				}
				return report(cmd)(outcome, err)
			})
		},
	}
}

func newAuthCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth USERNAME",
		Short: "Check a password or bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := readPassword(cmd)
			if err != nil {
				return err
			}
			return runWithManager(cmd, deps, func(s *session) error {
				return report(cmd)(s.manager.Authenticate(cmd.Context(), args[0], secret))
			})
		},
	}
	addPasswordFlags(cmd)
	return cmd
}

func newPasswdCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passwd USERNAME",
		Short: "Replace an account's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd)
			if err != nil {
				return err
			}
			cost, _ := cmd.Flags().GetInt("cost")
			return runWithManager(cmd, deps, func(s *session) error {
				return report(cmd)(s.manager.ChangePassword(cmd.Context(), args[0], password, cost))
			})
		},
	}
	addPasswordFlags(cmd)
	cmd.Flags().Int("cost", 0, "bcrypt cost for this hash (0 uses the configured default)")
	return cmd
}

func newExistsCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exists USERNAME",
		Short: "Check whether a username is taken",
		Long: `Check whether a username is taken. With --case-insensitive any
account sharing the lowercase form counts. Without it, only a different
account colliding on the lowercase form counts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ci, _ := cmd.Flags().GetBool("case-insensitive")
			return runWithManager(cmd, deps, func(s *session) error {
				return report(cmd)(s.manager.Exists(cmd.Context(), args[0], ci))
			})
		},
	}
	cmd.Flags().BoolP("case-insensitive", "i", false, "match the lowercase index")
	return cmd
}

func newBannedCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "banned USERNAME",
		Short: "Report whether an account is banned",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithManager(cmd, deps, func(s *session) error {
				return report(cmd)(s.manager.IsBanned(cmd.Context(), args[0]))
			})
		},
	}
}

func newBanCmd(deps *Deps, use string, banned bool) *cobra.Command {
	short := "Ban an account"
	if !banned {
		short = "Lift a ban"
	}
	return &cobra.Command{
		Use:   use + " USERNAME",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithManager(cmd, deps, func(s *session) error {
				return report(cmd)(s.manager.SetBanned(cmd.Context(), args[0], banned))
			})
		},
	}
}

func newSetCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set USERNAME KEY=VALUE...",
		Short: "Update account settings",
		Long: `Update account settings. Each VALUE is parsed as JSON when possible
(true, 3, {"k":"v"}) and taken as a plain string otherwise. Protected keys
(level, banned, email, last_ip) need --force.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			changes, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			force, _ := cmd.Flags().GetBool("force")
			return runWithManager(cmd, deps, func(s *session) error {
				return report(cmd)(s.manager.UpdateSettings(cmd.Context(), args[0], changes, force))
			})
		},
	}
	cmd.Flags().Bool("force", false, "allow writing protected keys")
	return cmd
}

// parseAssignments turns KEY=VALUE arguments into a settings change map.
func parseAssignments(args []string) (map[string]any, error) {
	changes := make(map[string]any, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, oops.Code("INVALID_ASSIGNMENT").With("arg", arg).Errorf("expected KEY=VALUE, got %q", arg)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		changes[key] = v
	}
	return changes, nil
}

func newViewCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view USERNAME",
		Short: "Show an account document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			omit, _ := cmd.Flags().GetBool("omit-sensitive")
			client, _ := cmd.Flags().GetBool("client")
			format, _ := cmd.Flags().GetString("output")
			if format != "json" && format != "yaml" {
				return oops.Code("INVALID_OUTPUT").With("output", format).Errorf("output must be json or yaml, got %q", format)
			}
			return runWithManager(cmd, deps, func(s *session) error {
				doc, outcome, err := s.manager.View(cmd.Context(), args[0], omit, client)
				if outcome != account.Exists {
					return report(cmd)(outcome, err)
				}
				return writeDocument(cmd.OutOrStdout(), format, doc)
			})
		},
	}
	cmd.Flags().Bool("omit-sensitive", true, "drop password hash, tokens and internal keys")
	cmd.Flags().Bool("client", false, "also drop fields hidden from the account holder")
	cmd.Flags().StringP("output", "o", "json", "output format: json or yaml")
	return cmd
}

func writeDocument(w io.Writer, format string, doc map[string]any) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return oops.Code("OUTPUT_FAILED").Wrap(err)
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return oops.Code("OUTPUT_FAILED").Wrap(err)
	}
	return nil
}

func newTokenCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue and revoke bearer tokens",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "issue USERNAME",
		Short: "Issue a new bearer token; it is printed once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithManager(cmd, deps, func(s *session) error {
				token, outcome, err := s.manager.IssueToken(cmd.Context(), args[0])
				if outcome != account.Updated {
					return report(cmd)(outcome, err)
				}
				_, werr := io.WriteString(cmd.OutOrStdout(), token+"\n")
				return werr
			})
		},
	})

	revoke := &cobra.Command{
		Use:   "revoke USERNAME [TOKEN]",
		Short: "Revoke one token, or every token with --all",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			if all == (len(args) == 2) {
				return oops.Code("INVALID_ARGS").Errorf("pass either TOKEN or --all")
			}
			return runWithManager(cmd, deps, func(s *session) error {
				if all {
					return report(cmd)(s.manager.RevokeAllTokens(cmd.Context(), args[0]))
				}
				return report(cmd)(s.manager.RevokeToken(cmd.Context(), args[0], args[1]))
			})
		},
	}
	revoke.Flags().Bool("all", false, "revoke every token")
	cmd.AddCommand(revoke)

	return cmd
}
