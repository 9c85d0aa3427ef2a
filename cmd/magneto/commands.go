package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/magneto/internal/domain"
	"github.com/John-Robertt/magneto/internal/fault"
	"github.com/John-Robertt/magneto/internal/provider/playstore"
	"github.com/John-Robertt/magneto/internal/upgrade"
)

func (c *cli) urlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "url [pkg]",
		Short: "Print the listing page URL (no network access)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open(cmd)
			if err != nil {
				return err
			}
			pkg, err := s.pkgArg(args, 0)
			if err != nil {
				return err
			}
			u, err := s.client.URL(pkg)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.stdout, u)
			return nil
		},
	}
}

func (c *cli) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [pkg]",
		Short: "Print the listing page URL if it answers HTTP 200",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open(cmd)
			if err != nil {
				return err
			}
			pkg, err := s.pkgArg(args, 0)
			if err != nil {
				return err
			}
			u, err := s.client.VerifiedURL(cmd.Context(), pkg)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.stdout, u)
			return nil
		},
	}
}

func (c *cli) getCmd() *cobra.Command {
	names := make([]string, 0, len(domain.AllFields()))
	for _, f := range domain.AllFields() {
		names = append(names, f.String())
	}
	return &cobra.Command{
		Use:       "get <field> [pkg]",
		Short:     "Fetch a single field",
		Long:      "Fetch a single field from the listing page.\n\nFields: " + strings.Join(names, ", "),
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := domain.ParseField(args[0])
			if err != nil {
				return fault.Wrap(fault.InvalidArgument, "get", err)
			}
			s, err := c.open(cmd)
			if err != nil {
				return err
			}
			pkg, err := s.pkgArg(args, 1)
			if err != nil {
				return err
			}
			info, err := s.client.Fetch(cmd.Context(), f, pkg)
			if err != nil {
				return err
			}
			v, _ := info.Value(f)
			printValue(c, v)
			return nil
		},
	}
}

func (c *cli) changelogCmd() *cobra.Command {
	var flat bool
	cmd := &cobra.Command{
		Use:   "changelog [pkg]",
		Short: "Print the recent changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open(cmd)
			if err != nil {
				return err
			}
			pkg, err := s.pkgArg(args, 0)
			if err != nil {
				return err
			}
			if flat {
				txt, err := s.client.ChangelogText(cmd.Context(), pkg)
				if err != nil {
					return err
				}
				if txt != "" {
					fmt.Fprintln(c.stdout, txt)
				}
				return nil
			}
			items, err := s.client.Changelog(cmd.Context(), pkg)
			if err != nil {
				return err
			}
			printValue(c, items)
			return nil
		},
	}
	cmd.Flags().BoolVar(&flat, "flat", false, "Join entries with a blank line instead of a bullet list")
	return cmd
}

func (c *cli) upgradeCmd() *cobra.Command {
	var local string
	cmd := &cobra.Command{
		Use:   "upgrade [pkg]",
		Short: "Report whether the listed version differs from the installed one",
		Long: "Report whether the listed version differs from the installed one.\n\n" +
			"The installed version comes from --local, or from the `installed` map in the config file.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open(cmd)
			if err != nil {
				return err
			}
			pkg, err := s.pkgArg(args, 0)
			if err != nil {
				return err
			}
			var up bool
			if cmd.Flags().Changed("local") {
				up, err = s.client.IsUpgradeAvailable(cmd.Context(), pkg, local)
			} else {
				up, err = s.client.IsUpgradeAvailableFor(cmd.Context(), pkg, upgrade.MapLookup(s.eff.Installed))
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(c.stdout, up)
			return nil
		},
	}
	cmd.Flags().StringVar(&local, "local", "", "Installed version to compare against")
	return cmd
}

// pkgArg 取第 i 个位置参数作为包名；缺省时使用配置中的 package。
func (s *session) pkgArg(args []string, i int) (string, error) {
	if i < len(args) {
		return args[i], nil
	}
	if s.eff.Package != "" {
		return s.eff.Package, nil
	}
	return "", fault.New(fault.InvalidArgument, "cli", "未指定包名，且配置中没有 package")
}

func printValue(c *cli, v any) {
	switch x := v.(type) {
	case []string:
		for _, it := range x {
			fmt.Fprintf(c.stdout, "- %s\n", it)
		}
	case domain.Category:
		fmt.Fprintf(c.stdout, "%s (%s)\n", x.Name, x.ID)
	default:
		fmt.Fprintln(c.stdout, x)
	}
}

// changelogText 用于 TTY 摘要里的单行展示。
func changelogText(items []string) string {
	return strings.ReplaceAll(playstore.Flatten(items), playstore.ChangelogSeparator, " / ")
}
