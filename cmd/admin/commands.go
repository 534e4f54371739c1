package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tendant/simple-storefront/pkg/storefront"
	"github.com/tendant/simple-storefront/pkg/storefront/auth"
	"github.com/tendant/simple-storefront/pkg/storefront/config"
)

const timeLayout = "2006-01-02 15:04"

// NewAssetsCommand creates the assets command
func NewAssetsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "Inspect and manage gallery assets",
	}

	var category, owner string
	var latest bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List gallery assets, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := storefront.AllAssets()
			switch {
			case latest:
				filter = storefront.Recent(0)
			case category != "":
				filter = storefront.ByCategory(category)
			case owner != "":
				filter = storefront.ByOwner(owner)
			}

			return withRuntime(cmd, func(ctx context.Context, rt *config.Runtime) error {
				records, err := rt.Service.ListAssets(ctx, adminIdentity, filter)
				if err != nil {
					return err
				}
				if wantJSON(cmd) {
					return printJSON(cmd, records)
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tOWNER\tSIZE\tUPLOADED")
				for _, a := range records {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", a.ID, a.Name, a.Category, a.OwnerIdentity, a.Size, a.UploadedAt.Format(timeLayout))
				}
				return w.Flush()
			})
		},
	}
	list.Flags().StringVar(&category, "category", "", "only assets in this category")
	list.Flags().StringVar(&owner, "owner", "", "only assets uploaded by this identity")
	list.Flags().BoolVar(&latest, "latest", false, "only assets uploaded in the last 7 days")

	del := &cobra.Command{
		Use:   "delete <asset-id>",
		Short: "Delete an asset and its blob",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			assetID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid asset id: %w", err)
			}
			return withRuntime(cmd, func(ctx context.Context, rt *config.Runtime) error {
				err := rt.Service.DeleteAsset(ctx, adminIdentity, assetID)
				if storefront.IsWarning(err) {
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
					err = nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted asset %s\n", assetID)
				return nil
			})
		},
	}

	cmd.AddCommand(list, del)
	return cmd
}

// NewProductsCommand creates the products command
func NewProductsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Inspect the catalog",
	}

	var category string
	list := &cobra.Command{
		Use:   "list",
		Short: "List catalog items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *config.Runtime) error {
				items, err := rt.Service.ListProducts(ctx, category)
				if err != nil {
					return err
				}
				if wantJSON(cmd) {
					return printJSON(cmd, items)
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tPRICE\tIMAGES")
				for _, p := range items {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", p.ID, p.Name, p.Category, p.PriceMinor, len(p.ImageURLs))
				}
				return w.Flush()
			})
		},
	}
	list.Flags().StringVar(&category, "category", "", "only products in this category")

	cmd.AddCommand(list)
	return cmd
}

// NewUsersCommand creates the users command
func NewUsersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Inspect the user directory and change roles",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *config.Runtime) error {
				users, err := rt.Service.ListUsers(ctx, adminIdentity)
				if err != nil {
					return err
				}
				if wantJSON(cmd) {
					return printJSON(cmd, users)
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "IDENTITY\tEMAIL\tROLE\tCREATED")
				for _, u := range users {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.Identity, u.Email, u.Role, u.CreatedAt.Format(timeLayout))
				}
				return w.Flush()
			})
		},
	}

	setRole := &cobra.Command{
		Use:   "set-role <identity> <user|employee|admin>",
		Short: "Change the role of a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, ok := storefront.ParseRole(args[1])
			if !ok {
				return fmt.Errorf("unknown role %q", args[1])
			}
			return withRuntime(cmd, func(ctx context.Context, rt *config.Runtime) error {
				user, err := rt.Service.ChangeUserRole(ctx, adminIdentity, args[0], role)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", user.Identity, user.Role)
				return nil
			})
		},
	}

	cmd.AddCommand(list, setRole)
	return cmd
}

// NewCartCommand creates the cart command
func NewCartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Inspect user carts",
	}

	show := &cobra.Command{
		Use:   "show <identity>",
		Short: "Show a user's cart with the total of every line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner := storefront.Identity{Subject: args[0], Role: storefront.RoleUser}
			return withRuntime(cmd, func(ctx context.Context, rt *config.Runtime) error {
				lines, err := rt.Service.ListCart(ctx, owner)
				if err != nil {
					return err
				}
				ids := make([]uuid.UUID, 0, len(lines))
				for _, l := range lines {
					ids = append(ids, l.ID)
				}
				summary, err := rt.Service.CartSummary(ctx, owner, ids)
				if err != nil {
					return err
				}
				if wantJSON(cmd) {
					return printJSON(cmd, summary)
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "LINE\tPRODUCT\tQTY\tUNIT\tSUBTOTAL")
				for _, l := range summary.Lines {
					fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n", l.ID, l.ProductNameSnapshot, l.Quantity, l.UnitPriceSnapshot, l.Subtotal())
				}
				fmt.Fprintf(w, "\t\t\tTOTAL\t%d\n", summary.TotalMinor)
				return w.Flush()
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear <identity>",
		Short: "Remove every line of a user's cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner := storefront.Identity{Subject: args[0], Role: storefront.RoleUser}
			return withRuntime(cmd, func(ctx context.Context, rt *config.Runtime) error {
				n, err := rt.Service.ClearCart(ctx, owner)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d lines\n", n)
				return nil
			})
		},
	}

	cmd.AddCommand(show, clearCmd)
	return cmd
}

// NewTokenCommand creates the token command. Only jwt mode can issue tokens.
func NewTokenCommand() *cobra.Command {
	var email, role string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue a signed development token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Auth.Mode != "jwt" {
				return fmt.Errorf("tokens can only be issued in jwt auth mode, not %s", cfg.Auth.Mode)
			}

			id := storefront.Identity{Subject: args[0], Email: email}
			if role != "" {
				r, ok := storefront.ParseRole(role)
				if !ok {
					return fmt.Errorf("unknown role %q", role)
				}
				id.Role = r
			}

			secret := cfg.Auth.Secret
			if secret == "" {
				secret = config.DevelopmentSecret
			}
			verifier, err := auth.NewJWTVerifier([]byte(secret), nil)
			if err != nil {
				return err
			}
			token, err := verifier.Issue(id, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&role, "role", "", "role claim (omit to use the stored role)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

// NewPingCommand creates the ping command
func NewPingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the configured stores are reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if strings.HasPrefix(cfg.DatabaseURL, "postgres") {
				if err := config.PingPostgres(cmd.Context(), cfg.DatabaseURL, cfg.DBSchema); err != nil {
					return err
				}
			}
			return withRuntime(cmd, func(ctx context.Context, rt *config.Runtime) error {
				if _, err := rt.Service.ListProducts(ctx, ""); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			})
		},
	}
}
