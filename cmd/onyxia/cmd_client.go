package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/onyxia-store/onyxia/config"
	"github.com/onyxia-store/onyxia/pkg/adminguard"
	"github.com/onyxia-store/onyxia/pkg/apiclient"
	"github.com/onyxia-store/onyxia/pkg/kvstore"
	"github.com/onyxia-store/onyxia/pkg/storage"
)

const stateFile = "session.json"

// remote is a command-line admin session against a running server. The token
// is kept in a kvstore on disk, the same way the admin pages keep it.
type remote struct {
	api   *apiclient.Client
	store *kvstore.DiskStore
	guard *adminguard.Guard
	last  string
}

func openRemote(cmd *cobra.Command) (*remote, error) {
	if err := config.Load(); err != nil {
		return nil, err
	}
	override, _ := cmd.Flags().GetString("api")
	stateDir, _ := cmd.Flags().GetString("state")

	base := apiclient.ResolveBaseURL(apiclient.Sources{
		Override: firstNonEmpty(override, config.Get("API_BASE_URL", "")),
		Hostname: "localhost",
	}, apiclient.DevAdminAPI)

	store, err := kvstore.OpenDiskStore(cmd.Context(), storage.NewLocal(stateDir, ""), stateFile, kvstore.DefaultQuota)
	if err != nil {
		return nil, err
	}

	r := &remote{api: apiclient.New(base), store: store}
	r.guard = adminguard.New(store, r.api, adminguard.NavigatorFunc(func(to string) { r.last = to }))
	return r, nil
}

// verified runs the admin page check and turns a redirect into an error.
func (r *remote) verified(ctx context.Context) error {
	if r.guard.Check(ctx, adminguard.AdminPage) {
		return nil
	}
	reason := adminguard.ReasonRejected
	if u, err := url.Parse(r.last); err == nil && u.Query().Get("reason") != "" {
		reason = u.Query().Get("reason")
	}
	return errors.New(reason)
}

// describe turns an API failure into the message the server meant for people.
func describe(err error) error {
	var he *apiclient.HTTPError
	if errors.As(err, &he) {
		return errors.New(he.Detail())
	}
	return err
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// onyxia admin:login --username admin
var adminLoginCmd = &cobra.Command{
	Use:   "admin:login",
	Short: "Log in to a running server and keep the admin token locally",
	Long:  "Log in to a running server. Without --password the password is read from the first line of stdin.",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openRemote(cmd)
		if err != nil {
			return err
		}
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			password = strings.TrimRight(line, "\r\n")
		}

		if err := r.guard.Login(cmd.Context(), username, password); err != nil {
			var he *apiclient.HTTPError
			if errors.As(err, &he) {
				return fmt.Errorf("login failed: %s", he.Message)
			}
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "logged in as", username)
		return nil
	},
}

// onyxia admin:logout
var adminLogoutCmd = &cobra.Command{
	Use:   "admin:logout",
	Short: "Revoke the stored admin token and forget it",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openRemote(cmd)
		if err != nil {
			return err
		}
		r.guard.Logout(cmd.Context())
		fmt.Fprintln(cmd.OutOrStdout(), "logged out")
		return nil
	},
}

// onyxia orders:list
var ordersListCmd = &cobra.Command{
	Use:   "orders:list",
	Short: "List orders on a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openRemote(cmd)
		if err != nil {
			return err
		}
		if err := r.verified(cmd.Context()); err != nil {
			return err
		}
		orders, err := r.api.ListOrders(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCUSTOMER\tCITY\tDELIVERY\tTOTAL\tSTATUS")
		for _, o := range orders {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%s\n", o.ID, o.CustomerName, o.City, o.DeliveryType, o.Total, o.Status)
		}
		return w.Flush()
	},
}

// onyxia orders:status 12 shipped
var ordersStatusCmd = &cobra.Command{
	Use:   "orders:status <id> <status>",
	Short: "Change an order's status on a running server",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openRemote(cmd)
		if err != nil {
			return err
		}
		if err := r.verified(cmd.Context()); err != nil {
			return err
		}
		o, err := r.api.UpdateOrderStatus(cmd.Context(), apiclient.ID(args[0]), args[1])
		if err != nil {
			return describe(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "order #%s is now %s\n", o.ID, o.Status)
		return nil
	},
}

// productFlags overlays the flags the user set on in.
func productFlags(cmd *cobra.Command, in *apiclient.ProductInput) {
	f := cmd.Flags()
	if f.Changed("name") {
		in.Name, _ = f.GetString("name")
	}
	if f.Changed("description") {
		in.Description, _ = f.GetString("description")
	}
	if f.Changed("price") {
		in.Price, _ = f.GetFloat64("price")
	}
	if f.Changed("image") {
		in.Image, _ = f.GetString("image")
	}
	if f.Changed("home") {
		in.DisplayHome, _ = f.GetBool("home")
	}
	if f.Changed("position") {
		in.HomePosition, _ = f.GetInt("position")
	}
}

func printProduct(cmd *cobra.Command, verb string, p apiclient.Product) {
	fmt.Fprintf(cmd.OutOrStdout(), "product #%s %s: %s (%.2f)\n", p.ID, verb, p.Name, p.Price)
}

// onyxia products:create --name "Opal Ring" --price 4200
var productsCreateCmd = &cobra.Command{
	Use:   "products:create",
	Short: "Add a product to the catalog of a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openRemote(cmd)
		if err != nil {
			return err
		}
		if err := r.verified(cmd.Context()); err != nil {
			return err
		}
		var in apiclient.ProductInput
		productFlags(cmd, &in)
		p, err := r.api.CreateProduct(cmd.Context(), in)
		if err != nil {
			return describe(err)
		}
		printProduct(cmd, "created", p)
		return nil
	},
}

// onyxia products:update 9 --price 3900 --home --position 4
var productsUpdateCmd = &cobra.Command{
	Use:   "products:update <id>",
	Short: "Change a product; flags that are not given keep their current value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openRemote(cmd)
		if err != nil {
			return err
		}
		if err := r.verified(cmd.Context()); err != nil {
			return err
		}
		id := apiclient.ID(args[0])
		cur, err := r.api.GetProduct(cmd.Context(), id)
		if err != nil {
			return describe(err)
		}
		in := apiclient.ProductInput{
			Name:         cur.Name,
			Description:  cur.Description,
			Price:        cur.Price,
			Image:        cur.Image,
			DisplayHome:  cur.DisplayHome,
			HomePosition: cur.HomePosition,
		}
		productFlags(cmd, &in)
		p, err := r.api.UpdateProduct(cmd.Context(), id, in)
		if err != nil {
			return describe(err)
		}
		printProduct(cmd, "updated", p)
		return nil
	},
}

// onyxia products:delete 9
var productsDeleteCmd = &cobra.Command{
	Use:   "products:delete <id>",
	Short: "Remove a product from the catalog of a running server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openRemote(cmd)
		if err != nil {
			return err
		}
		if err := r.verified(cmd.Context()); err != nil {
			return err
		}
		if err := r.api.DeleteProduct(cmd.Context(), apiclient.ID(args[0])); err != nil {
			return describe(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "product #%s deleted\n", args[0])
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{productsCreateCmd, productsUpdateCmd} {
		c.Flags().String("name", "", "product name")
		c.Flags().String("description", "", "product description")
		c.Flags().Float64("price", 0, "price")
		c.Flags().String("image", "", "image path or URL")
		c.Flags().Bool("home", false, "feature the product on the home page")
		c.Flags().Int("position", 0, "home page position")
	}
	for _, c := range []*cobra.Command{
		adminLoginCmd, adminLogoutCmd, ordersListCmd, ordersStatusCmd,
		productsCreateCmd, productsUpdateCmd, productsDeleteCmd,
	} {
		c.Flags().String("api", "", "server base URL (defaults to API_BASE_URL, then "+apiclient.DevAdminAPI+")")
		c.Flags().String("state", ".onyxia", "directory holding the local admin session")
	}
	adminLoginCmd.Flags().String("username", "admin", "admin username")
	adminLoginCmd.Flags().String("password", "", "admin password")
}
